package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"postengine/internal/storage"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const maxObjectSize = 10 * 1024 * 1024

var ErrCheckViolation = errors.New("check constraint violation")

// Store keeps blobs in a single sqlite table so a deployment can ship posts and images in one file
type Store struct {
	db *sqlx.DB
}

var _ storage.Provider = (*Store)(nil)

type objectRow struct {
	Key        string    `db:"key"`
	Size       int64     `db:"size"`
	ModifiedAt time.Time `db:"modified_at"`
}

// NewStore creates a new database store and brings its schema up to date
func NewStore(dbPath string) (*Store, error) {
	db, err := NewDB(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, storage.ErrInvalidKey
	}

	var body []byte
	if err := s.db.GetContext(ctx, &body, `SELECT body FROM objects WHERE key = ? LIMIT 1`, key); err != nil {
		return nil, fmt.Errorf("cannot open %q: %w", key, mapSqlError(err))
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return storage.ObjectInfo{}, storage.ErrInvalidKey
	}

	var row objectRow
	query := `SELECT key, size, modified_at FROM objects WHERE key = ? LIMIT 1`
	if err := s.db.GetContext(ctx, &row, query, key); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("cannot stat %q: %w", key, mapSqlError(err))
	}

	return storage.ObjectInfo{
		Key:        row.Key,
		Size:       row.Size,
		ModifiedAt: row.ModifiedAt.UTC(),
	}, nil
}

func (s *Store) Exists(ctx context.Context, key string) bool {
	_, err := s.Stat(ctx, key)
	return err == nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, `SELECT key FROM objects ORDER BY key`); err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", mapSqlError(err))
	}
	return keys, nil
}

// Save upserts the object, replacing any previous body for the same key
func (s *Store) Save(ctx context.Context, key string, body io.ReadSeeker) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return storage.ErrInvalidKey
	}

	data, err := io.ReadAll(io.LimitReader(body, maxObjectSize+1))
	if err != nil {
		return fmt.Errorf("could not read body for %q: %w", key, err)
	}
	if len(data) > maxObjectSize {
		return fmt.Errorf("object %q exceeds %d bytes", key, maxObjectSize)
	}

	query := `INSERT INTO objects (key, body, size, modified_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			body = excluded.body,
			size = excluded.size,
			modified_at = excluded.modified_at`

	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query, key, data, len(data), time.Now().UTC()); err != nil {
			return fmt.Errorf("could not save %q: %w", key, mapSqlError(err))
		}
		return nil
	})
}

func (s *Store) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func mapSqlError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_CHECK {
		return ErrCheckViolation
	}
	return err
}
