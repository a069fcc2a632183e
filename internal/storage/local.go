package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type LocalStore struct {
	basePath string
}

var _ Provider = (*LocalStore)(nil)

func NewLocalStorage(basePath string) *LocalStore {
	return &LocalStore{basePath: basePath}
}

// cleanKey turns a key into a root-relative path, rejecting anything that escapes the root
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}

	cleaned := path.Clean(strings.TrimPrefix(filepath.ToSlash(key), "/"))
	if cleaned == "." || !fs.ValidPath(cleaned) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func (l *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenInRoot(l.basePath, filepath.FromSlash(cleaned))
	if err != nil {
		return nil, mapFSError(cleaned, err)
	}
	return file, nil
}

func (l *LocalStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	root, err := os.OpenRoot(l.basePath)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("could not open root %s: %w", l.basePath, err)
	}
	defer root.Close()

	stats, err := root.Stat(filepath.FromSlash(cleaned))
	if err != nil {
		return ObjectInfo{}, mapFSError(cleaned, err)
	}
	if stats.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, cleaned)
	}

	return ObjectInfo{
		Key:        cleaned,
		Size:       stats.Size(),
		ModifiedAt: stats.ModTime().UTC(),
	}, nil
}

// Exists takes a key and returns true if the file exists and can be opened
func (l *LocalStore) Exists(ctx context.Context, key string) bool {
	f, err := l.Open(ctx, key)
	if err != nil {
		return false
	}

	defer f.Close() // overkill to consider errors if only checking existence
	return true
}

// List walks the whole tree and returns every regular file as a slash separated key
func (l *LocalStore) List(ctx context.Context) ([]string, error) {
	root, err := os.OpenRoot(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("could not open root %s: %w", l.basePath, err)
	}
	defer root.Close()

	var keys []string
	err = fs.WalkDir(root.FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.Type().IsRegular() {
			keys = append(keys, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", l.basePath, err)
	}
	return keys, nil
}

func (l *LocalStore) Save(ctx context.Context, key string, body io.ReadSeeker) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}

	root, err := os.OpenRoot(l.basePath)
	if err != nil {
		return fmt.Errorf("could not open root %s: %w", l.basePath, err)
	}
	defer root.Close()

	if dir := path.Dir(cleaned); dir != "." {
		if err := root.MkdirAll(filepath.FromSlash(dir), 0o755); err != nil {
			return fmt.Errorf("could not create %s: %w", dir, err)
		}
	}

	file, err := root.Create(filepath.FromSlash(cleaned))
	if err != nil {
		return fmt.Errorf("could not create %s: %w", cleaned, err)
	}

	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		return fmt.Errorf("could not write %s: %w", cleaned, err)
	}
	return file.Close()
}

func mapFSError(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("%s: %w", key, err)
}
