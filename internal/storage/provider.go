package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectInfo describes a stored object without reading its body.
type ObjectInfo struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// Provider is a flat key/value blob store. Keys are slash separated relative paths.
// Open and Stat return ErrNotFound (wrapped) when the key does not exist.
type Provider interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Exists(ctx context.Context, key string) bool
	List(ctx context.Context) ([]string, error)
	Save(ctx context.Context, key string, body io.ReadSeeker) error
}
