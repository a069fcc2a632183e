package content

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"postengine/internal/storage"

	"github.com/cespare/xxhash/v2"
)

const maxBufferSize = 32 * 1024
const maxFileSize = 10 * 1024 * 1024

// rawSource is the unparsed content of a single post, it never leaves the package
type rawSource struct {
	Slug        string
	Key         string
	Body        []byte
	Fingerprint uint64
}

// PostStore maps slugs to post sources held by a storage provider
type PostStore struct {
	provider storage.Provider
	logger   *slog.Logger

	mu    sync.RWMutex
	keys  map[string]string // slug -> storage key
	slugs []string
}

func NewPostStore(provider storage.Provider, logger *slog.Logger) *PostStore {
	return &PostStore{
		provider: provider,
		logger:   logger,
		keys:     make(map[string]string),
	}
}

// Load enumerates the provider and rebuilds the slug index.
// Two sources resolving to the same slug fail the whole load and leave the previous index untouched.
func (s *PostStore) Load(ctx context.Context) error {
	allKeys, err := s.provider.List(ctx)
	if err != nil {
		return fmt.Errorf("could not enumerate sources: %w", err)
	}
	slices.Sort(allKeys)

	keys := make(map[string]string)
	var errs []error
	for _, key := range allKeys {
		if !isSourceKey(key) {
			continue
		}

		slug, err := SlugFromKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if existing, ok := keys[slug]; ok {
			errs = append(errs, fmt.Errorf("%w: %q from %s and %s", ErrDuplicateSlug, slug, existing, key))
			continue
		}
		keys[slug] = key
		s.logger.Debug("found post source", "slug", slug, "key", key)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slugs := make([]string, 0, len(keys))
	for slug := range keys {
		slugs = append(slugs, slug)
	}
	slices.Sort(slugs)

	s.mu.Lock()
	s.keys = keys
	s.slugs = slugs
	s.mu.Unlock()

	s.logger.Info("post sources loaded", "count", len(slugs))
	return nil
}

// Slugs returns every known slug in ascending order
func (s *PostStore) Slugs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.slugs)
}

// Len returns the number of indexed sources
func (s *PostStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slugs)
}

// fetchRaw reads the source behind slug. Unknown slugs and sources that vanished since
// Load report ErrPostNotFound, any other failure is a *SourceError.
func (s *PostStore) fetchRaw(ctx context.Context, slug string) (*rawSource, error) {
	s.mu.RLock()
	key, ok := s.keys[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, slug)
	}

	start := time.Now()
	file, err := s.provider.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPostNotFound, slug)
		}
		return nil, &SourceError{Slug: slug, Key: key, Err: err}
	}
	defer file.Close()

	// one byte over the limit is enough to know the file is too large
	bufReader := bufio.NewReaderSize(io.LimitReader(file, maxFileSize+1), maxBufferSize)

	body, err := io.ReadAll(bufReader)
	if err != nil {
		return nil, &SourceError{Slug: slug, Key: key, Err: err}
	}
	if len(body) > maxFileSize {
		return nil, &SourceError{Slug: slug, Key: key, Err: fmt.Errorf("%w: over %d bytes", ErrFileTooLarge, maxFileSize)}
	}

	s.logger.Debug("read post source", "slug", slug, "key", key, "bytes", len(body), "duration", time.Since(start))

	return &rawSource{
		Slug:        slug,
		Key:         key,
		Body:        body,
		Fingerprint: xxhash.Sum64(body),
	}, nil
}
