package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"postengine/internal/storage"
)

// memProvider is an in-memory storage.Provider with per-key failure injection
type memProvider struct {
	mu      sync.Mutex
	objects map[string][]byte
	openErr map[string]error
	listErr error
}

func newMemProvider(files map[string]string) *memProvider {
	p := &memProvider{
		objects: make(map[string][]byte),
		openErr: make(map[string]error),
	}
	for key, body := range files {
		p.objects[key] = []byte(body)
	}
	return p
}

func (p *memProvider) put(key, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = []byte(body)
}

func (p *memProvider) remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, key)
}

func (p *memProvider) failOpen(key string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr[key] = err
}

func (p *memProvider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.openErr[key]; err != nil {
		return nil, err
	}
	body, ok := p.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(slices.Clone(body))), nil
}

func (p *memProvider) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	body, ok := p.objects[key]
	if !ok {
		return storage.ObjectInfo{}, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(body)), ModifiedAt: time.Now()}, nil
}

func (p *memProvider) Exists(ctx context.Context, key string) bool {
	_, err := p.Stat(ctx, key)
	return err == nil
}

func (p *memProvider) List(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return slices.Sorted(maps.Keys(p.objects)), nil
}

func (p *memProvider) Save(_ context.Context, key string, body io.ReadSeeker) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = data
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func loadedStore(t *testing.T, provider storage.Provider) *PostStore {
	t.Helper()
	store := NewPostStore(provider, discardLogger())
	if err := store.Load(t.Context()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return store
}

func TestPostStoreLoad(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{
		"hello-world.md":        "a",
		"posts/Second Post.md":  "b",
		"notes/third.MARKDOWN":  "c",
		"images/cover.png":      "not a post",
		"README.txt":            "ignored",
		"drafts/nested/four.md": "d",
	})

	store := loadedStore(t, provider)

	want := []string{"four", "hello-world", "second-post", "third"}
	if got := store.Slugs(); !slices.Equal(got, want) {
		t.Errorf("expected slugs %v, got %v", want, got)
	}
	if store.Len() != len(want) {
		t.Errorf("expected len %d, got %d", len(want), store.Len())
	}
}

func TestPostStoreLoadDuplicateSlug(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{
		"keep.md": "a",
	})
	store := loadedStore(t, provider)

	provider.put("Dup.md", "a")
	provider.put("drafts/dup.md", "b")

	err := store.Load(t.Context())
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Fatalf("expected ErrDuplicateSlug, got %v", err)
	}
	if !strings.Contains(err.Error(), `"dup"`) {
		t.Errorf("expected error to name the slug, got %q", err)
	}

	// previous index survives a failed load
	if got := store.Slugs(); !slices.Equal(got, []string{"keep"}) {
		t.Errorf("expected previous index, got %v", got)
	}
}

func TestPostStoreLoadInvalidSlug(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{
		"posts/!!!.md": "a",
	})
	store := NewPostStore(provider, discardLogger())

	if err := store.Load(t.Context()); !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
}

func TestPostStoreLoadListFailure(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(nil)
	provider.listErr = errors.New("bucket unreachable")
	store := NewPostStore(provider, discardLogger())

	if err := store.Load(t.Context()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestPostStoreFetchRaw(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{
		"ok.md":     "body",
		"vanish.md": "gone soon",
		"broken.md": "never read",
		"huge.md":   strings.Repeat("x", maxFileSize+1),
		"exact.md":  strings.Repeat("y", maxFileSize),
	})
	store := loadedStore(t, provider)

	provider.remove("vanish.md")
	provider.failOpen("broken.md", errors.New("permission denied"))

	tests := []struct {
		name     string
		slug     string
		wantBody string
		wantErr  error
	}{
		{name: "nominal", slug: "ok", wantBody: "body"},
		{name: "unknown slug", slug: "missing", wantErr: ErrPostNotFound},
		{name: "removed after load", slug: "vanish", wantErr: ErrPostNotFound},
		{name: "unreadable", slug: "broken", wantErr: ErrSourceUnavailable},
		{name: "too large", slug: "huge", wantErr: ErrFileTooLarge},
		{name: "at the limit", slug: "exact", wantBody: strings.Repeat("y", maxFileSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw, err := store.fetchRaw(t.Context(), tt.slug)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got err %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if string(raw.Body) != tt.wantBody {
				t.Errorf("unexpected body of %d bytes", len(raw.Body))
			}
			if raw.Slug != tt.slug {
				t.Errorf("expected slug %q, got %q", tt.slug, raw.Slug)
			}
		})
	}
}

func TestPostStoreSourceErrorCarriesSlug(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{"post.md": "x"})
	store := loadedStore(t, provider)
	provider.failOpen("post.md", errors.New("disk on fire"))

	_, err := store.fetchRaw(t.Context(), "post")

	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected *SourceError, got %T", err)
	}
	if srcErr.Slug != "post" || srcErr.Key != "post.md" {
		t.Errorf("unexpected slug/key %q/%q", srcErr.Slug, srcErr.Key)
	}
}

func TestPostStoreFingerprint(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{"a.md": "one"})
	store := loadedStore(t, provider)

	first, err := store.fetchRaw(t.Context(), "a")
	if err != nil {
		t.Fatal(err)
	}
	again, err := store.fetchRaw(t.Context(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if first.Fingerprint != again.Fingerprint {
		t.Error("expected identical content to share a fingerprint")
	}

	provider.put("a.md", "two")
	changed, err := store.fetchRaw(t.Context(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if changed.Fingerprint == first.Fingerprint {
		t.Error("expected changed content to change the fingerprint")
	}
}
