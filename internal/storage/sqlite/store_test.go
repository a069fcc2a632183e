package sqlite

import (
	"errors"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"postengine/internal/storage"
)

func TestStoreImplementsInterface(t *testing.T) {
	t.Parallel()
	var _ storage.Provider = (*Store)(nil)
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_blog.db")

	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second migration should be a no-op, got %v", err)
	}
}

func TestSaveAndOpen(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		key     string
		body    string
		wantErr error
	}{
		{name: "nominal", key: "hello-world.md", body: "---\ntitle: Hello\n---\n# Hi"},
		{name: "nested key", key: "img/cat.png", body: "\x89PNG"},
		{name: "empty key", key: "   ", body: "x", wantErr: storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := t.Context()

			t.Parallel()

			err := store.Save(ctx, tt.key, strings.NewReader(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Save: got %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			rc, err := store.Open(ctx, tt.key)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer rc.Close()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("could not read object: %v", err)
			}
			if string(got) != tt.body {
				t.Errorf("expected %q, got %q", tt.body, string(got))
			}

			info, err := store.Stat(ctx, tt.key)
			if err != nil {
				t.Fatalf("Stat failed: %v", err)
			}
			if info.Size != int64(len(tt.body)) {
				t.Errorf("invalid size: got %d, want %d", info.Size, len(tt.body))
			}
			if info.ModifiedAt.IsZero() {
				t.Error("modified time must be set")
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	if err := store.Save(ctx, "post.md", strings.NewReader("first")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "post.md", strings.NewReader("second version")); err != nil {
		t.Fatal(err)
	}

	rc, err := store.Open(ctx, "post.md")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "second version" {
		t.Errorf("expected overwrite, got %q", string(got))
	}
}

func TestMissingObject(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	if _, err := store.Open(ctx, "nope.md"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Open: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Stat(ctx, "nope.md"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Stat: expected ErrNotFound, got %v", err)
	}
	if store.Exists(ctx, "nope.md") {
		t.Error("missing object must not exist")
	}
}

func TestList(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	for _, key := range []string{"b.md", "a.md", "img/c.png"} {
		if err := store.Save(ctx, key, strings.NewReader(key)); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{"a.md", "b.md", "img/c.png"}
	if !slices.Equal(keys, want) {
		t.Errorf("expected %v, got %v", want, keys)
	}
}
