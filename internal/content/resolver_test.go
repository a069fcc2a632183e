package content

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"postengine/internal/telemetry"
)

const helloWorld = `---
title: Hello
description: First post
publishedAt: 2024-01-15
tags: [intro]
---
# Hi

Some *text*.
`

// countingRenderer wraps a real renderer and counts conversions
type countingRenderer struct {
	Renderer
	calls atomic.Int64
}

func (c *countingRenderer) Render(source []byte) ([]byte, error) {
	c.calls.Add(1)
	return c.Renderer.Render(source)
}

func post(title, date string, extra ...string) string {
	return "---\ntitle: " + title + "\ndescription: about " + title + "\npublishedAt: " + date + "\n" +
		strings.Join(extra, "\n") + "\n---\nbody of " + title + "\n"
}

func newTestResolver(t *testing.T, provider *memProvider, cache *RenderCache) (*Resolver, *countingRenderer) {
	t.Helper()
	logger := discardLogger()
	tel := telemetry.Disabled(logger)
	renderer := &countingRenderer{Renderer: newTestRenderer(t, nil)}

	resolver := NewResolver(ResolverDependencies{
		Store:    loadedStore(t, provider),
		Renderer: renderer,
		Cache:    cache,
		Logger:   logger,
		Tracer:   tel.Tracer,
		Metrics:  tel.Metrics,
	})
	return resolver, renderer
}

func TestResolverResolve(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{"hello-world.md": helloWorld})
	resolver, _ := newTestResolver(t, provider, NewRenderCache())

	got, err := resolver.Resolve(t.Context(), "hello-world")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if got.Slug != "hello-world" || got.Title != "Hello" || got.Description != "First post" {
		t.Errorf("unexpected post header %+v", got)
	}
	if !got.PublishedAt.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected publishedAt %v", got.PublishedAt)
	}
	if !strings.Contains(got.Content, "<h1") || !strings.Contains(got.Content, "<em>text</em>") {
		t.Errorf("unexpected content %q", got.Content)
	}
	if strings.Contains(got.Content, "publishedAt") {
		t.Error("front matter leaked into content")
	}
}

func TestResolverResolveErrors(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{
		"no-date.md":    "---\ntitle: Hello\ndescription: d\n---\nbody",
		"bad-date.md":   "---\ntitle: Hello\ndescription: d\npublishedAt: soon\n---\nbody",
		"no-header.md":  "just text",
		"unreadable.md": helloWorld,
	})
	resolver, _ := newTestResolver(t, provider, NewRenderCache())
	provider.failOpen("unreadable.md", errors.New("permission denied"))

	tests := []struct {
		name      string
		slug      string
		wantErr   error
		wantKind  ParseErrorKind
		wantField string
	}{
		{name: "unknown slug", slug: "does-not-exist", wantErr: ErrPostNotFound},
		{name: "missing field", slug: "no-date", wantErr: ErrMalformedPost, wantKind: MissingField, wantField: "publishedAt"},
		{name: "invalid date", slug: "bad-date", wantErr: ErrMalformedPost, wantKind: InvalidDate, wantField: "publishedAt"},
		{name: "no header", slug: "no-header", wantErr: ErrMalformedPost, wantKind: MalformedHeader},
		{name: "io failure", slug: "unreadable", wantErr: ErrSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolver.Resolve(t.Context(), tt.slug)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got err %v, want %v", err, tt.wantErr)
			}
			if got != nil {
				t.Errorf("expected no post, got %+v", got)
			}
			if !strings.Contains(err.Error(), tt.slug) {
				t.Errorf("expected error to name %q, got %q", tt.slug, err)
			}
			if tt.wantKind == 0 {
				return
			}

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if parseErr.Slug != tt.slug || parseErr.Kind != tt.wantKind || parseErr.Field != tt.wantField {
				t.Errorf("unexpected parse error %+v", parseErr)
			}
		})
	}
}

func TestResolverIdempotent(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{"hello-world.md": helloWorld})

	for _, cache := range []*RenderCache{NewRenderCache(), nil} {
		resolver, _ := newTestResolver(t, provider, cache)

		first, err := resolver.Resolve(t.Context(), "hello-world")
		if err != nil {
			t.Fatal(err)
		}
		second, err := resolver.Resolve(t.Context(), "hello-world")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("expected identical posts (cache %v)\n%+v\n%+v", cache != nil, first, second)
		}
	}
}

func TestResolverCache(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{"hello-world.md": helloWorld})
	cache := NewRenderCache()
	resolver, renderer := newTestResolver(t, provider, cache)

	for range 3 {
		if _, err := resolver.Resolve(t.Context(), "hello-world"); err != nil {
			t.Fatal(err)
		}
	}
	if calls := renderer.calls.Load(); calls != 1 {
		t.Errorf("expected a single render, got %d", calls)
	}
	if cache.Len() != 1 {
		t.Errorf("expected one cached entry, got %d", cache.Len())
	}

	provider.put("hello-world.md", strings.Replace(helloWorld, "Some *text*.", "Fresh **words**.", 1))

	got, err := resolver.Resolve(t.Context(), "hello-world")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Content, "<strong>words</strong>") {
		t.Errorf("expected updated content, got %q", got.Content)
	}
	if calls := renderer.calls.Load(); calls != 2 {
		t.Errorf("expected a re-render after the source changed, got %d renders", calls)
	}
}

func TestResolverWithoutCache(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{"hello-world.md": helloWorld})
	resolver, renderer := newTestResolver(t, provider, nil)

	for range 3 {
		if _, err := resolver.Resolve(t.Context(), "hello-world"); err != nil {
			t.Fatal(err)
		}
	}
	if calls := renderer.calls.Load(); calls != 3 {
		t.Errorf("expected every resolve to render, got %d", calls)
	}
}

func TestResolverReturnsIndependentCopies(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{"hello-world.md": helloWorld})
	resolver, _ := newTestResolver(t, provider, NewRenderCache())

	first, err := resolver.Resolve(t.Context(), "hello-world")
	if err != nil {
		t.Fatal(err)
	}
	first.Tags[0] = "mutated"
	first.Title = "mutated"

	second, err := resolver.Resolve(t.Context(), "hello-world")
	if err != nil {
		t.Fatal(err)
	}
	if second.Title != "Hello" || second.Tags[0] != "intro" {
		t.Errorf("cached post was mutated through a returned value: %+v", second)
	}
}

func TestResolverConcurrentResolve(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{
		"hello-world.md": helloWorld,
		"other.md":       post("Other", "2024-02-01"),
	})
	resolver, _ := newTestResolver(t, provider, NewRenderCache())

	want, err := resolver.Resolve(t.Context(), "hello-world")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := range 40 {
		wg.Go(func() {
			slug := "hello-world"
			if i%2 == 1 {
				slug = "other"
			}
			got, err := resolver.Resolve(t.Context(), slug)
			if err != nil {
				errs <- err
				return
			}
			if slug == "hello-world" && !reflect.DeepEqual(got, want) {
				errs <- errors.New("concurrent resolve returned a different post")
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestResolverList(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{
		"old.md":    post("Old", "2023-05-01"),
		"new.md":    post("New", "2024-06-01"),
		"b-same.md": post("B same", "2024-01-01"),
		"a-same.md": post("A same", "2024-01-01"),
		"draft.md":  post("Draft", "2025-01-01", "draft: true"),
		"broken.md": "---\ntitle: Broken\n---\n",
		"cover.png": "binary",
	})
	resolver, _ := newTestResolver(t, provider, NewRenderCache())

	posts, err := resolver.List(t.Context())
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var got []string
	for _, p := range posts {
		got = append(got, p.Slug)
	}
	want := []string{"new", "a-same", "b-same", "old"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestResolverResolvesDrafts(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{
		"draft.md": post("Draft", "2025-01-01", "draft: true"),
	})
	resolver, _ := newTestResolver(t, provider, nil)

	got, err := resolver.Resolve(t.Context(), "draft")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Draft {
		t.Error("expected draft flag to be set")
	}
}

func TestResolverListCancelled(t *testing.T) {
	t.Parallel()
	provider := newMemProvider(map[string]string{"a.md": post("A", "2024-01-01")})
	resolver, _ := newTestResolver(t, provider, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := resolver.List(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
