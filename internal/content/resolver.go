package content

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"postengine/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Renderer turns a markdown body into embeddable HTML
type Renderer interface {
	Render(source []byte) ([]byte, error)
	Stylesheet() string
}

// PostService defines read-access to blog posts
type PostService interface {
	Resolve(ctx context.Context, slug string) (*Post, error)
	List(ctx context.Context) ([]*Post, error)
	Stylesheet() string
}

type ResolverDependencies struct {
	Store    *PostStore
	Renderer Renderer
	Cache    *RenderCache // nil disables caching
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Metrics  *telemetry.Metrics
}

// Resolver turns slugs into ready to display posts
type Resolver struct {
	store    *PostStore
	renderer Renderer
	cache    *RenderCache
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
}

var _ PostService = (*Resolver)(nil)

func NewResolver(deps ResolverDependencies) *Resolver {
	return &Resolver{
		store:    deps.Store,
		renderer: deps.Renderer,
		cache:    deps.Cache,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		metrics:  deps.Metrics,
	}
}

// Resolve returns the post behind slug or one of:
// ErrPostNotFound when no source exists, *ParseError when the source is malformed,
// *SourceError when it cannot be read. Errors carry the slug.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Post, error) {
	ctx, span := r.tracer.Start(ctx, "Resolver.Resolve", trace.WithAttributes(attribute.String("post.slug", slug)))
	defer span.End()

	post, err := r.resolve(ctx, slug, span)
	if err != nil {
		r.recordFailure(ctx, span, slug, err)
		return nil, err
	}
	return post, nil
}

func (r *Resolver) resolve(ctx context.Context, slug string, span trace.Span) (*Post, error) {
	raw, err := r.store.fetchRaw(ctx, slug)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if entry, ok := r.cache.Get(slug, raw.Fingerprint); ok {
			span.SetAttributes(attribute.String("cache.status", "hit"))
			r.metrics.CacheHitsTotal.Add(ctx, 1)
			return newPost(slug, entry.Meta, entry.HTML), nil
		}
		span.SetAttributes(attribute.String("cache.status", "miss"))
		r.metrics.CacheMissesTotal.Add(ctx, 1)
	}

	start := time.Now()

	meta, body, err := ParseDocument(raw.Body)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			tagged := *parseErr
			tagged.Slug = slug
			return nil, &tagged
		}
		return nil, err
	}

	html, err := r.renderer.Render(body)
	if err != nil {
		return nil, err
	}

	r.metrics.RenderDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)

	entry := &RenderedPost{
		Slug:        slug,
		Meta:        meta,
		HTML:        string(html),
		CSS:         r.renderer.Stylesheet(),
		Fingerprint: raw.Fingerprint,
	}
	if r.cache != nil {
		r.cache.Put(entry)
	}

	r.logger.Debug("post rendered", "slug", slug, "key", raw.Key, "html_bytes", len(html))
	return newPost(slug, entry.Meta, entry.HTML), nil
}

func (r *Resolver) recordFailure(ctx context.Context, span trace.Span, slug string, err error) {
	var kind string
	switch {
	case errors.Is(err, ErrPostNotFound):
		kind = "not_found"
		r.logger.Debug("post not found", "slug", slug)
	case errors.Is(err, ErrMalformedPost):
		kind = "malformed"
		r.logger.Error("malformed post", "slug", slug, "err", err)
	case errors.Is(err, ErrSourceUnavailable):
		kind = "unavailable"
		r.logger.Error("post source unavailable", "slug", slug, "err", err)
	default:
		kind = "internal"
		r.logger.Error("resolving post", "slug", slug, "err", err)
	}

	if kind != "not_found" {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
	}
	r.metrics.ResolveErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// List resolves every known post, newest first. Drafts and posts that fail to resolve are left out,
// failures are logged by Resolve.
func (r *Resolver) List(ctx context.Context) ([]*Post, error) {
	slugs := r.store.Slugs()
	posts := make([]*Post, 0, len(slugs))

	for _, slug := range slugs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		post, err := r.Resolve(ctx, slug)
		if err != nil || post.Draft {
			continue
		}
		posts = append(posts, post)
	}

	slices.SortFunc(posts, func(a, b *Post) int {
		if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Slug, b.Slug)
	})

	return posts, nil
}

// Stylesheet returns the static CSS every rendered post needs
func (r *Resolver) Stylesheet() string {
	return r.renderer.Stylesheet()
}
