package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all the metric instruments for the post engine
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
	// posts
	PostsLoaded      metric.Int64Gauge
	PostViewsTotal   metric.Int64Counter
	ResolveErrors    metric.Int64Counter
	RenderDuration   metric.Float64Histogram
	CacheHitsTotal   metric.Int64Counter
	CacheMissesTotal metric.Int64Counter
	// limiter
	RateLimitHitsTotal metric.Int64Counter
	// assets
	AssetRequestsTotal metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests: %w", err)
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration",
		metric.WithDescription("HTTP request latency in ms"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration: %w", err)
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_active_requests: %w", err)
	}

	postsLoaded, err := meter.Int64Gauge(
		"posts_loaded",
		metric.WithDescription("Number of post sources currently indexed"),
		metric.WithUnit("{post}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts_loaded: %w", err)
	}

	postViewsTotal, err := meter.Int64Counter(
		"post_views",
		metric.WithDescription("Total number of post views"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create post_views: %w", err)
	}

	resolveErrors, err := meter.Int64Counter(
		"post_resolve_errors",
		metric.WithDescription("Post resolutions that failed, by kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create post_resolve_errors: %w", err)
	}

	renderDuration, err := meter.Float64Histogram(
		"post_render_duration",
		metric.WithDescription("Time spent parsing and rendering a post in ms"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create post_render_duration: %w", err)
	}

	cacheHitsTotal, err := meter.Int64Counter(
		"cache_hits",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_hits: %w", err)
	}

	cacheMissesTotal, err := meter.Int64Counter(
		"cache_misses",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_misses: %w", err)
	}

	rateLimitHitsTotal, err := meter.Int64Counter(
		"rate_limit_hits",
		metric.WithDescription("Number of rate limiter blocked requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_hits: %w", err)
	}

	assetRequestsTotal, err := meter.Int64Counter(
		"asset_requests",
		metric.WithDescription("Total number of assets requested"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset_requests: %w", err)
	}

	return &Metrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		HTTPActiveRequests:  httpActiveRequests,
		PostsLoaded:         postsLoaded,
		PostViewsTotal:      postViewsTotal,
		ResolveErrors:       resolveErrors,
		RenderDuration:      renderDuration,
		CacheHitsTotal:      cacheHitsTotal,
		CacheMissesTotal:    cacheMissesTotal,
		RateLimitHitsTotal:  rateLimitHitsTotal,
		AssetRequestsTotal:  assetRequestsTotal,
	}, nil
}

// RecordPostsLoaded updates the gauge with current post count
func (m *Metrics) RecordPostsLoaded(ctx context.Context, count int) {
	m.PostsLoaded.Record(ctx, int64(count))
}
