package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"postengine/internal/media"
	"postengine/internal/middleware"
	"postengine/internal/storage"
	"postengine/internal/telemetry"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	cacheForAYear = 31536000
	cacheForADay  = 86400
	enqueueBudget = 10 * time.Second
)

// MediaService defines access to binary assets
type MediaService interface {
	Retrieve(ctx context.Context, id uuid.UUID) (io.ReadCloser, error)
	RetrieveKey(ctx context.Context, key string) (io.ReadCloser, error)
	GetRelativePath(id uuid.UUID) (string, error)
	Exists(ctx context.Context, key string) bool
}

// AssetHandler serves /assets/{key} where key is <uuid> for the original
// file or <uuid>_<width> for a webp variant
type AssetHandler struct {
	Assets    MediaService
	Processor media.ImageProcessorService
	Widths    []int
	Tracer    trace.Tracer
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

func parseAssetKey(key string) (uuid.UUID, int, error) {
	idStr, widthStr, hasWidth := strings.Cut(key, "_")

	id, err := uuid.FromString(idStr)
	if err != nil || id.IsNil() {
		return uuid.Nil, 0, fmt.Errorf("bad asset id %q", idStr)
	}
	if !hasWidth {
		return id, 0, nil
	}

	width, err := strconv.Atoi(widthStr)
	if err != nil || width <= 0 {
		return uuid.Nil, 0, fmt.Errorf("bad asset width %q", widthStr)
	}
	return id, width, nil
}

func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.Tracer.Start(r.Context(), "AssetHandler.ServeHTTP")
	defer span.End()

	logger := middleware.LoggerFrom(ctx, h.Logger)

	id, width, err := parseAssetKey(r.PathValue("key"))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if width != 0 && !slices.Contains(h.Widths, width) {
		http.NotFound(w, r)
		return
	}
	span.SetAttributes(attribute.String("asset.id", id.String()), attribute.Int("asset.width", width))

	if width != 0 {
		variantKey := media.VariantKey(id.String(), width)
		if h.Assets.Exists(ctx, variantKey) {
			h.serveVariant(ctx, w, r, variantKey, span)
			return
		}
		span.SetAttributes(attribute.String("cache.status", "miss"))
		w.Header().Set("X-Cache", "MISS")
	}
	h.Metrics.AssetRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("variant", "original")))

	relPath, err := h.Assets.GetRelativePath(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	h.enqueueVariants(ctx, id, relPath, logger)

	reader, err := h.Assets.Retrieve(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logger.Error("failed to retrieve asset", "id", id, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	mimeType := mime.TypeByExtension(path.Ext(relPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", cacheForADay))

	if _, err := io.Copy(w, reader); err != nil {
		logger.Warn("stream interrupted", "err", err)
	}
}

func (h *AssetHandler) serveVariant(ctx context.Context, w http.ResponseWriter, r *http.Request, key string, span trace.Span) {
	span.SetAttributes(attribute.String("cache.status", "hit"))
	h.Metrics.AssetRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("variant", "webp")))

	reader, err := h.Assets.RetrieveKey(ctx, key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer reader.Close()

	w.Header().Set("X-Cache", "HIT")
	w.Header().Set("Content-Type", "image/webp")
	// variants never change for a given key
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", cacheForAYear))

	if _, err := io.Copy(w, reader); err != nil {
		middleware.LoggerFrom(ctx, h.Logger).Warn("stream interrupted", "err", err)
	}
}

// enqueueVariants schedules every configured width for originals the processor can decode
func (h *AssetHandler) enqueueVariants(ctx context.Context, id uuid.UUID, relPath string, logger *slog.Logger) {
	if h.Processor == nil || !media.SupportsVariants(relPath) {
		return
	}

	// the request may end before the queue accepts the jobs
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueBudget)
	defer cancel()

	parent := trace.SpanFromContext(ctx).SpanContext()
	for _, width := range h.Widths {
		err := h.Processor.Enqueue(enqueueCtx, media.ImageJob{
			SourcePath: relPath,
			ID:         id.String(),
			Width:      width,
			ParentSpan: parent,
		})
		if err != nil {
			logger.Warn("could not schedule image variant", "id", id, "width", width, "err", err)
			return
		}
	}
}
