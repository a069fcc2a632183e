package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"postengine/internal/components"
	"postengine/internal/content"
	"postengine/internal/middleware"
	"postengine/internal/telemetry"

	"github.com/a-h/templ"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// retry hint for sources that could not be read
const unavailableRetryAfter = "30"

// BlogHandler serves the index and post pages
type BlogHandler struct {
	Site         components.Site
	Posts        content.PostService
	Index        *content.PostStore
	Cache        *content.RenderCache
	Stats        *ReadStats
	ServeDrafts  bool
	TrustedProxy bool
	Metrics      *telemetry.Metrics
	Logger       *slog.Logger
}

func (h *BlogHandler) logger(r *http.Request) *slog.Logger {
	return middleware.LoggerFrom(r.Context(), h.Logger)
}

// render buffers the component so a failing render still produces a clean 500
func (h *BlogHandler) render(w http.ResponseWriter, r *http.Request, code int, component templ.Component) {
	var buf bytes.Buffer
	if err := component.Render(r.Context(), &buf); err != nil {
		h.logger(r).Error("rendering page", "path", r.URL.Path, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger(r).Warn("writing response", "path", r.URL.Path, "err", err)
	}
}

func (h *BlogHandler) HandleIndex() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.Posts.List(r.Context())
		if err != nil {
			h.InternalError(w, r, err)
			return
		}

		h.render(w, r, http.StatusOK, components.IndexPage(h.Site, posts))
	})
}

func (h *BlogHandler) HandlePost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")

		post, err := h.Posts.Resolve(r.Context(), slug)
		if err != nil {
			h.resolveError(w, r, slug, err)
			return
		}

		if post.Draft && !h.ServeDrafts {
			h.NotFound(w, r)
			return
		}

		h.Metrics.PostViewsTotal.Add(r.Context(), 1, metric.WithAttributes(attribute.String("post.slug", slug)))
		if h.Stats != nil {
			h.Stats.Record(middleware.ClientIP(r, h.TrustedProxy), slug)
		}

		h.render(w, r, http.StatusOK, components.PostPage(h.Site, post, h.Posts.Stylesheet()))
	})
}

// resolveError maps resolver failures onto pages, the resolver has already logged them
func (h *BlogHandler) resolveError(w http.ResponseWriter, r *http.Request, slug string, err error) {
	switch {
	case errors.Is(err, content.ErrPostNotFound):
		h.NotFound(w, r)
	case errors.Is(err, content.ErrMalformedPost):
		h.renderError(w, r, http.StatusInternalServerError, components.MalformedDescription)
	case errors.Is(err, content.ErrSourceUnavailable):
		w.Header().Set("Retry-After", unavailableRetryAfter)
		h.renderError(w, r, http.StatusServiceUnavailable, components.UnavailableDescription)
	default:
		h.InternalError(w, r, err)
	}
}
