package router

import (
	"log/slog"
	"net/http"

	"postengine/internal/config"
	"postengine/internal/handlers"
	"postengine/internal/middleware"
	"postengine/internal/telemetry"

	"go.opentelemetry.io/otel/trace"
)

// RouterDependencies holds everything needed to register routes.
type RouterDependencies struct {
	Cfg          *config.Config
	Logger       *slog.Logger
	BlogHandler  *handlers.BlogHandler
	AssetHandler *handlers.AssetHandler
	Limiter      *middleware.IPRateLimiter
	Security     *middleware.SecurityHeaders
	Tracer       trace.Tracer
	Metrics      *telemetry.Metrics
	StaticDir    string
}

func NewRouter(deps RouterDependencies) http.Handler {
	appMux := http.NewServeMux()

	// static files
	fs := http.FileServer(http.Dir(deps.StaticDir))
	appMux.Handle("GET /static/", http.StripPrefix("/static/", fs))
	appMux.Handle("GET /assets/{key}", deps.AssetHandler)

	// routes
	appMux.Handle("GET /{$}", deps.BlogHandler.HandleIndex())
	appMux.Handle("GET /blog/{slug}", deps.BlogHandler.HandlePost())

	appMux.HandleFunc("/", deps.BlogHandler.NotFound)

	middlewareStack := []middleware.Middleware{
		middleware.Recover(deps.Logger),
	}

	if deps.Cfg.Metrics.EnableTelemetry {
		// order matters so don't append
		middlewareStack = append(middlewareStack, middleware.Observability(deps.Tracer, deps.Metrics, deps.Logger))
	}

	middlewareStack = append(middlewareStack,
		deps.Security.Middleware(),
		deps.Limiter.Middleware(deps.Logger),
		middleware.Logger(deps.Logger),
	)

	appHandler := middleware.Chain(appMux, middlewareStack...)

	rootMux := http.NewServeMux()

	rootMux.Handle("GET /metrics", deps.BlogHandler.HandleMetrics())

	// lightweight for docker keepalive
	rootMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	rootMux.Handle("/", appHandler)

	return rootMux
}
