package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"postengine/internal/components"
	"postengine/internal/config"
	"postengine/internal/content"
	"postengine/internal/handlers"
	"postengine/internal/media"
	"postengine/internal/middleware"
	"postengine/internal/router"
	"postengine/internal/storage"
	"postengine/internal/storage/sqlite"
	"postengine/internal/telemetry"

	"github.com/gofrs/uuid/v5"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

const staticDir = "static"

type App struct {
	Server *http.Server
	Logger *slog.Logger
	Config *config.Config
}

func NewApp(cfg *config.Config, logger *slog.Logger, handler http.Handler) *App {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.Timeouts.Read,
		WriteTimeout: cfg.HTTP.Timeouts.Write,
		IdleTimeout:  cfg.HTTP.Timeouts.Idle,
	}

	return &App{
		Server: server,
		Logger: logger,
		Config: cfg,
	}
}

func (a *App) Run(ctx context.Context) error {
	srvErrChan := make(chan error, 1)

	go func() {
		a.Logger.Info("server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErrChan <- err
		}
	}()

	select {
	case err := <-srvErrChan:
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}

	// attempt clean shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.Timeouts.Shutdown)
	defer cancel()

	a.Logger.Info("draining connections...")
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		// graceful shutdown timed out
		if closeErr := a.Server.Close(); closeErr != nil {
			return fmt.Errorf("graceful shutdown failed: %w", errors.Join(err, closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.Logger.Info("server stopped")
	return nil
}

// openStorage returns the configured provider and a func releasing it
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Provider, func() error, error) {
	noop := func() error { return nil }

	var (
		provider storage.Provider
		closer   = noop
	)
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		return storage.NewLocalStorage(cfg.App.SourcesDir), noop, nil
	case config.BackendS3:
		s3Store, err := storage.NewS3Store(cfg.Storage.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("could not create s3 store: %w", err)
		}
		provider = s3Store
	case config.BackendSQLite:
		dbStore, err := sqlite.NewStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open sqlite store: %w", err)
		}
		provider, closer = dbStore, dbStore.Close
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.SyncOnStart {
		uploaded, err := storage.SyncSources(ctx, provider, cfg.App.SourcesDir, logger)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("could not sync sources: %w", err)
		}
		logger.Info("sources synced", "backend", cfg.Storage.Backend, "uploaded", uploaded)
	}

	return provider, closer, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tel, err := telemetry.Init(ctx, cfg.App.Name, version, cfg.App.Environment, cfg.Metrics.OtelEndpoint, cfg.Metrics.EnableTelemetry, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	provider, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	assets := media.NewAssetManager(provider, uuid.FromStringOrNil(cfg.App.AssetNamespace))
	indexed, err := assets.Index(ctx, logger)
	if err != nil {
		return err
	}
	logger.Info("assets indexed", "count", indexed)

	// duplicate or invalid slugs abort startup
	index := content.NewPostStore(provider, logger)
	if err := index.Load(ctx); err != nil {
		return fmt.Errorf("could not load posts: %w", err)
	}
	tel.Metrics.RecordPostsLoaded(ctx, index.Len())

	renderer, err := content.NewMarkDownRenderer(cfg.Render.HighlightStyle, assets, cfg.Images.Widths...)
	if err != nil {
		return err
	}

	var cache *content.RenderCache
	if cfg.Render.CacheEnabled {
		cache = content.NewRenderCache()
	}

	resolver := content.NewResolver(content.ResolverDependencies{
		Store:    index,
		Renderer: renderer,
		Cache:    cache,
		Logger:   logger,
		Tracer:   tel.Tracer,
		Metrics:  tel.Metrics,
	})

	processor := media.NewProcessor(ctx, provider, cfg.Images.Workers, logger)

	isDev := cfg.App.Environment == "dev"
	blogHandler := &handlers.BlogHandler{
		Site: components.Site{
			Title:       cfg.App.Name,
			Description: cfg.App.Description,
			OGImage:     cfg.App.OGImage,
		},
		Posts:        resolver,
		Index:        index,
		Cache:        cache,
		Stats:        handlers.NewReadStats(ctx),
		ServeDrafts:  isDev,
		TrustedProxy: cfg.Proxy.Trusted,
		Metrics:      tel.Metrics,
		Logger:       logger,
	}
	assetHandler := &handlers.AssetHandler{
		Assets:    assets,
		Processor: processor,
		Widths:    cfg.Images.Widths,
		Tracer:    tel.Tracer,
		Metrics:   tel.Metrics,
		Logger:    logger,
	}

	handler := router.NewRouter(router.RouterDependencies{
		Cfg:          cfg,
		Logger:       logger,
		BlogHandler:  blogHandler,
		AssetHandler: assetHandler,
		Limiter:      middleware.NewIPRateLimiter(ctx, cfg.Limiter.RPS, cfg.Limiter.Burst, cfg.Proxy.Trusted, tel.Metrics),
		Security:     middleware.NewSecurityHeaders(!isDev),
		Tracer:       tel.Tracer,
		Metrics:      tel.Metrics,
		StaticDir:    staticDir,
	})

	if err := NewApp(cfg, logger, handler).Run(ctx); err != nil {
		return err
	}

	// workers stop with ctx
	processor.Wait()
	return nil
}

func main() {
	cfg := config.LoadWithDefaults()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Logger.Level})
	logger := slog.New(logHandler).With("app", cfg.App.Name)

	logger.Info("application starting", "pid", os.Getpid(), "version", version)
	logger.Info("configuration loaded",
		"name", cfg.App.Name,
		"sources", cfg.App.SourcesDir,
		"backend", cfg.Storage.Backend,
		"env", cfg.App.Environment,
		"port", cfg.HTTP.Port,
		"render_cache", cfg.Render.CacheEnabled,
		"rate_limit_rps", cfg.Limiter.RPS,
		"trusted_proxy", cfg.Proxy.Trusted,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Error("application failed", "err", err)
		stop()
		os.Exit(1)
	}

	logger.Info("application exited successfully")
}
