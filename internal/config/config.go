package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type HTTPTimeoutsConfig struct {
	Read     time.Duration
	Idle     time.Duration
	Write    time.Duration
	Shutdown time.Duration // how long we give the shutdown process to gracefully terminate
}

type HTTPConfig struct {
	Port     int
	Timeouts HTTPTimeoutsConfig
}

type RateLimiterConfig struct {
	RPS   int
	Burst int
}

type LoggerConfig struct {
	Level slog.Level
}

type AppConfig struct {
	Name           string
	Description    string
	OGImage        string
	Environment    string // 'dev' | 'prod'
	SourcesDir     string
	AssetNamespace string
}

const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

type StorageConfig struct {
	Backend     string // 'local' | 's3' | 'sqlite'
	SyncOnStart bool   // upload missing local sources to a remote backend at startup
	SQLitePath  string
	S3          S3Config
}

type RenderConfig struct {
	HighlightStyle string
	CacheEnabled   bool
}

type ImagesConfig struct {
	Workers int
	Widths  []int
}

type ProxyConfig struct {
	Trusted bool
}

type TelemetryConfig struct {
	EnableTelemetry bool
	OtelEndpoint    string
}

type Config struct {
	App     AppConfig
	Storage StorageConfig
	Render  RenderConfig
	Images  ImagesConfig
	Proxy   ProxyConfig
	HTTP    HTTPConfig
	Limiter RateLimiterConfig
	Logger  LoggerConfig
	Metrics TelemetryConfig
}

func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:           "Your blog",
			Description:    "Notes, posts and the occasional rant",
			Environment:    "prod",
			SourcesDir:     "./sources",
			AssetNamespace: "570e8400-c29b-45d4-a716-446655440700",
		},
		Storage: StorageConfig{
			Backend:    BackendLocal,
			SQLitePath: "postengine.db",
			S3: S3Config{
				Region: "garage",
			},
		},
		Render: RenderConfig{
			// Common themes: "monokai", "dracula", "github", "solarized-dark"
			HighlightStyle: "solarized-dark",
			CacheEnabled:   true,
		},
		Images: ImagesConfig{
			Workers: 2,
			Widths:  []int{800, 1200, 1920},
		},
		Proxy: ProxyConfig{
			Trusted: true,
		},
		HTTP: HTTPConfig{
			Port: 3000,
			Timeouts: HTTPTimeoutsConfig{
				Read:     5 * time.Second,
				Write:    10 * time.Second,
				Idle:     10 * time.Minute,
				Shutdown: 10 * time.Second,
			},
		},
		Limiter: RateLimiterConfig{
			RPS:   20,
			Burst: 50,
		},
		Logger: LoggerConfig{
			Level: slog.LevelInfo,
		},
		Metrics: TelemetryConfig{
			OtelEndpoint: "localhost:4318",
		},
	}
}

func LoadWithDefaults() *Config {
	defaults := DefaultConfig()
	return &Config{
		App: AppConfig{
			Name:           getEnv("APP_NAME", defaults.App.Name),
			Description:    getEnv("APP_DESCRIPTION", defaults.App.Description),
			OGImage:        getEnv("APP_OG_IMAGE", defaults.App.OGImage),
			Environment:    getEnv("APP_ENV", defaults.App.Environment),
			SourcesDir:     getEnv("APP_SOURCES_DIR", defaults.App.SourcesDir),
			AssetNamespace: getEnv("ASSET_NAMESPACE", defaults.App.AssetNamespace),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", defaults.Storage.Backend)),
			SyncOnStart: getEnvAsBool("STORAGE_SYNC_ON_START", defaults.Storage.SyncOnStart),
			SQLitePath:  getEnv("DB_PATH", defaults.Storage.SQLitePath),
			S3: S3Config{
				Endpoint:  getEnv("S3_ENDPOINT", defaults.Storage.S3.Endpoint),
				Region:    getEnv("S3_REGION", defaults.Storage.S3.Region),
				AccessKey: getEnv("S3_ACCESS_KEY", defaults.Storage.S3.AccessKey),
				SecretKey: getEnv("S3_SECRET_KEY", defaults.Storage.S3.SecretKey),
				Bucket:    getEnv("S3_BUCKET", defaults.Storage.S3.Bucket),
			},
		},
		Render: RenderConfig{
			HighlightStyle: getEnv("RENDER_HIGHLIGHT_STYLE", defaults.Render.HighlightStyle),
			CacheEnabled:   getEnvAsBool("RENDER_CACHE_ENABLED", defaults.Render.CacheEnabled),
		},
		Images: ImagesConfig{
			Workers: getEnvAsInt("IMAGE_WORKERS", defaults.Images.Workers),
			Widths:  getEnvAsIntList("IMAGE_WIDTHS", defaults.Images.Widths),
		},
		Proxy: ProxyConfig{
			Trusted: getEnvAsBool("PROXY_TRUSTED", defaults.Proxy.Trusted),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", defaults.HTTP.Port), // don't forget to add ':'
			Timeouts: HTTPTimeoutsConfig{
				Read:     getEnvAsDuration("HTTP_READ_TIMEOUT", defaults.HTTP.Timeouts.Read),
				Write:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", defaults.HTTP.Timeouts.Write),
				Idle:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", defaults.HTTP.Timeouts.Idle),
				Shutdown: getEnvAsDuration("HTTP_SHUTDOWN_DELAY", defaults.HTTP.Timeouts.Shutdown),
			},
		},
		Limiter: RateLimiterConfig{
			RPS:   getEnvAsInt("LIMITER_RPS", defaults.Limiter.RPS),
			Burst: getEnvAsInt("LIMITER_BURST", defaults.Limiter.Burst),
		},
		Logger: LoggerConfig{
			Level: getEnvAsLogLevel("LOGGER_LEVEL", defaults.Logger.Level),
		},
		Metrics: TelemetryConfig{
			EnableTelemetry: getEnvAsBool("ENABLE_TELEMETRY", false),
			OtelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", defaults.Metrics.OtelEndpoint),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

// getEnvAsIntList reads a comma separated list, e.g. "800,1200"; any bad entry discards the whole value
func getEnvAsIntList(key string, fallback []int) []int {
	valueStr, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(valueStr) == "" {
		return slices.Clone(fallback)
	}

	var values []int
	for part := range strings.SplitSeq(valueStr, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return slices.Clone(fallback)
		}
		values = append(values, value)
	}
	return values
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsLogLevel(key string, fallback slog.Level) slog.Level {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	switch strings.ToLower(valueStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("APP_NAME must not be empty")
	}
	if s := strings.ToLower(c.App.Environment); s != "dev" && s != "prod" {
		return fmt.Errorf(`APP_ENV must be "dev" or "prod"`)
	}
	if c.App.SourcesDir == "" {
		return fmt.Errorf("APP_SOURCES_DIR must not be empty")
	}
	switch c.Storage.Backend {
	case BackendLocal:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("DB_PATH must not be empty with the sqlite backend")
		}
	case BackendS3:
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET must be set with the s3 backend")
		}
		if c.Storage.S3.AccessKey == "" || c.Storage.S3.SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set with the s3 backend")
		}
	default:
		return fmt.Errorf(`STORAGE_BACKEND must be "local", "s3" or "sqlite", got %q`, c.Storage.Backend)
	}
	if c.Render.HighlightStyle == "" {
		return fmt.Errorf("RENDER_HIGHLIGHT_STYLE must not be empty")
	}
	if c.Images.Workers <= 0 {
		return fmt.Errorf("IMAGE_WORKERS must be positive, got %d", c.Images.Workers)
	}
	if len(c.Images.Widths) == 0 {
		return fmt.Errorf("IMAGE_WIDTHS must list at least one width")
	}
	for _, w := range c.Images.Widths {
		if w <= 0 {
			return fmt.Errorf("IMAGE_WIDTHS must be positive, got %d", w)
		}
	}
	// stay away from well-known ports
	if p := c.HTTP.Port; p < 1024 || p > 65535 {
		return fmt.Errorf("HTTP_PORT must be a positive int between 1024 and 65535, got %d", p)
	}
	if c.HTTP.Timeouts.Read <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT must be positive (e.g., 5s), got %s", c.HTTP.Timeouts.Read)
	}
	if c.HTTP.Timeouts.Write <= 0 {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT must be positive (e.g., 10s), got %s", c.HTTP.Timeouts.Write)
	}
	if c.HTTP.Timeouts.Idle <= 0 {
		return fmt.Errorf("HTTP_IDLE_TIMEOUT must be positive (e.g., 2m), got %s", c.HTTP.Timeouts.Idle)
	}
	if c.HTTP.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_DELAY must be positive (e.g., 10s), got %s", c.HTTP.Timeouts.Shutdown)
	}
	if c.Limiter.RPS <= 0 {
		return fmt.Errorf("LIMITER_RPS must be positive, got %d", c.Limiter.RPS)
	}
	if c.Limiter.Burst <= 0 {
		return fmt.Errorf("LIMITER_BURST must be positive, got %d", c.Limiter.Burst)
	}
	if _, err := uuid.FromString(c.App.AssetNamespace); err != nil {
		return fmt.Errorf("ASSET_NAMESPACE must be a valid UUID")
	}

	// c.Proxy.Trusted will default to true if not valid
	// c.Logger.Level will default to Info if not valid
	return nil
}
