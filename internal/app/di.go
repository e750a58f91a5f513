// Package app wires shimmer components for the command-line binaries.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	dbmigrations "github.com/coachpo/shimmer/db/migrations"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/domain/tokenstore"
	"github.com/coachpo/shimmer/internal/infra/auth"
	"github.com/coachpo/shimmer/internal/infra/config"
	"github.com/coachpo/shimmer/internal/infra/export"
	"github.com/coachpo/shimmer/internal/infra/httpclient"
	"github.com/coachpo/shimmer/internal/infra/lock/redislock"
	"github.com/coachpo/shimmer/internal/infra/persistence/migrations"
	"github.com/coachpo/shimmer/internal/infra/persistence/postgres"
	"github.com/coachpo/shimmer/internal/infra/telemetry"
	"github.com/coachpo/shimmer/internal/observability"
	"github.com/coachpo/shimmer/internal/retrieval"
)

const instrumentationName = "github.com/coachpo/shimmer"

// Options carries command-line choices into the providers below.
type Options struct {
	ConfigPath string
	Format     string
	// AccessToken seeds an in-memory token store for UserID and Provider
	// instead of opening the database.
	AccessToken string
	UserID      string
	Provider    string
}

// ProvideConfig loads the YAML configuration, or the defaults when no path is given.
func ProvideConfig(ctx context.Context, opts Options) (config.AppConfig, error) {
	if strings.TrimSpace(opts.ConfigPath) == "" {
		return config.DefaultAppConfig(), nil
	}
	cfg, err := config.Load(ctx, opts.ConfigPath)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// ProvideLogger builds the zap logger and installs it as the process logger.
func ProvideLogger(cfg config.AppConfig) (*observability.ZapLogger, func(), error) {
	logger, err := observability.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format, "shimmer")
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	observability.SetLogger(logger)
	return logger, func() {
		_ = logger.Sync()
		observability.SetLogger(nil)
	}, nil
}

// ProvideTelemetry starts the metrics exporter.
func ProvideTelemetry(ctx context.Context, cfg config.AppConfig) (*telemetry.Provider, func(), error) {
	tp, err := telemetry.NewProvider(ctx, telemetry.ConfigFrom(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("initialize telemetry: %w", err)
	}
	return tp, func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			observability.Log().Error("telemetry shutdown", observability.Err(err))
		}
	}, nil
}

// ProvideRetrievalMetrics builds the retrieval instruments.
func ProvideRetrievalMetrics(tp *telemetry.Provider) *telemetry.RetrievalMetrics {
	return telemetry.NewRetrievalMetrics(tp.Meter(instrumentationName))
}

// ProvideHTTPMetrics builds the transport instruments.
func ProvideHTTPMetrics(tp *telemetry.Provider) *telemetry.HTTPMetrics {
	return telemetry.NewHTTPMetrics(tp.Meter(instrumentationName))
}

// ProvideRegistry returns the built-in providers with configured overrides applied.
func ProvideRegistry(cfg config.AppConfig) (*provider.Registry, error) {
	reg := provider.Builtin()
	if err := provider.ApplyOverrides(reg, config.NewEndpointStore(cfg.Providers)); err != nil {
		return nil, fmt.Errorf("apply provider overrides: %w", err)
	}
	return reg, nil
}

// ProvideTokenStore opens the PostgreSQL token store, migrating it when
// configured. A static access token short-circuits to an in-memory store.
func ProvideTokenStore(ctx context.Context, cfg config.AppConfig, opts Options) (tokenstore.Store, func(), error) {
	if opts.AccessToken != "" {
		store := tokenstore.NewMemory(tokenstore.Token{
			UserID:      strings.TrimSpace(opts.UserID),
			Provider:    strings.ToLower(strings.TrimSpace(opts.Provider)),
			AccessToken: opts.AccessToken,
			TokenType:   "Bearer",
			UpdatedAt:   time.Now().UTC(),
		})
		return store, func() {}, nil
	}
	if cfg.Database.RunMigrations {
		if err := migrations.ApplyFS(ctx, cfg.Database.DSN, dbmigrations.Files, nil); err != nil {
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store := postgres.New(pool)
	return store.Tokens(), store.Close, nil
}

// ProvideRedis connects to Redis when it is enabled and returns nil otherwise.
func ProvideRedis(ctx context.Context, cfg config.AppConfig) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client := redislock.NewClient(cfg.Redis)
	if err := redislock.Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideHTTPClient builds the rate-limited provider transport.
func ProvideHTTPClient(cfg config.AppConfig, metrics *telemetry.HTTPMetrics) *httpclient.Client {
	rates := make(map[string]float64, len(cfg.Providers))
	for name, p := range cfg.Providers {
		if p.RequestsPerSecond > 0 {
			rates[name] = p.RequestsPerSecond
		}
	}
	return httpclient.New(httpclient.Options{HTTP: cfg.HTTP, ProviderRates: rates, Metrics: metrics})
}

// ProvideRefresher builds the token refresher. The Redis lock and cache are
// attached only when a client is available.
func ProvideRefresher(cfg config.AppConfig, reg *provider.Registry, store tokenstore.Store, client *httpclient.Client, rdb *redis.Client, metrics *telemetry.HTTPMetrics) *auth.Refresher {
	opts := auth.Options{
		Registry: reg,
		Store:    store,
		Auth:     cfg.Auth,
		Rest:     client.Resty(),
		Metrics:  metrics,
	}
	if rdb != nil {
		opts.Locker = redislock.NewLocker(rdb, cfg.Redis.LockTTL)
		opts.Cache = redislock.NewTokenCache(rdb, cfg.Redis.CacheTTL)
	}
	return auth.NewRefresher(opts)
}

// ProvideOrchestrator builds the retrieval orchestrator.
func ProvideOrchestrator(cfg config.AppConfig, reg *provider.Registry, client *httpclient.Client, tokens *auth.Refresher, metrics *telemetry.RetrievalMetrics) *retrieval.Orchestrator {
	return retrieval.New(retrieval.Options{
		Registry:  reg,
		Transport: client,
		Tokens:    tokens,
		Retrieval: cfg.Retrieval,
		Metrics:   metrics,
	})
}

// ProvideSaver picks the output writer.
// Returns error if the format is not supported.
func ProvideSaver(opts Options) (export.Saver, error) {
	saver := export.NewSaver(opts.Format)
	if saver == nil {
		return nil, fmt.Errorf("unsupported output format %q (use: json, parquet)", opts.Format)
	}
	return saver, nil
}
