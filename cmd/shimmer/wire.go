//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/coachpo/shimmer/internal/app"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/infra/config"
	"github.com/coachpo/shimmer/internal/infra/export"
	"github.com/coachpo/shimmer/internal/observability"
	"github.com/coachpo/shimmer/internal/retrieval"
)

// App holds the components a retrieval run needs, built by Wire.
type App struct {
	Config       config.AppConfig
	Logger       *observability.ZapLogger
	Registry     *provider.Registry
	Orchestrator *retrieval.Orchestrator
	Saver        export.Saver
}

// InitializeApp builds App from command-line options.
// Caller must invoke the returned cleanup when done.
func InitializeApp(ctx context.Context, opts app.Options) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideLogger,
		app.ProvideTelemetry,
		app.ProvideRetrievalMetrics,
		app.ProvideHTTPMetrics,
		app.ProvideRegistry,
		app.ProvideTokenStore,
		app.ProvideRedis,
		app.ProvideHTTPClient,
		app.ProvideRefresher,
		app.ProvideOrchestrator,
		app.ProvideSaver,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
