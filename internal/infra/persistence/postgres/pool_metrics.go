package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/shimmer/internal/infra/telemetry"
	"github.com/coachpo/shimmer/internal/observability"
)

type poolGauge struct {
	name        string
	description string
	read        func(*pgxpool.Stat) int32
}

var poolGauges = []poolGauge{
	{"shimmer_tokenstore_connections_total", "Token store connections (idle + acquired + constructing)", (*pgxpool.Stat).TotalConns},
	{"shimmer_tokenstore_connections_idle", "Token store connections ready for checkout", (*pgxpool.Stat).IdleConns},
	{"shimmer_tokenstore_connections_acquired", "Token store connections held by a load or save", (*pgxpool.Stat).AcquiredConns},
	{"shimmer_tokenstore_connections_constructing", "Token store connections being opened", (*pgxpool.Stat).ConstructingConns},
}

// ObservePoolMetrics registers one observable gauge per pool statistic of the
// token store. Registration stops at the first meter error.
func ObservePoolMetrics(pool *pgxpool.Pool, poolName string) {
	if pool == nil {
		return
	}
	name := strings.TrimSpace(poolName)
	if name == "" {
		name = "tokens"
	}
	attrs := metric.WithAttributes(
		attribute.String("environment", telemetry.Environment()),
		attribute.String("db_pool", name),
	)
	meter := otel.Meter("shimmer.tokenstore")
	for _, gauge := range poolGauges {
		read := gauge.read
		_, err := meter.Int64ObservableGauge(gauge.name,
			metric.WithDescription(gauge.description),
			metric.WithUnit("{connection}"),
			metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
				observer.Observe(int64(read(pool.Stat())), attrs)
				return nil
			}),
		)
		if err != nil {
			observability.Log().Error("register pool gauge", observability.F("gauge", gauge.name), observability.Err(err))
			return
		}
	}
}
