package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum, got %T", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRetrievalMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewRetrievalMetrics(mp.Meter("test"))

	ctx := context.Background()
	m.RecordPage(ctx, "fitbit", "step_count", 3, 1)
	m.RecordPage(ctx, "fitbit", "step_count", 0, 0)
	m.RecordRequest(ctx, "fitbit", "step_count", "RANGE", ResultSuccess, 40*time.Millisecond)

	got := collect(t, reader)
	if n := sumOf(t, got[MetricRetrievalPages]); n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}
	if n := sumOf(t, got[MetricRetrievalDataPoints]); n != 3 {
		t.Fatalf("expected 3 points, got %d", n)
	}
	if n := sumOf(t, got[MetricRetrievalEntryErrors]); n != 1 {
		t.Fatalf("expected 1 entry error, got %d", n)
	}
	if n := sumOf(t, got[MetricRetrievalRequests]); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
	if _, ok := got[MetricRetrievalDuration].(metricdata.Histogram[float64]); !ok {
		t.Fatalf("expected duration histogram, got %T", got[MetricRetrievalDuration])
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var r *RetrievalMetrics
	r.RecordPage(context.Background(), "p", "m", 1, 1)
	r.RecordRequest(context.Background(), "p", "m", "RANGE", ResultError, time.Second)
	var h *HTTPMetrics
	h.RecordRoundTrip(context.Background(), "p", "GET", 200, time.Second)
	h.RecordRetry(context.Background(), "p", "429")
	h.RecordRefresh(context.Background(), "p", ResultSuccess)
}

func TestEnvironmentDefaultsToDev(t *testing.T) {
	SetEnvironment("")
	if Environment() != "dev" {
		t.Fatalf("unexpected environment %q", Environment())
	}
	SetEnvironment(" PROD ")
	defer SetEnvironment("")
	if Environment() != "prod" {
		t.Fatalf("unexpected environment %q", Environment())
	}
}

func TestStripScheme(t *testing.T) {
	if got := stripScheme("https://collector:4318"); got != "collector:4318" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}
