package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricRetrievalRequests    = "shimmer.retrieval.requests"
	MetricRetrievalPages       = "shimmer.retrieval.pages"
	MetricRetrievalDataPoints  = "shimmer.retrieval.data_points"
	MetricRetrievalEntryErrors = "shimmer.retrieval.entry_errors"
	MetricRetrievalDuration    = "shimmer.retrieval.duration"
	MetricHTTPRequests         = "shimmer.http.requests"
	MetricHTTPRetries          = "shimmer.http.retries"
	MetricHTTPDuration         = "shimmer.http.duration"
	MetricTokenRefreshes       = "shimmer.auth.refreshes"
)

// RetrievalMetrics records orchestrator activity. A nil value records nothing.
type RetrievalMetrics struct {
	requests    metric.Int64Counter
	pages       metric.Int64Counter
	dataPoints  metric.Int64Counter
	entryErrors metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewRetrievalMetrics creates the retrieval instruments on meter, or on the global
// meter provider when meter is nil.
func NewRetrievalMetrics(meter metric.Meter) *RetrievalMetrics {
	if meter == nil {
		meter = otel.Meter("retrieval")
	}
	m := new(RetrievalMetrics)
	m.requests, _ = meter.Int64Counter(MetricRetrievalRequests,
		metric.WithDescription("Number of retrieval requests by outcome"),
		metric.WithUnit("{request}"))
	m.pages, _ = meter.Int64Counter(MetricRetrievalPages,
		metric.WithDescription("Number of upstream pages fetched"),
		metric.WithUnit("{page}"))
	m.dataPoints, _ = meter.Int64Counter(MetricRetrievalDataPoints,
		metric.WithDescription("Number of normalized data points produced"),
		metric.WithUnit("{point}"))
	m.entryErrors, _ = meter.Int64Counter(MetricRetrievalEntryErrors,
		metric.WithDescription("Number of entries that failed to map"),
		metric.WithUnit("{entry}"))
	m.duration, _ = meter.Float64Histogram(MetricRetrievalDuration,
		metric.WithDescription("End-to-end retrieval duration"),
		metric.WithUnit("ms"))
	return m
}

// RecordRequest counts a finished retrieval and its latency.
func (m *RetrievalMetrics) RecordRequest(ctx context.Context, provider, measure, shape, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := append(RetrievalAttributes(Environment(), provider, measure), AttrShape.String(shape), AttrResult.String(result))
	if m.requests != nil {
		m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
	}
}

// RecordPage counts one page together with what it produced.
func (m *RetrievalMetrics) RecordPage(ctx context.Context, provider, measure string, points, entryErrors int) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(RetrievalAttributes(Environment(), provider, measure)...)
	if m.pages != nil {
		m.pages.Add(ctx, 1, opt)
	}
	if m.dataPoints != nil && points > 0 {
		m.dataPoints.Add(ctx, int64(points), opt)
	}
	if m.entryErrors != nil && entryErrors > 0 {
		m.entryErrors.Add(ctx, int64(entryErrors), opt)
	}
}

// HTTPMetrics records outbound transport activity. A nil value records nothing.
type HTTPMetrics struct {
	requests  metric.Int64Counter
	retries   metric.Int64Counter
	refreshes metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewHTTPMetrics creates the transport instruments.
func NewHTTPMetrics(meter metric.Meter) *HTTPMetrics {
	if meter == nil {
		meter = otel.Meter("httpclient")
	}
	m := new(HTTPMetrics)
	m.requests, _ = meter.Int64Counter(MetricHTTPRequests,
		metric.WithDescription("Number of upstream HTTP round trips"),
		metric.WithUnit("{request}"))
	m.retries, _ = meter.Int64Counter(MetricHTTPRetries,
		metric.WithDescription("Number of retried upstream HTTP round trips"),
		metric.WithUnit("{retry}"))
	m.refreshes, _ = meter.Int64Counter(MetricTokenRefreshes,
		metric.WithDescription("Number of OAuth2 token refreshes by outcome"),
		metric.WithUnit("{refresh}"))
	m.duration, _ = meter.Float64Histogram(MetricHTTPDuration,
		metric.WithDescription("Upstream HTTP round trip duration"),
		metric.WithUnit("ms"))
	return m
}

// RecordRoundTrip counts one upstream response.
func (m *HTTPMetrics) RecordRoundTrip(ctx context.Context, provider, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(HTTPAttributes(Environment(), provider, method, status)...)
	if m.requests != nil {
		m.requests.Add(ctx, 1, opt)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, opt)
	}
}

// RecordRetry counts one retry with the reason that triggered it.
func (m *HTTPMetrics) RecordRetry(ctx context.Context, provider, reason string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(
		AttrEnvironment.String(Environment()),
		AttrProvider.String(provider),
		AttrReason.String(reason),
	))
}

// RecordRefresh counts one token refresh attempt.
func (m *HTTPMetrics) RecordRefresh(ctx context.Context, provider, result string) {
	if m == nil || m.refreshes == nil {
		return
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes([]attribute.KeyValue{
		AttrEnvironment.String(Environment()),
		AttrProvider.String(provider),
		AttrResult.String(result),
	}...))
}
