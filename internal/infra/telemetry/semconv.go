// Package telemetry provides OpenTelemetry initialization and semantic conventions for shimmer.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys for shimmer telemetry.
// Following OpenTelemetry naming conventions: namespace.attribute_name
const (
	// AttrEnvironment specifies the deployment environment (dev/staging/prod) for every metric.
	AttrEnvironment = attribute.Key("environment")
	// AttrProvider identifies the upstream health data provider.
	AttrProvider = attribute.Key("provider")
	// AttrMeasure is the requested measure type (step_count, heart_rate, ...).
	AttrMeasure = attribute.Key("measure")
	// AttrShape records whether a retrieval ran as one range request or per day.
	AttrShape = attribute.Key("retrieval.shape")
	// AttrFineGrained marks intraday retrievals.
	AttrFineGrained = attribute.Key("retrieval.fine_grained")
	// AttrResult records the outcome of an operation (success or the error kind).
	AttrResult = attribute.Key("result")

	AttrHTTPStatus = attribute.Key("http.status_code")
	AttrHTTPMethod = attribute.Key("http.method")
	AttrErrorType  = attribute.Key("error.type")
	AttrReason     = attribute.Key("reason")
)

// Result values
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// RetrievalAttributes returns common attributes for retrieval metrics.
func RetrievalAttributes(environment, provider, measure string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrProvider.String(provider),
		AttrMeasure.String(measure),
	}
}

// HTTPAttributes returns attributes for outbound request metrics.
func HTTPAttributes(environment, provider, method string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrProvider.String(provider),
		AttrHTTPMethod.String(method),
		AttrHTTPStatus.Int(status),
	}
}

// ErrorAttributes returns attributes for error metrics.
func ErrorAttributes(environment, provider, errorType, reason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrProvider.String(provider),
		AttrErrorType.String(errorType),
		AttrReason.String(reason),
	}
}
