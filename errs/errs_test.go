package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesContext(t *testing.T) {
	err := New(
		"fitbit",
		KindUpstreamHTTP,
		WithHTTP(503),
		WithMeasure("step_count"),
		WithLocation("day=2024-03-02"),
		WithLocation("page=3"),
		WithMessage("provider unavailable"),
		WithMetadata(map[string]string{
			"endpoint": "/1/user/-/activities/steps",
			"attempts": "4",
		}),
		WithField("request_id", "req-123"),
		WithRemediation("retry later"),
		WithCause(errors.New("fitbit http 503")),
	)

	out := err.Error()
	for _, want := range []string{
		"provider=fitbit",
		"kind=upstream_http",
		"measure=step_count",
		`at="day=2024-03-02 page=3"`,
		"http=503",
		`meta=attempts="4",endpoint="/1/user/-/activities/steps",request_id="req-123"`,
		`remediation="retry later"`,
		`cause="fitbit http 503"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in error string: %s", want, out)
		}
	}
}

func TestWithMetadataMerge(t *testing.T) {
	err := New(
		"withings",
		KindMapping,
		WithMetadata(map[string]string{"field": "grpid"}),
		WithMetadata(map[string]string{"field": "category", "entry": "4"}),
	)
	if got := err.Metadata["field"]; got != "category" {
		t.Fatalf("expected latest metadata to win, got %q", got)
	}
	if got := err.Metadata["entry"]; got != "4" {
		t.Fatalf("expected entry metadata to be present, got %q", got)
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("expected <nil> string for nil error, got %q", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := Configuration("misfit", "token parameter name missing")
	wrapped := fmt.Errorf("assemble: %w", base)
	if !Is(wrapped, KindConfiguration) {
		t.Fatalf("expected configuration kind through wrap, got %q", KindOf(wrapped))
	}
	if Is(nil, KindConfiguration) {
		t.Fatalf("nil error must not match any kind")
	}
}

func TestPageScope(t *testing.T) {
	if !IsPageScoped(PageMapping("fitbit", "no sleep segments")) {
		t.Fatalf("expected page scoped mapping error")
	}
	if IsPageScoped(Mapping("fitbit", "missing value")) {
		t.Fatalf("entry mapping error must not be page scoped")
	}
	if IsPageScoped(New("fitbit", KindUpstreamHTTP, WithScope(ScopePage))) {
		t.Fatalf("only mapping errors carry a page scope")
	}
}

func TestWithFillsMissingContextOnly(t *testing.T) {
	base := New("", KindMapping, WithMeasure("heart_rate"), WithField("path", "value"))
	out := base.With("jawbone", "step_count", WithLocation("page=1"))
	if out.Provider != "jawbone" {
		t.Fatalf("expected provider to be filled, got %q", out.Provider)
	}
	if out.Measure != "heart_rate" {
		t.Fatalf("existing measure must be kept, got %q", out.Measure)
	}
	out.Metadata["path"] = "changed"
	if base.Metadata["path"] != "value" {
		t.Fatalf("With must not share metadata with the original")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext("fitbit", errors.New("boom")) != nil {
		t.Fatalf("non-context errors must not convert")
	}
	e := FromContext("fitbit", context.DeadlineExceeded)
	if e == nil || e.Kind != KindCancellation {
		t.Fatalf("expected cancellation envelope, got %v", e)
	}
	if !errors.Is(e, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be preserved")
	}
}
