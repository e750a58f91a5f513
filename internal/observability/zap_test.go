package observability

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := WrapZap(zap.New(core))

	logger.Info("page fetched", F("provider", "fitbit"), F("page", 2))
	logger.Error("refresh failed", Err(errors.New("boom")))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["provider"] != "fitbit" || fields["page"] != int64(2) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if entries[1].ContextMap()["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entries[1].ContextMap())
	}
}

func TestSetLoggerNilRestoresNoop(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(WrapZap(zap.New(core)))
	Log().Debug("visible")
	SetLogger(nil)
	Log().Debug("dropped")
	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
}

func TestNewZapLoggerLevels(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewZapLogger("debug", format, "shimmer")
		if err != nil {
			t.Fatalf("new %s logger: %v", format, err)
		}
		logger.Debug("ok")
	}
}
