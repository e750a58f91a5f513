package config

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/pagination"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error when config file missing")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, "environment: DEV\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != EnvDev {
		t.Fatalf("expected dev environment, got %q", cfg.Environment)
	}
	if cfg.Retrieval.MaxPages != 100 {
		t.Fatalf("expected default max pages 100, got %d", cfg.Retrieval.MaxPages)
	}
	if got := cfg.Retrieval.DayConcurrency.Resolve(); got != DefaultDayConcurrency {
		t.Fatalf("expected default day concurrency, got %d", got)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Fatalf("unexpected http timeout %s", cfg.HTTP.Timeout)
	}
	if cfg.Database.DSN != "postgresql://localhost:5432/shimmer" {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging format %q", cfg.Logging.Format)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Setenv("FITBIT_SECRET", "s3cret")
	path := writeConfig(t, `
environment: prod
retrieval:
  maxPages: 12
  dayConcurrency: 2
http:
  timeout: 5s
  maxRetries: 1
  requestsPerSecond: 2.5
redis:
  enabled: true
  addr: localhost:6379
logging:
  level: DEBUG
  format: console
providers:
  Fitbit:
    clientId: abc
    clientSecret: ${FITBIT_SECRET}
    endpoints:
      step-count:
        uriTemplate: /1/user/-/activities/steps/date/{startDate}/{endDate}.json
        rangeQuery: true
        pagination:
          strategy: token
          responseField: next
          parameterName: cursor
`)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retrieval.MaxPages != 12 || cfg.Retrieval.DayConcurrency.Resolve() != 2 {
		t.Fatalf("unexpected retrieval config %+v", cfg.Retrieval)
	}
	if cfg.HTTP.Timeout != 5*time.Second || cfg.HTTP.RequestsPerSecond != 2.5 {
		t.Fatalf("unexpected http config %+v", cfg.HTTP)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lower-cased level, got %q", cfg.Logging.Level)
	}
	fitbit, ok := cfg.Providers["fitbit"]
	if !ok {
		t.Fatalf("expected normalised provider key, got %v", cfg.Providers)
	}
	if fitbit.ClientSecret != "s3cret" {
		t.Fatalf("expected expanded secret, got %q", fitbit.ClientSecret)
	}
	endpoint, ok := fitbit.Endpoints[schema.MeasureStepCount]
	if !ok {
		t.Fatalf("expected step_count endpoint, got %v", fitbit.Endpoints)
	}
	if endpoint.Pagination == nil || endpoint.Pagination.Strategy != pagination.StrategyToken {
		t.Fatalf("unexpected pagination %+v", endpoint.Pagination)
	}
	if endpoint.RangeQuery == nil || !*endpoint.RangeQuery {
		t.Fatal("expected range query flag")
	}
}

func TestLoadDuplicateProviderName(t *testing.T) {
	_, err := Load(context.Background(), writeConfig(t, `
providers:
  Fitbit: {}
  fitbit: {}
`))
	if err == nil || !strings.Contains(err.Error(), `duplicate provider name "fitbit"`) {
		t.Fatalf("expected duplicate provider error, got %v", err)
	}
}

func TestLoadRejectsUnknownMeasure(t *testing.T) {
	_, err := Load(context.Background(), writeConfig(t, `
providers:
  fitbit:
    endpoints:
      blood_oxygen: {}
`))
	if err == nil || !strings.Contains(err.Error(), "unknown measure type") {
		t.Fatalf("expected unknown measure error, got %v", err)
	}
}

func TestLoadRejectsTokenPaginationWithoutParameter(t *testing.T) {
	_, err := Load(context.Background(), writeConfig(t, `
providers:
  googlefit:
    endpoints:
      step_count:
        pagination:
          strategy: token
          responseField: nextPageToken
`))
	if err == nil || !strings.Contains(err.Error(), "parameterName") {
		t.Fatalf("expected parameterName error, got %v", err)
	}
}

func TestValidateRejectsRedisWithoutAddr(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Redis.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected redis addr error")
	}
}

func TestValidateRejectsUnknownEnvironment(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Environment = "qa"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected environment error")
	}
}

func TestDayConcurrencyValues(t *testing.T) {
	cases := map[string]int{
		"retrieval:\n  dayConcurrency: 3\n":       3,
		"retrieval:\n  dayConcurrency: auto\n":    runtime.NumCPU(),
		"retrieval:\n  dayConcurrency: default\n": DefaultDayConcurrency,
		"retrieval:\n  dayConcurrency: \"\"\n":    DefaultDayConcurrency,
	}
	for body, want := range cases {
		cfg, err := Parse([]byte(body))
		if err != nil {
			t.Fatalf("parse %q: %v", body, err)
		}
		if got := cfg.Retrieval.DayConcurrency.Resolve(); got != want {
			t.Fatalf("%q: expected %d, got %d", body, want, got)
		}
	}
	for _, body := range []string{"retrieval:\n  dayConcurrency: 0\n", "retrieval:\n  dayConcurrency: many\n"} {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}
