package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/infra/config"
	"github.com/coachpo/shimmer/internal/pagination"
)

func testConfig() config.HTTPConfig {
	return config.HTTPConfig{
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Burst:          1,
		UserAgent:      "shimmer-test",
	}
}

func request(base string) pagination.Request {
	return pagination.Request{
		Method:      http.MethodGet,
		URITemplate: base + "/users/{user}/steps",
		PathParams:  map[string]string{"user": "u 1"},
		Query:       url.Values{"date": []string{"2024-01-02"}},
		Header:      http.Header{},
	}
}

func TestSendAttachesBearerTokenAndParsesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "shimmer-test" {
			t.Errorf("unexpected user agent %q", got)
		}
		if r.URL.Path != "/users/u 1/steps" || r.URL.Query().Get("date") != "2024-01-02" {
			t.Errorf("unexpected url %s", r.URL.String())
		}
		w.Header().Set("Link", "<next>")
		_, _ = w.Write([]byte(`{"steps":[{"value":12}]}`))
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	resp, err := client.Send(context.Background(), "fitbit", Credentials{AccessToken: "tok", Placement: provider.TokenInHeader}, request(srv.URL))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Link") != "<next>" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if v, ok := resp.Body.Get("steps.0.value").Int64(); !ok || v != 12 {
		t.Fatalf("unexpected body %v", resp.Body.Value())
	}
}

func TestSendPlacesTokenInQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected authorization header")
		}
		if got := r.URL.Query().Get("access_token"); got != "tok" {
			t.Errorf("expected query token, got %q", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	creds := Credentials{AccessToken: "tok", Placement: provider.TokenInQuery, Param: "access_token"}
	if _, err := client.Send(context.Background(), "ihealth", creds, request(srv.URL)); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSendRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	resp, err := client.Send(context.Background(), "jawbone", Credentials{AccessToken: "tok"}, request(srv.URL))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if ok, _ := resp.Body.Get("ok").Bool(); !ok {
		t.Fatalf("unexpected body %v", resp.Body.Value())
	}
}

func TestSendGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	_, err := client.Send(context.Background(), "misfit", Credentials{AccessToken: "tok"}, request(srv.URL))
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindUpstreamHTTP || e.HTTP != http.StatusServiceUnavailable {
		t.Fatalf("expected upstream 503 error, got %v", err)
	}
	if e.Metadata["attempts"] != "3" || e.Metadata["body"] != "maintenance" {
		t.Fatalf("unexpected metadata %v", e.Metadata)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendReturnsUnauthorizedWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	_, err := client.Send(context.Background(), "withings", Credentials{AccessToken: "stale"}, request(srv.URL))
	if !errs.Is(err, errs.KindAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSendClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	_, err := client.Send(context.Background(), "runkeeper", Credentials{AccessToken: "tok"}, request(srv.URL))
	if e, ok := errs.As(err); !ok || e.HTTP != http.StatusBadRequest {
		t.Fatalf("expected 400 upstream error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSendTimeoutIsFlagged(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 0
	client := New(Options{HTTP: cfg})
	_, err := client.Send(context.Background(), "fitbit", Credentials{AccessToken: "tok"}, request(srv.URL))
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindUpstreamHTTP || e.Metadata["timeout"] != "true" {
		t.Fatalf("expected timeout upstream error, got %v", err)
	}
}

func TestSendHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second
	client := New(Options{HTTP: cfg})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Send(ctx, "googlefit", Credentials{AccessToken: "tok"}, request(srv.URL))
	if !errs.Is(err, errs.KindCancellation) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSendRejectsMalformedJSONAsPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"broken":`))
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	_, err := client.Send(context.Background(), "fitbit", Credentials{AccessToken: "tok"}, request(srv.URL))
	if !errs.IsPageScoped(err) {
		t.Fatalf("expected page-scoped mapping error, got %v", err)
	}
}

func TestSendEmptyBodyYieldsAbsentNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	resp, err := client.Send(context.Background(), "fitbit", Credentials{AccessToken: "tok"}, request(srv.URL))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Body.Exists() {
		t.Fatalf("expected absent body, got %v", resp.Body.Value())
	}
}

func TestProviderRateOverridesDefault(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerSecond = 10
	client := New(Options{HTTP: cfg, ProviderRates: map[string]float64{"Fitbit": 2}})
	if got := float64(client.limiter("fitbit").Limit()); got != 2 {
		t.Fatalf("expected fitbit limit 2, got %v", got)
	}
	if got := float64(client.limiter("jawbone").Limit()); got != 10 {
		t.Fatalf("expected default limit 10, got %v", got)
	}
	if client.limiter("fitbit") != client.limiter("FITBIT") {
		t.Fatal("expected limiter reuse per provider")
	}
}

func TestRetryAfterHeaderIsCapped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := New(Options{HTTP: testConfig()})
	started := time.Now()
	if _, err := client.Send(context.Background(), "fitbit", Credentials{AccessToken: "tok"}, request(srv.URL)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("expected Retry-After capped by max backoff, waited %s", elapsed)
	}
}

func TestSnippetKeepsWholeRunes(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + "é" + "tail"
	got := snippet([]byte(body))
	if !utf8.ValidString(got) {
		t.Fatalf("snippet split a rune: %q", got[len(got)-4:])
	}
	if len(got) != maxErrorBody-1 {
		t.Fatalf("expected cut before the two-byte rune, got %d bytes", len(got))
	}
	if short := snippet([]byte("  bad request  ")); short != "bad request" {
		t.Fatalf("unexpected short snippet %q", short)
	}
}
