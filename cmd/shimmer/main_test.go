package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/shimmer/errs"
)

func TestParseArgsCommandFirst(t *testing.T) {
	opts, err := parseArgs([]string{"retrieve", "-provider", "fitbit", "-measure", "step_count", "-user", "u1", "-start", "2024-03-01", "-end", "2024-03-02", "-raw"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "retrieve", opts.command)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), opts.start)
	require.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), opts.end)
	require.True(t, opts.raw)
	require.Equal(t, "json", opts.format)
}

func TestParseArgsFlagsFirst(t *testing.T) {
	opts, err := parseArgs([]string{"-config", "app.yaml", "providers"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "providers", opts.command)
	require.Equal(t, "app.yaml", opts.configPath)
}

func TestParseArgsServe(t *testing.T) {
	opts, err := parseArgs([]string{"serve", "-addr", "127.0.0.1:9000"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "serve", opts.command)
	require.Equal(t, "127.0.0.1:9000", opts.addr)

	opts, err = parseArgs([]string{"serve"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, defaultAddr, opts.addr)
}

func TestParseArgsRejectsIncompleteRetrieve(t *testing.T) {
	_, err := parseArgs([]string{"retrieve", "-provider", "fitbit"}, io.Discard)
	require.Error(t, err)

	_, err = parseArgs([]string{"retrieve", "-provider", "fitbit", "-measure", "step_count", "-user", "u1", "-start", "03/01/2024"}, io.Discard)
	require.ErrorContains(t, err, "YYYY-MM-DD")

	_, err = parseArgs([]string{"sync"}, io.Discard)
	require.ErrorContains(t, err, "unknown command")

	var usage bytes.Buffer
	_, err = parseArgs(nil, &usage)
	require.ErrorIs(t, err, errUsage)
	require.Contains(t, usage.String(), "usage: shimmer")
}

func TestExitCode(t *testing.T) {
	cases := map[errs.Kind]int{
		errs.KindInvalid:       exitUsage,
		errs.KindConfiguration: exitUsage,
		errs.KindAuthorization: exitAuthorization,
		errs.KindUpstreamHTTP:  exitUpstream,
		errs.KindMapping:       exitMapping,
		errs.KindCancellation:  exitCancelled,
	}
	for kind, want := range cases {
		require.Equal(t, want, exitCode(errs.New("fitbit", kind)), kind)
	}
	require.Equal(t, exitFailure, exitCode(io.EOF))
}

func fitbitServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer static-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/1/user/-/profile.json":
			_, _ = w.Write([]byte(`{"user":{"offsetFromUTCMillis":0}}`))
		case "/1/user/-/activities/steps/date/2024-03-01/2024-03-02.json":
			_, _ = w.Write([]byte(`{"activities-steps":[{"dateTime":"2024-03-01","value":"1200"},{"dateTime":"2024-03-02","value":"0"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	body := strings.Join([]string{
		"environment: dev",
		"logging:",
		"  level: error",
		"providers:",
		"  fitbit:",
		"    baseUrl: " + baseURL,
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunRetrievesAndWritesJSON(t *testing.T) {
	var calls atomic.Int32
	srv := fitbitServer(t, &calls)
	out := filepath.Join(t.TempDir(), "export", "steps")

	opts, err := parseArgs([]string{
		"retrieve",
		"-config", writeConfig(t, srv.URL),
		"-provider", "fitbit",
		"-measure", "step_count",
		"-user", "u1",
		"-start", "2024-03-01",
		"-end", "2024-03-02",
		"-access-token", "static-token",
		"-out", out,
	}, io.Discard)
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), opts, io.Discard))
	require.Equal(t, int32(2), calls.Load())

	raw, err := os.ReadFile(out + ".json")
	require.NoError(t, err)
	var decoded struct {
		Shim string           `json:"shim"`
		Body []map[string]any `json:"body"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "fitbit", decoded.Shim)
	require.Len(t, decoded.Body, 1)
	body := decoded.Body[0]["body"].(map[string]any)
	require.EqualValues(t, 1200, body["step_count"])
}

func TestRunRejectedTokenIsAuthorizationError(t *testing.T) {
	var calls atomic.Int32
	srv := fitbitServer(t, &calls)

	opts, err := parseArgs([]string{
		"retrieve",
		"-config", writeConfig(t, srv.URL),
		"-provider", "fitbit",
		"-measure", "step_count",
		"-user", "u1",
		"-start", "2024-03-01",
		"-end", "2024-03-02",
		"-access-token", "wrong",
	}, io.Discard)
	require.NoError(t, err)
	err = run(context.Background(), opts, io.Discard)
	require.True(t, errs.Is(err, errs.KindAuthorization), "got %v", err)
	require.Equal(t, exitAuthorization, exitCode(err))
}

func TestRunListsProviders(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cliOptions{command: "providers"}, &out))

	var listed []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	keys := make([]string, 0, len(listed))
	for _, p := range listed {
		keys = append(keys, p["key"].(string))
	}
	require.Contains(t, keys, "fitbit")
	require.Contains(t, keys, "withings")
}
