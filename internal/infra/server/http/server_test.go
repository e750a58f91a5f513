package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/retrieval"
)

type stubRetriever struct {
	got    retrieval.Request
	result retrieval.ResultSet
	err    error
}

func (s *stubRetriever) Retrieve(_ context.Context, req retrieval.Request) (retrieval.ResultSet, error) {
	s.got = req
	return s.result, s.err
}

func serve(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListProviders(t *testing.T) {
	handler := NewHandler(provider.Builtin(), &stubRetriever{})
	rec := serve(t, handler, http.MethodGet, "/providers")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body struct {
		Providers []provider.Metadata `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Providers) != 9 {
		t.Fatalf("expected 9 providers, got %d", len(body.Providers))
	}
}

func TestGetProvider(t *testing.T) {
	handler := NewHandler(provider.Builtin(), &stubRetriever{})
	if rec := serve(t, handler, http.MethodGet, "/providers/withings"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"key":"withings"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(t, handler, http.MethodGet, "/providers/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetDataBuildsRequest(t *testing.T) {
	stub := &stubRetriever{result: retrieval.ResultSet{Raw: []jsonnode.Node{jsonnode.MustParse(`{"ok":true}`)}}}
	handler := NewHandler(provider.Builtin(), stub)

	rec := serve(t, handler, http.MethodGet, "/data/Fitbit/step_count?username=u1&dateStart=2024-03-01&dateEnd=2024-03-03&normalize=false&fine=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	got := stub.got
	if got.Provider != "fitbit" || got.Measure != "step_count" || got.UserID != "u1" || got.Normalize || !got.FineGrained {
		t.Fatalf("unexpected request %+v", got)
	}
	if !got.Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !got.End.Equal(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected dates %s..%s", got.Start, got.End)
	}
	if !strings.Contains(rec.Body.String(), `"shim":"fitbit"`) || !strings.Contains(rec.Body.String(), `"body":[{"ok":true}]`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestGetDataRejectsBadInput(t *testing.T) {
	handler := NewHandler(provider.Builtin(), &stubRetriever{})
	cases := map[string]int{
		"/data/fitbit":                                       http.StatusNotFound,
		"/data/unknown/step_count?username=u1":               http.StatusNotFound,
		"/data/fitbit/step_count":                            http.StatusBadRequest,
		"/data/fitbit/step_count?username=u1&dateStart=3/1":  http.StatusBadRequest,
		"/data/fitbit/step_count?username=u1&normalize=yes!": http.StatusBadRequest,
	}
	for target, want := range cases {
		if rec := serve(t, handler, http.MethodGet, target); rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", target, want, rec.Code)
		}
	}
}

func TestGetDataMapsErrorKinds(t *testing.T) {
	cases := map[errs.Kind]int{
		errs.KindInvalid:       http.StatusBadRequest,
		errs.KindConfiguration: http.StatusNotFound,
		errs.KindAuthorization: http.StatusUnauthorized,
		errs.KindUpstreamHTTP:  http.StatusBadGateway,
		errs.KindMapping:       http.StatusBadGateway,
		errs.KindCancellation:  http.StatusGatewayTimeout,
	}
	for kind, want := range cases {
		stub := &stubRetriever{err: errs.New("fitbit", kind, errs.WithRemediation("do something"))}
		rec := serve(t, NewHandler(provider.Builtin(), stub), http.MethodGet, "/data/fitbit/step_count?username=u1")
		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"remediation":"do something"`) {
			t.Fatalf("%s: missing remediation in %s", kind, rec.Body.String())
		}
	}
}

func TestMethodNotAllowedAndCORS(t *testing.T) {
	handler := NewHandler(provider.Builtin(), &stubRetriever{})
	rec := serve(t, handler, http.MethodPost, "/providers")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("unexpected response %d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}
	rec = serve(t, handler, http.MethodOptions, "/data/fitbit/step_count")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight %d", rec.Code)
	}
	if rec := serve(t, handler, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("unexpected health status %d", rec.Code)
	}
}
