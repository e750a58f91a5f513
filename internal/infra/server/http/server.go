// Package httpserver exposes read-only HTTP handlers for provider listings and data retrieval.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/infra/export"
	"github.com/coachpo/shimmer/internal/observability"
	"github.com/coachpo/shimmer/internal/retrieval"
)

const (
	providersPath        = "/providers"
	providerDetailPrefix = providersPath + "/"

	dataPrefix = "/data/"
	healthPath = "/healthz"

	dateLayout = "2006-01-02"
)

// Retriever runs one retrieval request.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (retrieval.ResultSet, error)
}

type handlerFunc func(http.ResponseWriter, *http.Request)

type httpServer struct {
	registry  *provider.Registry
	retriever Retriever
	encoder   *export.JSONSaver
	now       func() time.Time
}

// NewHandler creates the HTTP handler serving provider metadata and data retrieval.
func NewHandler(registry *provider.Registry, retriever Retriever) http.Handler {
	server := &httpServer{
		registry:  registry,
		retriever: retriever,
		encoder:   &export.JSONSaver{},
		now:       time.Now,
	}
	mux := http.NewServeMux()

	mux.Handle(providersPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.listProviders,
	}))
	mux.Handle(providerDetailPrefix, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getProvider,
	}))
	mux.Handle(dataPrefix, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getData,
	}))
	mux.Handle(healthPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		},
	}))

	return withCORS(mux)
}

func (s *httpServer) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		methodNotAllowed(w, allowed...)
	})
}

func allowedMethods(handlers map[string]handlerFunc) []string {
	if len(handlers) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

func (s *httpServer) listProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.registry.Describe()})
}

func (s *httpServer) getProvider(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, providerDetailPrefix), "/")
	if name == "" {
		writeError(w, http.StatusNotFound, "provider name required")
		return
	}
	def, err := s.registry.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, provider.Describe(def))
}

// getData serves /data/{provider}/{measure}?username=&dateStart=&dateEnd=&normalize=&fine=.
func (s *httpServer) getData(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, dataPrefix), "/")
	name, measure, ok := strings.Cut(rest, "/")
	name, measure = strings.TrimSpace(name), strings.TrimSpace(measure)
	if !ok || name == "" || measure == "" || strings.Contains(measure, "/") {
		writeError(w, http.StatusNotFound, "expected /data/{provider}/{measure}")
		return
	}
	if _, err := s.registry.Lookup(name); err != nil {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	req, err := requestFromQuery(name, measure, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.retriever.Retrieve(r.Context(), req)
	if err != nil {
		s.writeRetrievalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	doc := export.Document{Shim: req.Provider, TimeStamp: s.now(), Result: result}
	if err := s.encoder.Encode(w, doc); err != nil {
		observability.Log().Error("encode data response", observability.F("provider", name), observability.Err(err))
	}
}

func requestFromQuery(name, measure string, r *http.Request) (retrieval.Request, error) {
	query := r.URL.Query()
	req := retrieval.Request{
		Provider:  strings.ToLower(name),
		Measure:   schema.MeasureType(measure),
		UserID:    strings.TrimSpace(query.Get("username")),
		Normalize: true,
	}
	if req.UserID == "" {
		return retrieval.Request{}, errors.New("username required")
	}
	var err error
	if req.Start, err = parseDate(query.Get("dateStart")); err != nil {
		return retrieval.Request{}, errors.New("dateStart: expected YYYY-MM-DD")
	}
	if req.End, err = parseDate(query.Get("dateEnd")); err != nil {
		return retrieval.Request{}, errors.New("dateEnd: expected YYYY-MM-DD")
	}
	if raw := query.Get("normalize"); raw != "" {
		if req.Normalize, err = strconv.ParseBool(raw); err != nil {
			return retrieval.Request{}, errors.New("normalize: expected a boolean")
		}
	}
	if raw := query.Get("fine"); raw != "" {
		if req.FineGrained, err = strconv.ParseBool(raw); err != nil {
			return retrieval.Request{}, errors.New("fine: expected a boolean")
		}
	}
	return req, nil
}

func parseDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, strings.TrimSpace(value))
}

func (s *httpServer) writeRetrievalError(w http.ResponseWriter, err error) {
	e, ok := errs.As(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := map[string]any{
		"status":   "error",
		"error":    e.Error(),
		"kind":     string(e.Kind),
		"provider": e.Provider,
	}
	if e.Remediation != "" {
		payload["remediation"] = e.Remediation
	}
	writeJSON(w, statusForKind(e.Kind), payload)
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalid:
		return http.StatusBadRequest
	case errs.KindConfiguration:
		return http.StatusNotFound
	case errs.KindAuthorization:
		return http.StatusUnauthorized
	case errs.KindUpstreamHTTP, errs.KindMapping:
		return http.StatusBadGateway
	case errs.KindCancellation:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}

func withCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
