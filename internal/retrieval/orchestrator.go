package retrieval

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/domain/tokenstore"
	"github.com/coachpo/shimmer/internal/infra/config"
	"github.com/coachpo/shimmer/internal/infra/httpclient"
	"github.com/coachpo/shimmer/internal/infra/telemetry"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
	"github.com/coachpo/shimmer/internal/observability"
	"github.com/coachpo/shimmer/internal/pagination"
)

// DefaultMaxPages bounds the pagination loop when the configuration leaves it unset.
const DefaultMaxPages = 100

// Transport sends one authenticated request.
type Transport interface {
	Send(ctx context.Context, providerKey string, creds httpclient.Credentials, req pagination.Request) (pagination.Response, error)
}

// Tokens hands out access tokens and refreshes rejected ones.
type Tokens interface {
	Token(ctx context.Context, key tokenstore.Key) (tokenstore.Token, error)
	Refresh(ctx context.Context, key tokenstore.Key, stale string) (tokenstore.Token, error)
}

// ResultSet is the aggregated outcome of one Retrieve call. DataPoints is
// filled in normalized mode and Raw otherwise. Ordering across days is not
// guaranteed.
type ResultSet struct {
	DataPoints  []schema.DataPoint
	Raw         []jsonnode.Node
	EntryErrors []error
	Pages       int
}

func (r *ResultSet) merge(other ResultSet) {
	r.DataPoints = append(r.DataPoints, other.DataPoints...)
	r.Raw = append(r.Raw, other.Raw...)
	r.EntryErrors = append(r.EntryErrors, other.EntryErrors...)
	r.Pages += other.Pages
}

// Options wires an Orchestrator.
type Options struct {
	Registry  *provider.Registry
	Transport Transport
	Tokens    Tokens
	Retrieval config.RetrievalConfig
	Metrics   *telemetry.RetrievalMetrics
	Now       func() time.Time
}

// Orchestrator executes retrieval requests. It is safe for concurrent use.
type Orchestrator struct {
	registry  *provider.Registry
	transport Transport
	tokens    Tokens
	maxPages  int
	workers   int
	metrics   *telemetry.RetrievalMetrics
	now       func() time.Time
}

// New builds an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	maxPages := opts.Retrieval.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	workers := opts.Retrieval.DayConcurrency.Resolve()
	if workers <= 0 {
		workers = config.DefaultDayConcurrency
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		registry:  opts.Registry,
		transport: opts.Transport,
		tokens:    opts.Tokens,
		maxPages:  maxPages,
		workers:   workers,
		metrics:   opts.Metrics,
		now:       now,
	}
}

// Retrieve runs req to completion. Any failing page or day fails the whole
// request and discards partial results.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (ResultSet, error) {
	started := time.Now()
	req = req.withDefaults(o.now())
	if err := req.validate(); err != nil {
		return ResultSet{}, err
	}
	def, err := o.registry.Lookup(req.Provider)
	if err != nil {
		return ResultSet{}, err
	}
	binding, err := def.Resolve(req.Measure, req.FineGrained)
	if err != nil {
		return ResultSet{}, err
	}

	measure := string(req.Measure)
	result, err := o.retrieve(ctx, def, binding, req)
	outcome := telemetry.ResultSuccess
	if err != nil {
		outcome = string(errs.KindOf(err))
		if outcome == "" {
			outcome = telemetry.ResultError
		}
	}
	o.metrics.RecordRequest(ctx, def.Key, measure, string(binding.Shape), outcome, time.Since(started))
	if err != nil {
		observability.Log().Error("retrieval failed",
			observability.F("provider", def.Key),
			observability.F("measure", measure),
			observability.Err(err))
		return ResultSet{}, err
	}
	observability.Log().Info("retrieval complete",
		observability.F("provider", def.Key),
		observability.F("measure", measure),
		observability.F("shape", string(binding.Shape)),
		observability.F("pages", result.Pages),
		observability.F("points", len(result.DataPoints)),
		observability.F("entry_errors", len(result.EntryErrors)))
	return result, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, def *provider.Definition, binding provider.Binding, req Request) (ResultSet, error) {
	s, err := o.newSession(ctx, def, binding, req)
	if err != nil {
		return ResultSet{}, err
	}
	if binding.Mapper.Arity() == 2 {
		if err := s.fetchProfile(ctx, window{start: req.Start, end: req.End}); err != nil {
			return ResultSet{}, err
		}
	}
	if binding.Shape == provider.ShapeRange {
		return s.paginate(ctx, window{start: req.Start, end: req.End})
	}
	return o.perDay(ctx, s, req.Days())
}

// perDay runs one window per day on a bounded pool. After the first failure no
// further days start; days already running finish and their results are dropped.
func (o *Orchestrator) perDay(ctx context.Context, s *session, days []time.Time) (ResultSet, error) {
	var failed atomic.Bool
	p := pool.NewWithResults[ResultSet]().
		WithContext(ctx).
		WithFirstError().
		WithMaxGoroutines(o.workers)
	for _, d := range days {
		if failed.Load() || ctx.Err() != nil {
			break
		}
		w := window{start: d, end: d, perDay: true}
		p.Go(func(ctx context.Context) (ResultSet, error) {
			if failed.Load() {
				return ResultSet{}, nil
			}
			rs, err := s.paginate(ctx, w)
			if err != nil {
				failed.Store(true)
			}
			return rs, err
		})
	}
	parts, err := p.Wait()
	if err != nil {
		return ResultSet{}, err
	}
	if e := errs.FromContext(s.def.Key, ctx.Err()); e != nil {
		return ResultSet{}, e.With(s.def.Key, s.measure)
	}
	var out ResultSet
	for _, part := range parts {
		out.merge(part)
	}
	return out, nil
}

// session carries the per-Retrieve state shared by every window.
type session struct {
	o       *Orchestrator
	def     *provider.Definition
	binding provider.Binding
	req     Request
	measure string
	key     tokenstore.Key

	mu      sync.Mutex
	token   tokenstore.Token
	profile jsonnode.Node
}

func (o *Orchestrator) newSession(ctx context.Context, def *provider.Definition, binding provider.Binding, req Request) (*session, error) {
	key := tokenstore.Key{UserID: req.UserID, Provider: def.Key}
	token, err := o.tokens.Token(ctx, key)
	if err != nil {
		if e, ok := errs.As(err); ok {
			return nil, e.With(def.Key, string(req.Measure))
		}
		return nil, errs.New(def.Key, errs.KindAuthorization, errs.WithMeasure(string(req.Measure)), errs.WithCause(err))
	}
	return &session{
		o:       o,
		def:     def,
		binding: binding,
		req:     req,
		measure: string(req.Measure),
		key:     key,
		token:   token,
	}, nil
}

func (s *session) vars(w window) map[string]string {
	vars := w.vars()
	s.mu.Lock()
	vars["vendorUserId"] = s.token.VendorUserID
	s.mu.Unlock()
	vars["userId"] = s.req.UserID
	vars["clientId"] = s.def.Auth.ClientID
	vars["clientSecret"] = s.def.Auth.ClientSecret
	return vars
}

// fetchProfile loads the context node that two-node mapping tables read first.
func (s *session) fetchProfile(ctx context.Context, w window) error {
	req := s.def.Profile.Request(s.def.BaseURL, s.vars(w))
	resp, err := s.send(ctx, req)
	if err != nil {
		return s.wrap(err, errs.WithField("page", "profile"))
	}
	s.profile = resp.Body
	return nil
}

// paginate walks every page of one window.
func (s *session) paginate(ctx context.Context, w window) (ResultSet, error) {
	settings := s.binding.Endpoint.Pagination
	base := s.binding.Endpoint.Request(s.def.BaseURL, s.vars(w))
	status := pagination.Initial(settings)

	var out ResultSet
	for page := 1; ; page++ {
		where := []errs.Option{errs.WithField("window", w.label()), errs.WithField("page", strconv.Itoa(page))}
		if e := errs.FromContext(s.def.Key, ctx.Err()); e != nil {
			return ResultSet{}, e.With(s.def.Key, s.measure, where...)
		}
		if page > s.o.maxPages {
			return ResultSet{}, errs.New(s.def.Key, errs.KindUpstreamHTTP,
				errs.WithMeasure(s.measure),
				errs.WithMessage("provider kept reporting more pages"),
				errs.WithField("reason", "max_pages"),
				errs.WithField("max_pages", strconv.Itoa(s.o.maxPages)),
				errs.WithField("window", w.label()))
		}

		req, err := pagination.Assemble(settings, base, status)
		if err != nil {
			return ResultSet{}, s.wrap(err, where...)
		}
		resp, err := s.send(ctx, req)
		if err != nil {
			return ResultSet{}, s.wrap(err, where...)
		}
		out.Pages++

		points, entryErrors := 0, 0
		if s.req.Normalize {
			batch, err := s.mapPage(resp.Body)
			if err != nil {
				if !errs.IsPageScoped(err) {
					return ResultSet{}, s.wrap(err, where...)
				}
				out.EntryErrors = append(out.EntryErrors, s.wrap(err, where...))
				entryErrors++
			}
			for _, entryErr := range batch.EntryErrors {
				out.EntryErrors = append(out.EntryErrors, s.wrap(entryErr, where...))
			}
			out.DataPoints = append(out.DataPoints, batch.Points...)
			points, entryErrors = len(batch.Points), entryErrors+len(batch.EntryErrors)
		} else {
			out.Raw = append(out.Raw, s.raw(w, resp.Body))
		}
		s.o.metrics.RecordPage(ctx, s.def.Key, s.measure, points, entryErrors)

		status, err = pagination.Process(settings, resp, status)
		if err != nil {
			return ResultSet{}, s.wrap(err, where...)
		}
		if !status.HasMoreData() {
			return out, nil
		}
	}
}

func (s *session) mapPage(body jsonnode.Node) (mapping.Batch, error) {
	bodies := []jsonnode.Node{body}
	if s.binding.Mapper.Arity() == 2 {
		bodies = []jsonnode.Node{s.profile, body}
	}
	return s.binding.Mapper.MapForUser(s.req.UserID, bodies)
}

// raw wraps per-day pages with their date when the provider payload omits it.
func (s *session) raw(w window, body jsonnode.Node) jsonnode.Node {
	if !w.perDay || !s.def.WrapRawDays {
		return body
	}
	return jsonnode.Wrap(map[string]any{
		"result": map[string]any{
			"date":    w.start.Format(dayLayout),
			"content": body,
		},
	})
}

// send performs one request, refreshing the token and retrying once on 401.
func (s *session) send(ctx context.Context, req pagination.Request) (pagination.Response, error) {
	token := s.currentToken()
	resp, err := s.o.transport.Send(ctx, s.def.Key, s.credentials(token), req)
	if !unauthorized(err) {
		return resp, err
	}
	refreshed, refreshErr := s.o.tokens.Refresh(ctx, s.key, token.AccessToken)
	if refreshErr != nil {
		return pagination.Response{}, refreshErr
	}
	s.setToken(refreshed)
	resp, err = s.o.transport.Send(ctx, s.def.Key, s.credentials(refreshed), req)
	if unauthorized(err) {
		return pagination.Response{}, errs.New(s.def.Key, errs.KindAuthorization,
			errs.WithHTTP(http.StatusUnauthorized),
			errs.WithMessage("access token rejected after refresh"),
			errs.WithRemediation("re-authorize the user with the provider"),
			errs.WithCause(err))
	}
	return resp, err
}

func unauthorized(err error) bool {
	e, ok := errs.As(err)
	return ok && e.Kind == errs.KindAuthorization && e.HTTP == http.StatusUnauthorized
}

func (s *session) credentials(token tokenstore.Token) httpclient.Credentials {
	return httpclient.Credentials{
		AccessToken: token.AccessToken,
		Placement:   s.def.Auth.Placement,
		Param:       s.def.Auth.TokenParam,
	}
}

func (s *session) currentToken() tokenstore.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *session) setToken(token tokenstore.Token) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// wrap stamps provider, measure and location onto err.
func (s *session) wrap(err error, opts ...errs.Option) error {
	if e, ok := errs.As(err); ok {
		return e.With(s.def.Key, s.measure, opts...)
	}
	if e := errs.FromContext(s.def.Key, err); e != nil {
		return e.With(s.def.Key, s.measure, opts...)
	}
	return errs.New(s.def.Key, errs.KindUpstreamHTTP, append([]errs.Option{errs.WithMeasure(s.measure), errs.WithCause(err)}, opts...)...)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
