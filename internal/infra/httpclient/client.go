// Package httpclient sends authenticated provider requests over resty with
// throttling and retry of transient failures.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/infra/config"
	"github.com/coachpo/shimmer/internal/infra/telemetry"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/observability"
	"github.com/coachpo/shimmer/internal/pagination"
)

const maxErrorBody = 512

// Credentials attach an access token to an outbound request.
type Credentials struct {
	AccessToken string
	Placement   provider.TokenPlacement
	// Param names the query parameter when Placement is query.
	Param string
}

// Options configures a Client.
type Options struct {
	HTTP config.HTTPConfig
	// ProviderRates overrides HTTP.RequestsPerSecond per provider key.
	ProviderRates map[string]float64
	Metrics       *telemetry.HTTPMetrics
	// Transport replaces the default round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Client is the authenticated HTTP transport shared by every retrieval.
type Client struct {
	rest    *resty.Client
	cfg     config.HTTPConfig
	rates   map[string]float64
	metrics *telemetry.HTTPMetrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a Client from opts.
func New(opts Options) *Client {
	rest := resty.New().
		SetTimeout(opts.HTTP.Timeout).
		SetHeader("Accept", "application/json")
	if ua := strings.TrimSpace(opts.HTTP.UserAgent); ua != "" {
		rest.SetHeader("User-Agent", ua)
	}
	if opts.Transport != nil {
		rest.SetTransport(opts.Transport)
	}
	rates := make(map[string]float64, len(opts.ProviderRates))
	for key, rps := range opts.ProviderRates {
		rates[strings.ToLower(strings.TrimSpace(key))] = rps
	}
	return &Client{
		rest:     rest,
		cfg:      opts.HTTP,
		rates:    rates,
		metrics:  opts.Metrics,
		mu:       sync.Mutex{},
		limiters: make(map[string]*rate.Limiter),
	}
}

// Resty exposes the underlying client so collaborators such as the token
// refresher share its transport settings.
func (c *Client) Resty() *resty.Client {
	return c.rest
}

// Send executes req for providerKey with creds attached. 429 and 5xx responses,
// timeouts and transport failures are retried up to HTTP.MaxRetries times.
// A 401 is returned immediately as an authorization error.
func (c *Client) Send(ctx context.Context, providerKey string, creds Credentials, req pagination.Request) (pagination.Response, error) {
	target, err := authorize(req.URL(), creds)
	if err != nil {
		return pagination.Response{}, errs.Configuration(providerKey, "invalid request url", errs.WithCause(err))
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if creds.Placement != provider.TokenInQuery && creds.AccessToken != "" {
		header.Set("Authorization", "Bearer "+creds.AccessToken)
	}

	bo := backoff.NewExponentialBackOff()
	if c.cfg.InitialBackoff > 0 {
		bo.InitialInterval = c.cfg.InitialBackoff
	}
	if c.cfg.MaxBackoff > 0 {
		bo.MaxInterval = c.cfg.MaxBackoff
	}

	logURL := provider.SanitizeURL(target)
	for attempt := 0; ; attempt++ {
		if err := c.limiter(providerKey).Wait(ctx); err != nil {
			if e := errs.FromContext(providerKey, ctx.Err()); e != nil {
				return pagination.Response{}, e
			}
			return pagination.Response{}, errs.New(providerKey, errs.KindUpstreamHTTP,
				errs.WithMessage("rate limiter"), errs.WithCause(err))
		}

		started := time.Now()
		resp, sendErr := c.rest.R().
			SetContext(ctx).
			SetHeaderMultiValues(header).
			Execute(method, target)
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		c.metrics.RecordRoundTrip(ctx, providerKey, method, status, time.Since(started))
		observability.Log().Debug("provider request",
			observability.F("provider", providerKey),
			observability.F("method", method),
			observability.F("url", logURL),
			observability.F("status", status),
			observability.F("attempt", attempt))

		result, reason, err := c.classify(ctx, providerKey, resp, sendErr)
		if err == nil {
			return result, nil
		}
		if reason == "" || attempt >= c.cfg.MaxRetries {
			if reason != "" {
				if e, ok := errs.As(err); ok {
					err = e.With(providerKey, "", errs.WithField("attempts", strconv.Itoa(attempt+1)))
				}
			}
			return pagination.Response{}, err
		}

		wait := bo.NextBackOff()
		if after := retryAfter(resp); after > 0 {
			wait = after
			if c.cfg.MaxBackoff > 0 && wait > c.cfg.MaxBackoff {
				wait = c.cfg.MaxBackoff
			}
		}
		c.metrics.RecordRetry(ctx, providerKey, reason)
		observability.Log().Info("retrying provider request",
			observability.F("provider", providerKey),
			observability.F("url", logURL),
			observability.F("reason", reason),
			observability.F("wait", wait.String()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return pagination.Response{}, errs.FromContext(providerKey, ctx.Err())
		case <-timer.C:
		}
	}
}

// classify turns one attempt into a response or an error. A non-empty reason
// marks the error as retryable.
func (c *Client) classify(ctx context.Context, providerKey string, resp *resty.Response, sendErr error) (pagination.Response, string, error) {
	if sendErr != nil {
		if e := errs.FromContext(providerKey, ctx.Err()); e != nil {
			return pagination.Response{}, "", e
		}
		if isTimeout(sendErr) {
			return pagination.Response{}, "timeout", errs.New(providerKey, errs.KindUpstreamHTTP,
				errs.WithMessage("request timed out"),
				errs.WithField("timeout", "true"),
				errs.WithCause(sendErr))
		}
		return pagination.Response{}, "transport", errs.New(providerKey, errs.KindUpstreamHTTP,
			errs.WithMessage("transport failure"), errs.WithCause(sendErr))
	}

	status := resp.StatusCode()
	body := resp.Body()
	switch {
	case status == http.StatusUnauthorized:
		return pagination.Response{}, "", errs.New(providerKey, errs.KindAuthorization,
			errs.WithHTTP(status),
			errs.WithMessage("access token rejected"),
			errs.WithField("body", snippet(body)))
	case status == http.StatusTooManyRequests:
		return pagination.Response{}, "status_429", upstream(providerKey, status, body)
	case status >= http.StatusInternalServerError:
		return pagination.Response{}, "status_5xx", upstream(providerKey, status, body)
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return pagination.Response{}, "", upstream(providerKey, status, body)
	}

	out := pagination.Response{StatusCode: status, Header: resp.Header().Clone()}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, "", nil
	}
	node, err := jsonnode.Parse(body)
	if err != nil {
		return pagination.Response{}, "", errs.PageMapping(providerKey, "response body is not valid JSON",
			errs.WithHTTP(status), errs.WithCause(err))
	}
	out.Body = node
	return out, "", nil
}

func upstream(providerKey string, status int, body []byte) *errs.E {
	return errs.New(providerKey, errs.KindUpstreamHTTP,
		errs.WithHTTP(status),
		errs.WithMessage(http.StatusText(status)),
		errs.WithField("body", snippet(body)))
}

func (c *Client) limiter(providerKey string) *rate.Limiter {
	key := strings.ToLower(strings.TrimSpace(providerKey))
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[key]; ok {
		return l
	}
	rps := c.cfg.RequestsPerSecond
	if override, ok := c.rates[key]; ok && override > 0 {
		rps = override
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	burst := c.cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	l := rate.NewLimiter(limit, burst)
	c.limiters[key] = l
	return l
}

// authorize places the token in the query string when the provider wants it there.
func authorize(raw string, creds Credentials) (string, error) {
	if creds.Placement != provider.TokenInQuery || creds.AccessToken == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	param := creds.Param
	if param == "" {
		param = "access_token"
	}
	q := u.Query()
	q.Set(param, creds.AccessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func retryAfter(resp *resty.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := strings.TrimSpace(resp.Header().Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func snippet(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) <= maxErrorBody {
		return trimmed
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}
