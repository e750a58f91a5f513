// Package auth hands out provider access tokens and runs the OAuth2
// refresh-token grant, at most once at a time per (user, provider).
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/domain/tokenstore"
	"github.com/coachpo/shimmer/internal/infra/config"
	"github.com/coachpo/shimmer/internal/infra/telemetry"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/observability"
)

// Locker serializes refreshes across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// Cache shares refreshed tokens across processes.
type Cache interface {
	Get(ctx context.Context, key tokenstore.Key) (tokenstore.Token, bool, error)
	Put(ctx context.Context, token tokenstore.Token) error
}

// Options configures a Refresher. Locker and Cache are optional.
type Options struct {
	Registry *provider.Registry
	Store    tokenstore.Store
	Auth     config.AuthConfig
	Rest     *resty.Client
	Metrics  *telemetry.HTTPMetrics
	Locker   Locker
	Cache    Cache
}

// Refresher loads tokens and refreshes them through the provider token endpoint.
type Refresher struct {
	registry *provider.Registry
	store    tokenstore.Store
	cfg      config.AuthConfig
	rest     *resty.Client
	metrics  *telemetry.HTTPMetrics
	locker   Locker
	cache    Cache
	now      func() time.Time

	mu    sync.Mutex
	locks map[tokenstore.Key]chan struct{}
}

// NewRefresher builds a Refresher.
func NewRefresher(opts Options) *Refresher {
	rest := opts.Rest
	if rest == nil {
		rest = resty.New()
	}
	return &Refresher{
		registry: opts.Registry,
		store:    opts.Store,
		cfg:      opts.Auth,
		rest:     rest,
		metrics:  opts.Metrics,
		locker:   opts.Locker,
		cache:    opts.Cache,
		now:      time.Now,
		mu:       sync.Mutex{},
		locks:    make(map[tokenstore.Key]chan struct{}),
	}
}

// Token returns a usable token for key, refreshing it first when it expires
// within the configured skew.
func (r *Refresher) Token(ctx context.Context, key tokenstore.Key) (tokenstore.Token, error) {
	token, err := r.load(ctx, key)
	if err != nil {
		return tokenstore.Token{}, err
	}
	if !token.Expired(r.now(), r.cfg.ExpirySkew) || token.RefreshToken == "" {
		return token, nil
	}
	return r.Refresh(ctx, key, token.AccessToken)
}

// Refresh runs the refresh-token grant for key. When another caller already
// replaced the stale access token, the replacement is returned without a new grant.
func (r *Refresher) Refresh(ctx context.Context, key tokenstore.Key, stale string) (tokenstore.Token, error) {
	lock := r.keyLock(key)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return tokenstore.Token{}, errs.FromContext(key.Provider, ctx.Err())
	}
	defer func() { <-lock }()

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, key.Provider+":"+key.UserID)
		if err != nil {
			if e := errs.FromContext(key.Provider, err); e != nil {
				return tokenstore.Token{}, e
			}
			return tokenstore.Token{}, errs.New(key.Provider, errs.KindAuthorization,
				errs.WithMessage("token refresh lock unavailable"), errs.WithCause(err))
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				observability.Log().Error("release refresh lock", observability.F("provider", key.Provider), observability.Err(err))
			}
		}()
	}

	current, err := r.load(ctx, key)
	if err != nil {
		return tokenstore.Token{}, err
	}
	if current.AccessToken != stale && !current.Expired(r.now(), r.cfg.ExpirySkew) {
		return current, nil
	}
	if current.RefreshToken == "" {
		r.metrics.RecordRefresh(ctx, key.Provider, telemetry.ResultError)
		return tokenstore.Token{}, errs.New(key.Provider, errs.KindAuthorization,
			errs.WithMessage("access token rejected and no refresh token stored"),
			errs.WithRemediation("re-authorize the user with the provider"))
	}

	refreshed, err := r.grant(ctx, current)
	if err != nil {
		r.metrics.RecordRefresh(ctx, key.Provider, telemetry.ResultError)
		return tokenstore.Token{}, err
	}
	r.metrics.RecordRefresh(ctx, key.Provider, telemetry.ResultSuccess)

	if err := r.store.Save(ctx, refreshed); err != nil {
		return tokenstore.Token{}, errs.New(key.Provider, errs.KindAuthorization,
			errs.WithMessage("persist refreshed token"), errs.WithCause(err))
	}
	if r.cache != nil {
		if err := r.cache.Put(ctx, refreshed); err != nil {
			observability.Log().Error("cache refreshed token", observability.F("provider", key.Provider), observability.Err(err))
		}
	}
	observability.Log().Info("refreshed access token",
		observability.F("provider", key.Provider),
		observability.F("user", key.UserID))
	return refreshed, nil
}

func (r *Refresher) load(ctx context.Context, key tokenstore.Key) (tokenstore.Token, error) {
	if r.cache != nil {
		token, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			observability.Log().Error("read token cache", observability.F("provider", key.Provider), observability.Err(err))
		} else if ok {
			return token, nil
		}
	}
	token, err := r.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return tokenstore.Token{}, errs.New(key.Provider, errs.KindAuthorization,
				errs.WithMessage("no access token stored for user"),
				errs.WithField("user", key.UserID),
				errs.WithRemediation("complete the OAuth2 authorization flow for this user"))
		}
		if e := errs.FromContext(key.Provider, err); e != nil {
			return tokenstore.Token{}, e
		}
		return tokenstore.Token{}, errs.New(key.Provider, errs.KindAuthorization,
			errs.WithMessage("load access token"), errs.WithCause(err))
	}
	return token, nil
}

func (r *Refresher) grant(ctx context.Context, current tokenstore.Token) (tokenstore.Token, error) {
	def, err := r.registry.Lookup(current.Provider)
	if err != nil {
		return tokenstore.Token{}, err
	}
	settings := def.Auth
	if strings.TrimSpace(settings.TokenURL) == "" {
		return tokenstore.Token{}, errs.Configuration(def.Key, "token url not configured")
	}
	if r.cfg.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RefreshTimeout)
		defer cancel()
	}

	form := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": current.RefreshToken,
	}
	if settings.ClientID != "" {
		form["client_id"] = settings.ClientID
	}
	req := r.rest.R().SetContext(ctx).SetFormData(form)
	if settings.ClientID != "" {
		req.SetBasicAuth(settings.ClientID, settings.ClientSecret)
	}
	resp, err := req.Post(settings.TokenURL)
	if err != nil {
		if e := errs.FromContext(def.Key, ctx.Err()); e != nil {
			return tokenstore.Token{}, e
		}
		return tokenstore.Token{}, errs.New(def.Key, errs.KindUpstreamHTTP,
			errs.WithMessage("token endpoint unreachable"), errs.WithCause(err))
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return tokenstore.Token{}, errs.New(def.Key, errs.KindAuthorization,
			errs.WithHTTP(resp.StatusCode()),
			errs.WithMessage("refresh token rejected"),
			errs.WithRemediation("re-authorize the user with the provider"))
	}
	body, err := jsonnode.Parse(resp.Body())
	if err != nil {
		return tokenstore.Token{}, errs.New(def.Key, errs.KindAuthorization,
			errs.WithMessage("token response is not valid JSON"), errs.WithCause(err))
	}
	return parseGrant(current, body, r.now())
}

// parseGrant reads a token response. Withings nests the payload under "body".
func parseGrant(current tokenstore.Token, body jsonnode.Node, now time.Time) (tokenstore.Token, error) {
	if nested := body.Get("body"); nested.IsObject() {
		body = nested
	}
	access, err := body.RequiredString("access_token")
	if err != nil {
		return tokenstore.Token{}, errs.New(current.Provider, errs.KindAuthorization,
			errs.WithMessage("token response without access_token"), errs.WithCause(err))
	}
	out := current
	out.AccessToken = access
	out.UpdatedAt = now.UTC()
	if refresh := body.OptionalString("refresh_token"); refresh != nil && *refresh != "" {
		out.RefreshToken = *refresh
	}
	if tokenType := body.OptionalString("token_type"); tokenType != nil {
		out.TokenType = *tokenType
	}
	if scope := body.OptionalString("scope"); scope != nil {
		out.Scopes = strings.FieldsFunc(*scope, func(r rune) bool { return r == ' ' || r == ',' })
	}
	out.ExpiresAt = time.Time{}
	if seconds := body.OptionalInt64("expires_in"); seconds != nil && *seconds > 0 {
		out.ExpiresAt = now.Add(time.Duration(*seconds) * time.Second).UTC()
	}
	for _, field := range []string{"user_id", "userid", "UserID"} {
		if vendor, ok := body.Get(field).String(); ok && vendor != "" {
			out.VendorUserID = vendor
			break
		}
	}
	return out, nil
}

// keyLock returns the single-slot semaphore guarding refreshes of key.
func (r *Refresher) keyLock(key tokenstore.Key) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = make(chan struct{}, 1)
		r.locks[key] = lock
	}
	return lock
}
