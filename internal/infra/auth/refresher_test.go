package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/app/provider"
	"github.com/coachpo/shimmer/internal/domain/tokenstore"
	"github.com/coachpo/shimmer/internal/infra/config"
	"github.com/coachpo/shimmer/internal/infra/lock/redislock"
	"github.com/coachpo/shimmer/internal/jsonnode"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func tokenServer(t *testing.T, calls *atomic.Int32, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		if id, secret, ok := r.BasicAuth(); !ok || id != "client" || secret != "shh" {
			t.Errorf("unexpected basic auth %q %q", id, secret)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRefresher(tokenURL string, store tokenstore.Store, opts ...func(*Options)) *Refresher {
	reg := provider.NewRegistry()
	reg.Register(&provider.Definition{
		Key:  "fitbit",
		Auth: provider.AuthSettings{TokenURL: tokenURL, ClientID: "client", ClientSecret: "shh"},
	})
	o := Options{Registry: reg, Store: store, Auth: config.AuthConfig{RefreshTimeout: time.Second, ExpirySkew: time.Minute}}
	for _, opt := range opts {
		opt(&o)
	}
	r := NewRefresher(o)
	r.now = func() time.Time { return fixedNow }
	return r
}

func storedToken(expires time.Time) tokenstore.Token {
	return tokenstore.Token{
		UserID:       "user-1",
		Provider:     "fitbit",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expires,
	}
}

var testKey = tokenstore.Key{UserID: "user-1", Provider: "fitbit"}

func TestTokenReturnsValidStoredToken(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, http.StatusOK, `{}`)
	r := newRefresher(srv.URL, tokenstore.NewMemory(storedToken(fixedNow.Add(time.Hour))))

	token, err := r.Token(context.Background(), testKey)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token.AccessToken != "access-1" || calls.Load() != 0 {
		t.Fatalf("expected stored token without refresh, got %q after %d calls", token.AccessToken, calls.Load())
	}
}

func TestTokenRefreshesWithinSkew(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, http.StatusOK,
		`{"access_token":"access-2","refresh_token":"refresh-2","expires_in":28800,"token_type":"Bearer","scope":"activity heartrate","user_id":"ABC"}`)
	store := tokenstore.NewMemory(storedToken(fixedNow.Add(30 * time.Second)))
	r := newRefresher(srv.URL, store)

	token, err := r.Token(context.Background(), testKey)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token.AccessToken != "access-2" || token.RefreshToken != "refresh-2" || token.VendorUserID != "ABC" {
		t.Fatalf("unexpected refreshed token %+v", token)
	}
	if !token.ExpiresAt.Equal(fixedNow.Add(8 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", token.ExpiresAt)
	}
	if len(token.Scopes) != 2 {
		t.Fatalf("unexpected scopes %v", token.Scopes)
	}
	saved, err := store.Load(context.Background(), testKey)
	if err != nil || saved.AccessToken != "access-2" {
		t.Fatalf("expected refreshed token persisted, got %+v (%v)", saved, err)
	}
}

func TestRefreshIsSerializedPerKey(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"access-2","expires_in":3600}`)
	r := newRefresher(srv.URL, tokenstore.NewMemory(storedToken(time.Time{})))

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := r.Refresh(context.Background(), testKey, "access-1")
			if err != nil {
				t.Errorf("refresh: %v", err)
				return
			}
			results[i] = token.AccessToken
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one grant, got %d", calls.Load())
	}
	for i, got := range results {
		if got != "access-2" {
			t.Fatalf("caller %d got %q", i, got)
		}
	}
}

func TestRefreshWaiterHonoursCancellation(t *testing.T) {
	granting := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(granting)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-2","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	r := newRefresher(srv.URL, tokenstore.NewMemory(storedToken(time.Time{})))

	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background(), testKey, "access-1")
		done <- err
	}()
	<-granting

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, err := r.Refresh(ctx, testKey, "access-1")
	if !errs.Is(err, errs.KindCancellation) {
		t.Fatalf("expected cancellation while waiting for the refresh, got %v", err)
	}
	if waited := time.Since(started); waited > time.Second {
		t.Fatalf("waiter blocked for %s", waited)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight refresh: %v", err)
	}
}

func TestRefreshRejectedIsAuthorizationError(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, http.StatusBadRequest, `{"errors":[{"errorType":"invalid_grant"}]}`)
	r := newRefresher(srv.URL, tokenstore.NewMemory(storedToken(time.Time{})))

	_, err := r.Refresh(context.Background(), testKey, "access-1")
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindAuthorization || e.HTTP != http.StatusBadRequest {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, http.StatusOK, `{}`)
	token := storedToken(time.Time{})
	token.RefreshToken = ""
	r := newRefresher(srv.URL, tokenstore.NewMemory(token))

	if _, err := r.Refresh(context.Background(), testKey, "access-1"); !errs.Is(err, errs.KindAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no grant, got %d", calls.Load())
	}
}

func TestMissingTokenIsAuthorizationError(t *testing.T) {
	r := newRefresher("http://127.0.0.1:0", tokenstore.NewMemory())
	_, err := r.Token(context.Background(), testKey)
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindAuthorization || e.Remediation == "" {
		t.Fatalf("expected authorization error with remediation, got %v", err)
	}
}

func TestParseGrantReadsWithingsEnvelope(t *testing.T) {
	body := jsonnode.MustParse(`{"status":0,"body":{"userid":363,"access_token":"a","refresh_token":"r","expires_in":10800,"scope":"user.info,user.metrics"}}`)
	token, err := parseGrant(storedToken(time.Time{}), body, fixedNow)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if token.VendorUserID != "363" || token.AccessToken != "a" || len(token.Scopes) != 2 {
		t.Fatalf("unexpected token %+v", token)
	}
}

func TestRefreshUsesRedisLockAndCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls atomic.Int32
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"access-2","expires_in":3600}`)
	cache := redislock.NewTokenCache(client, time.Minute)
	r := newRefresher(srv.URL, tokenstore.NewMemory(storedToken(time.Time{})), func(o *Options) {
		o.Locker = redislock.NewLocker(client, time.Second)
		o.Cache = cache
	})
	r.now = time.Now

	if _, err := r.Refresh(context.Background(), testKey, "access-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("expected only the cached token to remain, got keys %v", mr.Keys())
	}
	cached, ok, err := cache.Get(context.Background(), testKey)
	if err != nil || !ok || cached.AccessToken != "access-2" {
		t.Fatalf("expected cached refreshed token, got %+v ok=%v err=%v", cached, ok, err)
	}

	token, err := r.Token(context.Background(), testKey)
	if err != nil || token.AccessToken != "access-2" {
		t.Fatalf("expected cached token, got %+v (%v)", token, err)
	}
}
