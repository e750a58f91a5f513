package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	json "github.com/goccy/go-json"

	"github.com/coachpo/shimmer/internal/domain/tokenstore"
)

const cachePrefix = "shimmer:token:"

// TokenCache keeps recently refreshed tokens so sibling processes skip the store.
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

type cachedToken struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	VendorUserID string    `json:"vendorUserId,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewTokenCache returns a cache whose entries live for ttl.
func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenCache{client: client, ttl: ttl}
}

func cacheKey(key tokenstore.Key) string {
	return cachePrefix + strings.ToLower(strings.TrimSpace(key.Provider)) + ":" + strings.TrimSpace(key.UserID)
}

// Get returns the cached token of key. ok is false on a miss.
func (c *TokenCache) Get(ctx context.Context, key tokenstore.Key) (tokenstore.Token, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return tokenstore.Token{}, false, nil
		}
		return tokenstore.Token{}, false, fmt.Errorf("token cache: get: %w", err)
	}
	var cached cachedToken
	if err := json.Unmarshal(raw, &cached); err != nil {
		return tokenstore.Token{}, false, fmt.Errorf("token cache: decode: %w", err)
	}
	return tokenstore.Token{
		UserID:       key.UserID,
		Provider:     key.Provider,
		AccessToken:  cached.AccessToken,
		RefreshToken: cached.RefreshToken,
		TokenType:    cached.TokenType,
		Scopes:       cached.Scopes,
		VendorUserID: cached.VendorUserID,
		ExpiresAt:    cached.ExpiresAt,
		UpdatedAt:    cached.UpdatedAt,
	}, true, nil
}

// Put caches token, shortening the ttl when the token expires sooner.
func (c *TokenCache) Put(ctx context.Context, token tokenstore.Token) error {
	ttl := c.ttl
	if !token.ExpiresAt.IsZero() {
		remaining := time.Until(token.ExpiresAt)
		if remaining <= 0 {
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}
	raw, err := json.Marshal(cachedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scopes:       token.Scopes,
		VendorUserID: token.VendorUserID,
		ExpiresAt:    token.ExpiresAt,
		UpdatedAt:    token.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("token cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(token.Key()), raw, ttl).Err(); err != nil {
		return fmt.Errorf("token cache: set: %w", err)
	}
	return nil
}

// Invalidate drops the cached token of key.
func (c *TokenCache) Invalidate(ctx context.Context, key tokenstore.Key) error {
	if err := c.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("token cache: del: %w", err)
	}
	return nil
}
