// Package tokenstore defines persistence contracts for OAuth2 credentials.
package tokenstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that no credentials exist for a (user, provider) pair.
var ErrNotFound = errors.New("tokenstore: token not found")

// Token is the persisted OAuth2 credential set of one user at one provider.
type Token struct {
	UserID       string
	Provider     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scopes       []string
	// VendorUserID is the provider's own identifier for the user, when the API needs it in paths.
	VendorUserID string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the access token is unusable at now, treating tokens
// that expire within skew as already expired. A zero ExpiresAt never expires.
func (t Token) Expired(now time.Time, skew time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(t.ExpiresAt)
}

// Key identifies the credentials of one user at one provider.
type Key struct {
	UserID   string
	Provider string
}

// Key returns the lookup key of the token.
func (t Token) Key() Key {
	return Key{UserID: t.UserID, Provider: t.Provider}
}

// Store abstracts persistence operations for OAuth2 credentials.
type Store interface {
	Load(ctx context.Context, key Key) (Token, error)
	Save(ctx context.Context, token Token) error
	Delete(ctx context.Context, key Key) error
}
