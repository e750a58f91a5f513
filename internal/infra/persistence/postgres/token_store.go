package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/shimmer/internal/domain/tokenstore"
)

// TokenStore persists OAuth2 credentials in PostgreSQL.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore constructs a TokenStore backed by the provided pgx pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

var _ tokenstore.Store = (*TokenStore)(nil)

const (
	tokenUpsertSQL = `
INSERT INTO oauth_tokens (
    user_id,
    provider,
    access_token,
    refresh_token,
    token_type,
    scopes,
    vendor_user_id,
    expires_at,
    updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (user_id, provider) DO UPDATE SET
    access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    token_type = EXCLUDED.token_type,
    scopes = EXCLUDED.scopes,
    vendor_user_id = EXCLUDED.vendor_user_id,
    expires_at = EXCLUDED.expires_at,
    updated_at = NOW();
`
	tokenSelectSQL = `
SELECT access_token, refresh_token, token_type, scopes, vendor_user_id, expires_at, updated_at
FROM oauth_tokens
WHERE user_id = $1 AND provider = $2;
`
	tokenDeleteSQL = `DELETE FROM oauth_tokens WHERE user_id = $1 AND provider = $2;`
)

// Load returns the credentials of key or tokenstore.ErrNotFound.
func (s *TokenStore) Load(ctx context.Context, key tokenstore.Key) (tokenstore.Token, error) {
	if s.pool == nil {
		return tokenstore.Token{}, fmt.Errorf("token store: nil pool")
	}
	key, err := normaliseKey(key)
	if err != nil {
		return tokenstore.Token{}, err
	}
	token := tokenstore.Token{UserID: key.UserID, Provider: key.Provider}
	var expires *time.Time
	err = s.pool.QueryRow(ctx, tokenSelectSQL, key.UserID, key.Provider).Scan(
		&token.AccessToken,
		&token.RefreshToken,
		&token.TokenType,
		&token.Scopes,
		&token.VendorUserID,
		&expires,
		&token.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tokenstore.Token{}, tokenstore.ErrNotFound
		}
		return tokenstore.Token{}, fmt.Errorf("token store: load: %w", err)
	}
	if expires != nil {
		token.ExpiresAt = expires.UTC()
	}
	return token, nil
}

// Save upserts the credentials.
func (s *TokenStore) Save(ctx context.Context, token tokenstore.Token) error {
	if s.pool == nil {
		return fmt.Errorf("token store: nil pool")
	}
	key, err := normaliseKey(token.Key())
	if err != nil {
		return err
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return fmt.Errorf("token store: access token required")
	}
	var expires *time.Time
	if !token.ExpiresAt.IsZero() {
		at := token.ExpiresAt.UTC()
		expires = &at
	}
	scopes := token.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	if _, err := s.pool.Exec(ctx, tokenUpsertSQL,
		key.UserID,
		key.Provider,
		token.AccessToken,
		token.RefreshToken,
		token.TokenType,
		scopes,
		token.VendorUserID,
		expires,
	); err != nil {
		return fmt.Errorf("token store: save: %w", err)
	}
	return nil
}

// Delete removes the credentials of key. Deleting a missing row is not an error.
func (s *TokenStore) Delete(ctx context.Context, key tokenstore.Key) error {
	if s.pool == nil {
		return fmt.Errorf("token store: nil pool")
	}
	key, err := normaliseKey(key)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, tokenDeleteSQL, key.UserID, key.Provider); err != nil {
		return fmt.Errorf("token store: delete: %w", err)
	}
	return nil
}

func normaliseKey(key tokenstore.Key) (tokenstore.Key, error) {
	key.UserID = strings.TrimSpace(key.UserID)
	key.Provider = strings.ToLower(strings.TrimSpace(key.Provider))
	if key.UserID == "" {
		return key, fmt.Errorf("token store: user id required")
	}
	if key.Provider == "" {
		return key, fmt.Errorf("token store: provider required")
	}
	return key, nil
}
