package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"no expiry", time.Time{}, false},
		{"future", now.Add(time.Hour), false},
		{"inside skew", now.Add(30 * time.Second), true},
		{"past", now.Add(-time.Second), true},
	}
	for _, tc := range cases {
		if got := (Token{ExpiresAt: tc.expires}).Expired(now, time.Minute); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	key := Key{UserID: "u1", Provider: "fitbit"}
	store := NewMemory(Token{UserID: "u1", Provider: "fitbit", AccessToken: "a", Scopes: []string{"sleep"}})

	token, err := store.Load(ctx, key)
	if err != nil || token.AccessToken != "a" {
		t.Fatalf("unexpected load %+v %v", token, err)
	}
	token.Scopes[0] = "mutated"
	again, _ := store.Load(ctx, key)
	if again.Scopes[0] != "sleep" {
		t.Fatal("loaded tokens must not alias stored state")
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
