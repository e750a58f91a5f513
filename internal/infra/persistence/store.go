// Package persistence owns the database pool behind the OAuth2 credential repository.
package persistence

import "github.com/jackc/pgx/v5/pgxpool"

// Store holds the pgx pool the token repository reads and writes through.
// The postgres subpackage embeds it and hands out the repository itself.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool. A nil pool is accepted; repositories report it on first use.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the shared pool, nil for a nil Store.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close releases the pool once retrieval is done with the token repository.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
