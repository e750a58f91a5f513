package tokenstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and single-shot CLI runs.
type Memory struct {
	mu     sync.RWMutex
	tokens map[Key]Token
}

// NewMemory returns a store seeded with tokens.
func NewMemory(tokens ...Token) *Memory {
	m := &Memory{tokens: make(map[Key]Token, len(tokens))}
	for _, token := range tokens {
		m.tokens[token.Key()] = clone(token)
	}
	return m
}

func (m *Memory) Load(_ context.Context, key Key) (Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[key]
	if !ok {
		return Token{}, ErrNotFound
	}
	return clone(token), nil
}

func (m *Memory) Save(_ context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Key()] = clone(token)
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, key)
	return nil
}

func clone(token Token) Token {
	token.Scopes = append([]string(nil), token.Scopes...)
	return token
}
