package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coachpo/shimmer/internal/domain/schema"
)

// EndpointStore answers endpoint configuration lookups by (provider, measure).
// It is read-mostly; Replace swaps a single entry after validating it.
type EndpointStore struct {
	mu        sync.RWMutex
	providers map[string]ProviderConfig
}

// NewEndpointStore constructs a store seeded with a copy of the configured providers.
func NewEndpointStore(providers map[string]ProviderConfig) *EndpointStore {
	seeded := make(map[string]ProviderConfig, len(providers))
	for name, provider := range providers {
		seeded[normalizeProviderName(name)] = provider.Clone()
	}
	return &EndpointStore{mu: sync.RWMutex{}, providers: seeded}
}

// Providers lists the configured provider keys in sorted order.
func (s *EndpointStore) Providers() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.providers))
	for key := range s.providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Provider returns a copy of the provider configuration.
func (s *EndpointStore) Provider(name string) (ProviderConfig, bool) {
	if s == nil {
		return ProviderConfig{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	provider, ok := s.providers[normalizeProviderName(name)]
	if !ok {
		return ProviderConfig{}, false
	}
	return provider.Clone(), true
}

// Lookup returns the endpoint override for (provider, measure).
func (s *EndpointStore) Lookup(provider string, measure schema.MeasureType, fineGrained bool) (EndpointConfig, bool) {
	cfg, ok := s.Provider(provider)
	if !ok {
		return EndpointConfig{}, false
	}
	table := cfg.Endpoints
	if fineGrained {
		table = cfg.FineEndpoints
	}
	endpoint, ok := table[measure]
	return endpoint, ok
}

// Replace validates and stores a single endpoint override.
func (s *EndpointStore) Replace(provider string, measure schema.MeasureType, endpoint EndpointConfig) error {
	if s == nil {
		return fmt.Errorf("endpoint store unavailable")
	}
	if endpoint.Pagination != nil {
		if err := endpoint.Pagination.Validate(); err != nil {
			return err
		}
	}
	name := normalizeProviderName(provider)
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.providers[name]
	if cfg.Endpoints == nil {
		cfg.Endpoints = make(map[schema.MeasureType]EndpointConfig)
	}
	cfg.Endpoints[measure] = endpoint.Clone()
	s.providers[name] = cfg
	return nil
}
