package provider

import (
	"sort"
	"strings"
	"sync"

	"github.com/coachpo/shimmer/errs"
)

// Registry maintains provider definitions keyed by provider key. It is built once
// at startup and passed explicitly to whoever needs it.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:          sync.RWMutex{},
		definitions: make(map[string]*Definition),
	}
}

// Register adds a definition. Registering nil or a duplicate key is a programming error.
func (r *Registry) Register(def *Definition) {
	if def == nil {
		panic("provider definition required")
	}
	key := normalizeKey(def.Key)
	if key == "" {
		panic("provider definition key required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[key]; exists {
		panic("provider " + key + " already registered")
	}
	r.definitions[key] = def
}

// Lookup returns the definition for key.
func (r *Registry) Lookup(key string) (*Definition, error) {
	r.mu.RLock()
	def, ok := r.definitions[normalizeKey(key)]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Configuration(key, "provider not registered",
			errs.WithRemediation("choose one of: "+strings.Join(r.Keys(), ", ")))
	}
	return def, nil
}

// Keys lists the registered provider keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.definitions))
	for key := range r.definitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
