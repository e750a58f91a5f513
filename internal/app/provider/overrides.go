package provider

import (
	"regexp"
	"strings"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/infra/config"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z]+)\}`)

// ApplyOverrides merges configured client registrations and endpoint overrides
// into the registry. It runs once at startup before the registry is shared.
func ApplyOverrides(reg *Registry, store *config.EndpointStore) error {
	for _, key := range store.Providers() {
		cfg, _ := store.Provider(key)
		def, err := reg.Lookup(key)
		if err != nil {
			return err
		}
		reg.mu.Lock()
		err = applyProvider(def, cfg)
		reg.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func applyProvider(def *Definition, cfg config.ProviderConfig) error {
	if cfg.ClientID != "" {
		def.Auth.ClientID = cfg.ClientID
	}
	if cfg.ClientSecret != "" {
		def.Auth.ClientSecret = cfg.ClientSecret
	}
	if cfg.TokenURL != "" {
		def.Auth.TokenURL = cfg.TokenURL
	}
	if len(cfg.Scopes) > 0 {
		def.Auth.Scopes = append([]string(nil), cfg.Scopes...)
	}
	if cfg.BaseURL != "" {
		def.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	var err error
	if def.Endpoints, err = mergeEndpoints(def.Key, def.Endpoints, cfg.Endpoints); err != nil {
		return err
	}
	if def.FineEndpoints, err = mergeEndpoints(def.Key, def.FineEndpoints, cfg.FineEndpoints); err != nil {
		return err
	}
	return nil
}

func mergeEndpoints(key string, base map[schema.MeasureType]Endpoint, overrides map[schema.MeasureType]config.EndpointConfig) (map[schema.MeasureType]Endpoint, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	merged := make(map[schema.MeasureType]Endpoint, len(base)+len(overrides))
	for measure, endpoint := range base {
		merged[measure] = endpoint
	}
	for measure, override := range overrides {
		endpoint, ok := merged[measure]
		if !ok && override.URITemplate == "" {
			return nil, errs.Configuration(key, "endpoint override for unsupported measure needs a uriTemplate",
				errs.WithMeasure(string(measure)))
		}
		if override.Method != "" {
			endpoint.Method = override.Method
		}
		if override.URITemplate != "" {
			endpoint.URITemplate = override.URITemplate
		}
		endpoint.Query = mergeStrings(endpoint.Query, override.Query)
		endpoint.Header = mergeStrings(endpoint.Header, override.Header)
		if override.Pagination != nil {
			endpoint.Pagination = *override.Pagination
		}
		if override.RangeQuery != nil {
			endpoint.RangeQuery = *override.RangeQuery
		}
		if err := checkPlaceholders(endpoint); err != nil {
			return nil, errs.Configuration(key, err.Error(), errs.WithMeasure(string(measure)))
		}
		merged[measure] = endpoint
	}
	return merged, nil
}

func mergeStrings(base, override map[string]string) map[string]string {
	if len(override) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

type placeholderError string

func (e placeholderError) Error() string { return "unknown placeholder {" + string(e) + "}" }

func checkPlaceholders(endpoint Endpoint) error {
	known := make(map[string]struct{}, len(Variables))
	for _, name := range Variables {
		known[name] = struct{}{}
	}
	values := []string{endpoint.URITemplate}
	for _, v := range endpoint.Query {
		values = append(values, v)
	}
	for _, v := range endpoint.Header {
		values = append(values, v)
	}
	for _, value := range values {
		for _, match := range placeholderPattern.FindAllStringSubmatch(value, -1) {
			if _, ok := known[match[1]]; !ok {
				return placeholderError(match[1])
			}
		}
	}
	return nil
}
