package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/pagination"
)

// ProviderConfig carries the client registration and endpoint overrides of one provider.
// String credentials may reference environment variables as ${NAME}.
type ProviderConfig struct {
	ClientID          string                                `yaml:"clientId"`
	ClientSecret      string                                `yaml:"clientSecret"`
	BaseURL           string                                `yaml:"baseUrl"`
	TokenURL          string                                `yaml:"tokenUrl"`
	Scopes            []string                              `yaml:"scopes"`
	RequestsPerSecond float64                               `yaml:"requestsPerSecond"`
	Endpoints         map[schema.MeasureType]EndpointConfig `yaml:"endpoints"`
	FineEndpoints     map[schema.MeasureType]EndpointConfig `yaml:"fineEndpoints"`
}

// EndpointConfig overrides the built-in endpoint of one measure. Zero fields keep the built-in value.
type EndpointConfig struct {
	Method      string               `yaml:"method"`
	URITemplate string               `yaml:"uriTemplate"`
	Query       map[string]string    `yaml:"query"`
	Header      map[string]string    `yaml:"header"`
	Pagination  *pagination.Settings `yaml:"pagination"`
	RangeQuery  *bool                `yaml:"rangeQuery"`
}

// Clone returns a deep copy of the endpoint configuration.
func (e EndpointConfig) Clone() EndpointConfig {
	out := e
	out.Query = cloneStrings(e.Query)
	out.Header = cloneStrings(e.Header)
	if e.Pagination != nil {
		settings := *e.Pagination
		out.Pagination = &settings
	}
	if e.RangeQuery != nil {
		v := *e.RangeQuery
		out.RangeQuery = &v
	}
	return out
}

// Clone returns a deep copy of the provider configuration.
func (p ProviderConfig) Clone() ProviderConfig {
	out := p
	out.Scopes = append([]string(nil), p.Scopes...)
	out.Endpoints = cloneEndpoints(p.Endpoints)
	out.FineEndpoints = cloneEndpoints(p.FineEndpoints)
	return out
}

func (p *ProviderConfig) normalise() error {
	p.ClientID = strings.TrimSpace(os.ExpandEnv(p.ClientID))
	p.ClientSecret = strings.TrimSpace(os.ExpandEnv(p.ClientSecret))
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	p.TokenURL = strings.TrimSpace(p.TokenURL)
	var err error
	if p.Endpoints, err = normaliseEndpoints(p.Endpoints); err != nil {
		return err
	}
	if p.FineEndpoints, err = normaliseEndpoints(p.FineEndpoints); err != nil {
		return err
	}
	return nil
}

func (p ProviderConfig) validate() error {
	if p.RequestsPerSecond < 0 {
		return fmt.Errorf("requestsPerSecond must be >=0")
	}
	for measure, endpoint := range p.Endpoints {
		if endpoint.Pagination == nil {
			continue
		}
		if err := endpoint.Pagination.Validate(); err != nil {
			return fmt.Errorf("endpoint %s: %w", measure, err)
		}
	}
	for measure, endpoint := range p.FineEndpoints {
		if endpoint.Pagination == nil {
			continue
		}
		if err := endpoint.Pagination.Validate(); err != nil {
			return fmt.Errorf("fine endpoint %s: %w", measure, err)
		}
	}
	return nil
}

func normaliseEndpoints(in map[schema.MeasureType]EndpointConfig) (map[schema.MeasureType]EndpointConfig, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[schema.MeasureType]EndpointConfig, len(in))
	for key, endpoint := range in {
		measure, err := schema.ParseMeasureType(string(key))
		if err != nil {
			return nil, err
		}
		if _, exists := out[measure]; exists {
			return nil, fmt.Errorf("duplicate endpoint %q", measure)
		}
		endpoint.Method = strings.ToUpper(strings.TrimSpace(endpoint.Method))
		endpoint.URITemplate = strings.TrimSpace(endpoint.URITemplate)
		out[measure] = endpoint
	}
	return out, nil
}

func cloneEndpoints(in map[schema.MeasureType]EndpointConfig) map[schema.MeasureType]EndpointConfig {
	if in == nil {
		return nil
	}
	out := make(map[schema.MeasureType]EndpointConfig, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
