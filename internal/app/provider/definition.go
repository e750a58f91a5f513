// Package provider holds the constructed-once registry of provider definitions:
// endpoints, mapping tables and query-shape rules per measure.
package provider

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/mapping"
	"github.com/coachpo/shimmer/internal/pagination"
)

// QueryShape decides whether a date range is fetched in one logical request or one per day.
type QueryShape string

const (
	ShapeRange  QueryShape = "RANGE"
	ShapePerDay QueryShape = "PER_DAY"
)

// TokenPlacement is where the access token is attached to outbound requests.
type TokenPlacement string

const (
	TokenInHeader TokenPlacement = "header"
	TokenInQuery  TokenPlacement = "query"
)

// AuthSettings describes the OAuth2 client registration of a provider.
type AuthSettings struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Placement    TokenPlacement
	// TokenParam names the query parameter when Placement is query.
	TokenParam string
}

// Endpoint describes one vendor resource. URITemplate and Query values may reference
// the request variables listed in Variables.
type Endpoint struct {
	Method      string
	URITemplate string
	Query       map[string]string
	Header      map[string]string
	Pagination  pagination.Settings
	// RangeQuery is set when the resource accepts a start and end bound in one request.
	RangeQuery bool
}

// Variables are the placeholders an endpoint may reference.
var Variables = []string{
	"date", "startDate", "endDate",
	"startEpoch", "endEpoch", "startMillis", "endMillis", "startNanos", "endNanos",
	"startTime", "endTime",
	"userId", "vendorUserId", "clientId", "clientSecret",
}

// Request renders the endpoint into a pagination request for vars. Relative
// templates are resolved against baseURL.
func (e Endpoint) Request(baseURL string, vars map[string]string) pagination.Request {
	method := e.Method
	if method == "" {
		method = http.MethodGet
	}
	template := e.URITemplate
	if !strings.HasPrefix(template, "http://") && !strings.HasPrefix(template, "https://") {
		template = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(template, "/")
	}
	req := pagination.Request{
		Method:      method,
		URITemplate: template,
		PathParams:  make(map[string]string, len(vars)),
		Query:       url.Values{},
		Header:      http.Header{},
	}
	for k, v := range vars {
		if strings.Contains(template, "{"+k+"}") {
			req.PathParams[k] = v
		}
	}
	for k, v := range e.Query {
		req.Query.Set(k, expand(v, vars))
	}
	for k, v := range e.Header {
		req.Header.Set(k, expand(v, vars))
	}
	return req
}

func expand(template string, vars map[string]string) string {
	if !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Definition is everything the orchestrator needs to talk to one provider.
type Definition struct {
	Key         string
	DisplayName string
	SourceName  string
	BaseURL     string
	// Profile is fetched once per retrieval for two-node mapping tables.
	Profile       *Endpoint
	Endpoints     map[schema.MeasureType]Endpoint
	FineEndpoints map[schema.MeasureType]Endpoint
	Mappers       map[schema.MeasureType]mapping.Spec
	FineMappers   map[schema.MeasureType]mapping.Spec
	// Shape overrides the default rule of RANGE for range-capable endpoints and PER_DAY otherwise.
	Shape func(measure schema.MeasureType, fineGrained bool) QueryShape
	// WrapRawDays wraps raw per-day pages with their date because the payload omits it.
	WrapRawDays bool
	Auth        AuthSettings
}

// Binding is the resolved endpoint, mapper and shape for one measure.
type Binding struct {
	Measure  schema.MeasureType
	Endpoint Endpoint
	Mapper   mapping.Mapper
	Shape    QueryShape
}

// Measures lists the measures the provider supports in sorted order.
func (d *Definition) Measures() []schema.MeasureType {
	out := make([]schema.MeasureType, 0, len(d.Mappers))
	for measure := range d.Mappers {
		if _, ok := d.Endpoints[measure]; ok {
			out = append(out, measure)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve picks the endpoint and mapping table for measure. Fine-grained requests
// use the intraday tables when the provider has them and the standard ones otherwise.
func (d *Definition) Resolve(measure schema.MeasureType, fineGrained bool) (Binding, error) {
	endpoint, endpointOK := d.Endpoints[measure]
	spec, specOK := d.Mappers[measure]
	if fineGrained {
		if fine, ok := d.FineEndpoints[measure]; ok {
			endpoint, endpointOK = fine, true
			if fineSpec, ok := d.FineMappers[measure]; ok {
				spec, specOK = fineSpec, true
			}
		}
	}
	if !endpointOK || !specOK {
		return Binding{}, errs.Configuration(d.Key, "measure not supported by provider",
			errs.WithMeasure(string(measure)),
			errs.WithRemediation("choose one of: "+joinMeasures(d.Measures())))
	}
	mapper, err := mapping.NewMapper(spec)
	if err != nil {
		return Binding{}, err
	}
	if err := endpoint.Pagination.Validate(); err != nil {
		if e, ok := errs.As(err); ok {
			return Binding{}, e.With(d.Key, string(measure))
		}
		return Binding{}, err
	}
	if mapper.Arity() == 2 && d.Profile == nil {
		return Binding{}, errs.Configuration(d.Key, "mapping table needs a profile endpoint", errs.WithMeasure(string(measure)))
	}
	return Binding{Measure: measure, Endpoint: endpoint, Mapper: mapper, Shape: d.shape(measure, fineGrained, endpoint)}, nil
}

func (d *Definition) shape(measure schema.MeasureType, fineGrained bool, endpoint Endpoint) QueryShape {
	if d.Shape != nil {
		if shape := d.Shape(measure, fineGrained); shape != "" {
			return shape
		}
	}
	if endpoint.RangeQuery {
		return ShapeRange
	}
	return ShapePerDay
}

func joinMeasures(measures []schema.MeasureType) string {
	names := make([]string, len(measures))
	for i, m := range measures {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
