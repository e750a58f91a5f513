// Package errs provides the structured error envelope shared by the retrieval pipeline.
package errs

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the failure family of an error.
type Kind string

const (
	// KindConfiguration indicates required endpoint or pagination configuration is missing.
	KindConfiguration Kind = "configuration"
	// KindAuthorization indicates the access token is missing, expired, or rejected.
	KindAuthorization Kind = "authorization"
	// KindUpstreamHTTP indicates a non-2xx response or transport failure talking to a provider.
	KindUpstreamHTTP Kind = "upstream_http"
	// KindMapping indicates a malformed or contractually impossible provider payload.
	KindMapping Kind = "mapping"
	// KindCancellation indicates the caller aborted the request.
	KindCancellation Kind = "cancellation"
	// KindInvalid indicates invalid input provided by the caller.
	KindInvalid Kind = "invalid_request"
)

// Scope narrows how much work a mapping error invalidates.
type Scope string

const (
	// ScopeEntry discards only the offending list entry.
	ScopeEntry Scope = "entry"
	// ScopePage discards the whole response page.
	ScopePage Scope = "page"
)

// E captures structured error information produced across the pipeline.
type E struct {
	Provider    string
	Kind        Kind
	Measure     string
	Scope       Scope
	Location    string
	HTTP        int
	Message     string
	Metadata    map[string]string
	Remediation string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the provider and error kind.
func New(provider string, kind Kind, opts ...Option) *E {
	e := &E{
		Provider: strings.TrimSpace(provider),
		Kind:     kind,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRemediation attaches remediation guidance to the error.
func WithRemediation(remediation string) Option {
	trimmed := strings.TrimSpace(remediation)
	return func(e *E) {
		e.Remediation = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithMeasure records the measure type being retrieved or mapped.
func WithMeasure(measure string) Option {
	trimmed := strings.TrimSpace(measure)
	return func(e *E) {
		e.Measure = trimmed
	}
}

// WithScope records the mapping scope invalidated by the error.
func WithScope(scope Scope) Option {
	return func(e *E) {
		e.Scope = scope
	}
}

// WithLocation records where in the logical request the failure happened, e.g. "day=2024-01-02 page=3".
func WithLocation(location string) Option {
	trimmed := strings.TrimSpace(location)
	return func(e *E) {
		if trimmed == "" {
			return
		}
		if e.Location == "" {
			e.Location = trimmed
			return
		}
		e.Location = e.Location + " " + trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithMetadata merges the provided metadata into the error envelope.
func WithMetadata(meta map[string]string) Option {
	return func(e *E) {
		if len(meta) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			e.Metadata[key] = strings.TrimSpace(v)
		}
	}
}

// WithField appends a single metadata key/value pair.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, 1)
		}
		e.Metadata[trimmedKey] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	provider := strings.TrimSpace(e.Provider)
	if provider == "" {
		provider = "unknown"
	}
	parts = append(parts, "provider="+provider)

	kind := strings.TrimSpace(string(e.Kind))
	if kind == "" {
		kind = "unknown"
	}
	parts = append(parts, "kind="+kind)

	if e.Measure != "" {
		parts = append(parts, "measure="+e.Measure)
	}
	if e.Scope != "" {
		parts = append(parts, "scope="+string(e.Scope))
	}
	if e.Location != "" {
		parts = append(parts, "at="+strconv.Quote(e.Location))
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.Remediation != "" {
		parts = append(parts, "remediation="+strconv.Quote(e.Remediation))
	}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Metadata[k]))
		}
		parts = append(parts, "meta="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// With returns a copy of the error with additional options applied. Options that
// already hold a value (provider, measure) are only filled when empty.
func (e *E) With(provider, measure string, opts ...Option) *E {
	if e == nil {
		return nil
	}
	out := *e
	if len(e.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	if out.Provider == "" {
		out.Provider = strings.TrimSpace(provider)
	}
	if out.Measure == "" {
		out.Measure = strings.TrimSpace(measure)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return &out
}

// As extracts the envelope from an error chain.
func As(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first envelope in the chain, or an empty kind.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries an envelope of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsPageScoped reports whether a mapping error invalidates its whole page.
func IsPageScoped(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindMapping && e.Scope == ScopePage
}

// FromContext converts context termination into a cancellation envelope.
// It returns nil when err is not a context error.
func FromContext(provider string, err error) *E {
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	msg := "request cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request deadline exceeded"
	}
	return New(provider, KindCancellation, WithMessage(msg), WithCause(err))
}

// Configuration builds a configuration error.
func Configuration(provider, message string, opts ...Option) *E {
	return New(provider, KindConfiguration, append([]Option{WithMessage(message)}, opts...)...)
}

// Mapping builds an entry-scoped mapping error.
func Mapping(provider, message string, opts ...Option) *E {
	return New(provider, KindMapping, append([]Option{WithMessage(message), WithScope(ScopeEntry)}, opts...)...)
}

// PageMapping builds a page-scoped mapping error.
func PageMapping(provider, message string, opts ...Option) *E {
	return New(provider, KindMapping, append([]Option{WithMessage(message), WithScope(ScopePage)}, opts...)...)
}
