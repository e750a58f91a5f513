package provider

import (
	"sort"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/pagination"
)

// Metadata describes a registered provider for listings.
type Metadata struct {
	Key          string            `json:"key"`
	DisplayName  string            `json:"displayName,omitempty"`
	SourceName   string            `json:"sourceName"`
	Measures     []MeasureMetadata `json:"measures"`
	NeedsProfile bool              `json:"needsProfile,omitempty"`
}

// MeasureMetadata details how one measure is retrieved.
type MeasureMetadata struct {
	Measure     schema.MeasureType  `json:"measure"`
	Schema      string              `json:"schema"`
	Pagination  pagination.Strategy `json:"pagination"`
	Shape       QueryShape          `json:"shape"`
	FineGrained bool                `json:"fineGrained,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	clone := m
	clone.Measures = append([]MeasureMetadata(nil), m.Measures...)
	return clone
}

// Describe summarizes a definition.
func Describe(def *Definition) Metadata {
	meta := Metadata{Key: def.Key, DisplayName: def.DisplayName, SourceName: def.SourceName, NeedsProfile: def.Profile != nil}
	for _, measure := range def.Measures() {
		endpoint := def.Endpoints[measure]
		id, _ := measure.Schema()
		_, fine := def.FineEndpoints[measure]
		meta.Measures = append(meta.Measures, MeasureMetadata{
			Measure:     measure,
			Schema:      id.String(),
			Pagination:  endpoint.Pagination.EffectiveStrategy(),
			Shape:       def.shape(measure, false, endpoint),
			FineGrained: fine,
		})
	}
	return meta
}

// Describe summarizes every registered provider sorted by key.
func (r *Registry) Describe() []Metadata {
	keys := r.Keys()
	out := make([]Metadata, 0, len(keys))
	for _, key := range keys {
		def, err := r.Lookup(key)
		if err != nil {
			continue
		}
		out = append(out, Describe(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
