package schema

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ExternalIDKey is the provenance property holding the vendor (or synthesized) record id.
const ExternalIDKey = "external_id"

// SourceUpdatedKey is the provenance property holding the vendor's last-modified timestamp.
const SourceUpdatedKey = "source_updated_date_time"

// Property is a single ordered key/value pair.
type Property struct {
	Key   string
	Value any
}

// Properties is an insertion-ordered string keyed map.
type Properties struct {
	items []Property
}

// NewProperties builds an ordered map from pairs, later keys replacing earlier ones in place.
func NewProperties(pairs ...Property) *Properties {
	p := &Properties{}
	for _, pair := range pairs {
		p.Set(pair.Key, pair.Value)
	}
	return p
}

// Set inserts or replaces a key while keeping its original position.
func (p *Properties) Set(key string, value any) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	for i := range p.items {
		if p.items[i].Key == key {
			p.items[i].Value = value
			return
		}
	}
	p.items = append(p.items, Property{Key: key, Value: value})
}

// Get returns the value stored for key.
func (p *Properties) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	for _, item := range p.items {
		if item.Key == key {
			return item.Value, true
		}
	}
	return nil, false
}

// Len returns the number of keys.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

// Items returns a copy of the ordered pairs.
func (p *Properties) Items() []Property {
	if p == nil {
		return nil
	}
	out := make([]Property, len(p.items))
	copy(out, p.items)
	return out
}

// MarshalJSON writes keys in insertion order.
func (p *Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if p != nil {
		for i, item := range p.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(item.Key)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(item.Value)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", item.Key, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Provenance describes how and where a data point was acquired.
type Provenance struct {
	SourceName         string      `json:"source_name"`
	Modality           Modality    `json:"modality,omitempty"`
	SourceCreationTime *time.Time  `json:"source_creation_date_time,omitempty"`
	Additional         *Properties `json:"additional_properties,omitempty"`
}

// ExternalID returns the external_id property as a string.
func (p Provenance) ExternalID() (string, bool) {
	v, ok := p.Additional.Get(ExternalIDKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Header carries identity and provenance of a data point.
type Header struct {
	ID           string     `json:"id"`
	CreationTime time.Time  `json:"creation_date_time"`
	BodySchemaID SchemaID   `json:"schema_id"`
	Provenance   Provenance `json:"acquisition_provenance"`
	UserID       string     `json:"user_id,omitempty"`
}

// DataPoint is one normalized observation. Build it with NewDataPoint and treat it as immutable.
type DataPoint struct {
	Header Header  `json:"header"`
	Body   Measure `json:"body"`
}

var errNilBody = errors.New("data point body required")

// NewDataPoint builds a data point with a freshly generated id; the schema id always follows the body.
func NewDataPoint(body Measure, provenance Provenance, userID string, now time.Time) (DataPoint, error) {
	if body == nil {
		return DataPoint{}, errNilBody
	}
	if strings.TrimSpace(provenance.SourceName) == "" {
		return DataPoint{}, errors.New("provenance source name required")
	}
	return DataPoint{
		Header: Header{
			ID:           uuid.NewString(),
			CreationTime: now.UTC(),
			BodySchemaID: body.SchemaID(),
			Provenance:   provenance,
			UserID:       strings.TrimSpace(userID),
		},
		Body: body,
	}, nil
}

// ExternalID returns the provenance external_id of the data point.
func (d DataPoint) ExternalID() (string, bool) {
	return d.Header.Provenance.ExternalID()
}
