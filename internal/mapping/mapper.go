// Package mapping turns vendor JSON pages into canonical data points using per-provider tables.
package mapping

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
)

// Entry is everything an entry function may read. Nothing else is shared between calls.
type Entry struct {
	Node    jsonnode.Node
	Root    jsonnode.Node
	Profile jsonnode.Node
	// Zone is the profile-level zone for two-node providers, nil otherwise.
	Zone  *time.Location
	Index int
}

// Record is the provider-neutral result of mapping one entry.
type Record struct {
	Body          schema.Measure
	ExternalID    string
	Modality      schema.Modality
	Properties    []schema.Property
	SourceCreated *time.Time
	SourceUpdated *time.Time
}

// EntryFunc maps one list element. Returning ok=false skips the entry without error.
type EntryFunc func(Entry) (rec Record, ok bool, err error)

// ListFunc extracts the entries of a page when a plain list path is not enough.
type ListFunc func(root jsonnode.Node) ([]jsonnode.Node, error)

// Spec is the immutable table row describing one provider and measure.
type Spec struct {
	Provider   string
	SourceName string
	Measure    schema.MeasureType
	// Arity is 1, or 2 when a profile node precedes the payload.
	Arity int
	// ZonePath locates the UTC offset in milliseconds inside the profile node.
	ZonePath     string
	ListPath     string
	OptionalList bool
	List         ListFunc
	Entry        EntryFunc
	// ZeroAsAbsence drops points whose primary reading is zero; see ZeroReading.
	ZeroAsAbsence bool
}

// Batch is the outcome of mapping one page.
type Batch struct {
	Points      []schema.DataPoint
	EntryErrors []error
	Skipped     int
}

// Mapper applies a Spec. It holds no per-call state and is safe for concurrent use.
type Mapper struct {
	spec Spec
	now  func() time.Time
}

// NewMapper validates the table row.
func NewMapper(spec Spec) (Mapper, error) {
	if strings.TrimSpace(spec.Provider) == "" {
		return Mapper{}, errs.Configuration("", "mapper provider required")
	}
	if strings.TrimSpace(spec.SourceName) == "" {
		return Mapper{}, errs.Configuration(spec.Provider, "mapper source name required", errs.WithMeasure(string(spec.Measure)))
	}
	if spec.Entry == nil {
		return Mapper{}, errs.Configuration(spec.Provider, "mapper entry function required", errs.WithMeasure(string(spec.Measure)))
	}
	if spec.Arity == 0 {
		spec.Arity = 1
	}
	if spec.Arity != 1 && spec.Arity != 2 {
		return Mapper{}, errs.Configuration(spec.Provider, "mapper arity must be 1 or 2", errs.WithMeasure(string(spec.Measure)))
	}
	if spec.List == nil && strings.TrimSpace(spec.ListPath) == "" {
		return Mapper{}, errs.Configuration(spec.Provider, "mapper list path required", errs.WithMeasure(string(spec.Measure)))
	}
	return Mapper{spec: spec, now: time.Now}, nil
}

// MustMapper is NewMapper for package-level tables.
func MustMapper(spec Spec) Mapper {
	m, err := NewMapper(spec)
	if err != nil {
		panic(err)
	}
	return m
}

// WithClock returns a copy stamping creation times from now.
func (m Mapper) WithClock(now func() time.Time) Mapper {
	if now != nil {
		m.now = now
	}
	return m
}

// Spec returns the table row.
func (m Mapper) Spec() Spec { return m.spec }

// Arity is the number of response bodies Map expects.
func (m Mapper) Arity() int { return m.spec.Arity }

// Map converts response bodies into data points.
func (m Mapper) Map(bodies []jsonnode.Node) (Batch, error) {
	return m.MapForUser("", bodies)
}

// MapForUser converts response bodies into data points owned by userID.
// Entry-scoped failures are collected in the batch; page-scoped failures abort the page.
func (m Mapper) MapForUser(userID string, bodies []jsonnode.Node) (Batch, error) {
	measure := string(m.spec.Measure)
	if len(bodies) != m.spec.Arity {
		return Batch{}, errs.PageMapping(m.spec.Provider, "expected "+strconv.Itoa(m.spec.Arity)+
			" response bodies, got "+strconv.Itoa(len(bodies)), errs.WithMeasure(measure), errs.WithField("reason", "arity"))
	}
	root := bodies[len(bodies)-1]
	entryCtx := Entry{Root: root}
	if m.spec.Arity == 2 {
		entryCtx.Profile = bodies[0]
		if m.spec.ZonePath != "" {
			zone, err := ZoneFromProfile(bodies[0], m.spec.ZonePath)
			if err != nil {
				return Batch{}, errs.PageMapping(m.spec.Provider, "profile offset unavailable",
					errs.WithMeasure(measure), errs.WithCause(err))
			}
			entryCtx.Zone = zone
		}
	}

	entries, err := m.entries(root)
	if err != nil {
		return Batch{}, err
	}

	var batch Batch
	for i, node := range entries {
		current := entryCtx
		current.Node = node
		current.Index = i
		rec, ok, err := m.spec.Entry(current)
		if err != nil {
			wrapped := m.entryError(i, err)
			if errs.IsPageScoped(wrapped) {
				return Batch{}, wrapped
			}
			batch.EntryErrors = append(batch.EntryErrors, wrapped)
			continue
		}
		if !ok || (m.spec.ZeroAsAbsence && ZeroReading(rec.Body)) {
			batch.Skipped++
			continue
		}
		point, err := m.newDataPoint(rec, userID)
		if err != nil {
			batch.EntryErrors = append(batch.EntryErrors, m.entryError(i, err))
			continue
		}
		batch.Points = append(batch.Points, point)
	}
	return batch, nil
}

// ZeroReading reports whether the primary count, rate or amount of a measure is zero.
// Measures without such a reading never count as zero.
func ZeroReading(body schema.Measure) bool {
	switch b := body.(type) {
	case schema.StepCount:
		return b.Steps == 0
	case schema.HeartRate:
		return b.Rate.Value.IsZero()
	case schema.SleepDuration:
		return b.Duration.Value.IsZero()
	case schema.BodyWeight:
		return b.Weight.Value.IsZero()
	case schema.BodyMassIndex:
		return b.Index.Value.IsZero()
	case schema.BodyHeight:
		return b.Height.Value.IsZero()
	case schema.BloodGlucose:
		return b.Glucose.Value.IsZero()
	case schema.OxygenSaturation:
		return b.Saturation.Value.IsZero()
	case schema.CaloriesBurned:
		return b.Energy.Value.IsZero()
	default:
		return false
	}
}

func (m Mapper) entries(root jsonnode.Node) ([]jsonnode.Node, error) {
	measure := string(m.spec.Measure)
	if m.spec.List != nil {
		nodes, err := m.spec.List(root)
		if err != nil {
			return nil, m.pageError(err)
		}
		return nodes, nil
	}
	list := root.Get(m.spec.ListPath)
	if list.IsNull() {
		if m.spec.OptionalList {
			return nil, nil
		}
		return nil, errs.PageMapping(m.spec.Provider, "list node missing", errs.WithMeasure(measure),
			errs.WithField("path", m.spec.ListPath))
	}
	nodes, ok := list.Array()
	if !ok {
		return nil, errs.PageMapping(m.spec.Provider, "list node is not an array", errs.WithMeasure(measure),
			errs.WithField("path", m.spec.ListPath))
	}
	return nodes, nil
}

func (m Mapper) entryError(index int, err error) error {
	location := errs.WithLocation("entry=" + strconv.Itoa(index))
	if e, ok := errs.As(err); ok {
		return e.With(m.spec.Provider, string(m.spec.Measure), location)
	}
	var missing *jsonnode.MissingFieldError
	if errors.As(err, &missing) {
		return errs.Mapping(m.spec.Provider, missing.Error(), errs.WithMeasure(string(m.spec.Measure)),
			errs.WithField("path", missing.Path), location, errs.WithCause(err))
	}
	return errs.Mapping(m.spec.Provider, err.Error(), errs.WithMeasure(string(m.spec.Measure)), location, errs.WithCause(err))
}

func (m Mapper) pageError(err error) error {
	if e, ok := errs.As(err); ok {
		return e.With(m.spec.Provider, string(m.spec.Measure), errs.WithScope(errs.ScopePage))
	}
	return errs.PageMapping(m.spec.Provider, err.Error(), errs.WithMeasure(string(m.spec.Measure)), errs.WithCause(err))
}

func (m Mapper) newDataPoint(rec Record, userID string) (schema.DataPoint, error) {
	props := schema.NewProperties()
	if rec.ExternalID != "" {
		props.Set(schema.ExternalIDKey, rec.ExternalID)
	}
	for _, prop := range rec.Properties {
		props.Set(prop.Key, prop.Value)
	}
	if rec.SourceUpdated != nil {
		props.Set(schema.SourceUpdatedKey, rec.SourceUpdated.UTC().Format(time.RFC3339))
	}
	provenance := schema.Provenance{
		SourceName:         m.spec.SourceName,
		Modality:           rec.Modality,
		SourceCreationTime: rec.SourceCreated,
	}
	if props.Len() > 0 {
		provenance.Additional = props
	}
	return schema.NewDataPoint(rec.Body, provenance, userID, m.now())
}
