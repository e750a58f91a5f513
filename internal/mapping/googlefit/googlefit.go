// Package googlefit holds the Google Fit dataset mapping tables.
package googlefit

import (
	"strings"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
	"github.com/shopspring/decimal"
)

const (
	Provider   = "googlefit"
	SourceName = "Google Fit API"

	// SourceOriginIDKey carries the originating data source of a point.
	SourceOriginIDKey = "source_origin_id"
)

func spec(measure schema.MeasureType, fn mapping.EntryFunc) mapping.Spec {
	return mapping.Spec{
		Provider:     Provider,
		SourceName:   SourceName,
		Measure:      measure,
		ListPath:     "point",
		OptionalList: true,
		Entry:        fn,
	}
}

// Specs returns the Google Fit tables keyed by measure.
func Specs() map[schema.MeasureType]mapping.Spec {
	zeroSkipped := func(s mapping.Spec) mapping.Spec {
		s.ZeroAsAbsence = true
		return s
	}
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasureStepCount:        zeroSkipped(spec(schema.MeasureStepCount, stepCount)),
		schema.MeasureHeartRate:        zeroSkipped(spec(schema.MeasureHeartRate, heartRate)),
		schema.MeasureBodyWeight:       zeroSkipped(spec(schema.MeasureBodyWeight, bodyWeight)),
		schema.MeasureBodyHeight:       zeroSkipped(spec(schema.MeasureBodyHeight, bodyHeight)),
		schema.MeasurePhysicalActivity: spec(schema.MeasurePhysicalActivity, physicalActivity),
		schema.MeasureCaloriesBurned:   spec(schema.MeasureCaloriesBurned, caloriesBurned),
		schema.MeasureSpeed:            spec(schema.MeasureSpeed, speed),
		schema.MeasureGeoposition:      spec(schema.MeasureGeoposition, geoposition),
	}
}

// point is the shared header of a dataset point.
type point struct {
	frame  schema.TimeFrame
	start  time.Time
	origin string
}

func readPoint(node jsonnode.Node) (point, error) {
	rawStart, err := node.RequiredString("startTimeNanos")
	if err != nil {
		return point{}, err
	}
	start, err := mapping.EpochNanos(rawStart)
	if err != nil {
		return point{}, err
	}
	p := point{frame: schema.AtInstant(start), start: start, origin: mapping.IDString(node, "originDataSourceId")}
	if rawEnd := node.OptionalString("endTimeNanos"); rawEnd != nil {
		end, err := mapping.EpochNanos(*rawEnd)
		if err != nil {
			return point{}, err
		}
		p.frame = mapping.StartAndEnd(start, end)
	}
	return p, nil
}

func (p point) record(measure schema.MeasureType, body schema.Measure) mapping.Record {
	qualifier := p.origin
	if qualifier == "" {
		qualifier = Provider + "-" + string(measure)
	}
	rec := mapping.Record{Body: body, ExternalID: mapping.SyntheticExternalID(qualifier, p.start)}
	if p.origin != "" {
		rec.Properties = []schema.Property{{Key: SourceOriginIDKey, Value: p.origin}}
		if strings.HasSuffix(p.origin, "user_input") {
			rec.Modality = schema.ModalitySelfReported
		}
	}
	return rec
}

// numeric reads value[0] as either intVal or fpVal.
func numeric(node jsonnode.Node, index int) (decimal.Decimal, bool) {
	value := node.Get("value").Index(index)
	if v, ok := value.Get("intVal").Decimal(); ok {
		return v, true
	}
	return value.Get("fpVal").Decimal()
}

// reading maps single-value points.
func reading(measure schema.MeasureType, build func(c schema.Common, v decimal.Decimal) schema.Measure) mapping.EntryFunc {
	return func(e mapping.Entry) (mapping.Record, bool, error) {
		v, ok := numeric(e.Node, 0)
		if !ok {
			return mapping.Record{}, false, &jsonnode.MissingFieldError{Path: "value.0", Reason: "no numeric value"}
		}
		p, err := readPoint(e.Node)
		if err != nil {
			return mapping.Record{}, false, err
		}
		return p.record(measure, build(mapping.Framed(p.frame), v)), true, nil
	}
}

var (
	stepCount = reading(schema.MeasureStepCount, func(c schema.Common, v decimal.Decimal) schema.Measure {
		return schema.StepCount{Common: c, Steps: v.IntPart()}
	})
	heartRate = reading(schema.MeasureHeartRate, func(c schema.Common, v decimal.Decimal) schema.Measure {
		return schema.HeartRate{Common: c, Rate: schema.NewUnitValue(v, schema.BeatsPerMinute)}
	})
	bodyWeight = reading(schema.MeasureBodyWeight, func(c schema.Common, v decimal.Decimal) schema.Measure {
		return schema.BodyWeight{Common: c, Weight: schema.NewUnitValue(v, schema.Kilogram)}
	})
	bodyHeight = reading(schema.MeasureBodyHeight, func(c schema.Common, v decimal.Decimal) schema.Measure {
		return schema.BodyHeight{Common: c, Height: schema.NewUnitValue(v, schema.Meter)}
	})
	speed = reading(schema.MeasureSpeed, func(c schema.Common, v decimal.Decimal) schema.Measure {
		return schema.Speed{Common: c, Speed: schema.NewUnitValue(v, schema.MetersPerSecond)}
	})
	calories = reading(schema.MeasureCaloriesBurned, func(c schema.Common, v decimal.Decimal) schema.Measure {
		return schema.CaloriesBurned{Common: c, Energy: schema.NewUnitValue(v, schema.Kilocalorie)}
	})
)

// caloriesBurned drops basal metabolic rate estimates.
func caloriesBurned(e mapping.Entry) (mapping.Record, bool, error) {
	if strings.Contains(mapping.IDString(e.Node, "originDataSourceId"), "bmr") {
		return mapping.Record{}, false, nil
	}
	return calories(e)
}

func physicalActivity(e mapping.Entry) (mapping.Record, bool, error) {
	code, err := e.Node.RequiredInt64("value.0.intVal")
	if err != nil {
		return mapping.Record{}, false, err
	}
	if excludedActivities[code] {
		return mapping.Record{}, false, nil
	}
	name, ok := activityNames[code]
	if !ok {
		name = activityNames[activityUnknown]
	}
	p, err := readPoint(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return p.record(schema.MeasurePhysicalActivity, schema.PhysicalActivity{Common: mapping.Framed(p.frame), ActivityName: name}), true, nil
}

func geoposition(e mapping.Entry) (mapping.Record, bool, error) {
	lat, ok := numeric(e.Node, 0)
	if !ok {
		return mapping.Record{}, false, &jsonnode.MissingFieldError{Path: "value.0.fpVal", Reason: "latitude missing"}
	}
	lon, ok := numeric(e.Node, 1)
	if !ok {
		return mapping.Record{}, false, &jsonnode.MissingFieldError{Path: "value.1.fpVal", Reason: "longitude missing"}
	}
	p, err := readPoint(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.Geoposition{
		Common:    mapping.Framed(p.frame),
		Latitude:  schema.NewUnitValue(lat, schema.DegreeOfArc),
		Longitude: schema.NewUnitValue(lon, schema.DegreeOfArc),
	}
	if altitude, ok := numeric(e.Node, 3); ok {
		v := schema.NewUnitValue(altitude, schema.Meter)
		body.Elevation = &v
	}
	return p.record(schema.MeasureGeoposition, body), true, nil
}
