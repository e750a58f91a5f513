// Package jawbone holds the Jawbone UP mapping tables. Every item carries its
// own zone history, so records are never interpreted in a request-level zone.
package jawbone

import (
	"strings"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
	"github.com/shopspring/decimal"
)

const (
	Provider   = "jawbone"
	SourceName = "Jawbone UP API"

	itemsPath = "data.items"
)

const otherSubType = 29

var subTypeNames = map[int64]string{
	1: "walk", 2: "run", 3: "lift weights", 4: "cross train", 5: "nike training",
	6: "yoga", 7: "pilates", 8: "body weight exercise", 9: "crossfit", 10: "p90x",
	11: "zumba", 12: "trx", 13: "swim", 14: "bike", 15: "elliptical",
	16: "bar method", 17: "kinect exercises", 18: "tennis", 19: "basketball", 20: "golf",
	21: "soccer", 22: "ski snowboard", 23: "dance", 24: "hike", 25: "cross country skiing",
	26: "stationary bike", 27: "cardio", 28: "game", 29: "other",
}

func spec(measure schema.MeasureType, fn mapping.EntryFunc) mapping.Spec {
	return mapping.Spec{
		Provider:   Provider,
		SourceName: SourceName,
		Measure:    measure,
		ListPath:   itemsPath,
		Entry:      fn,
	}
}

// Specs returns the Jawbone tables keyed by measure.
func Specs() map[schema.MeasureType]mapping.Spec {
	stepSpec := spec(schema.MeasureStepCount, steps)
	stepSpec.ZeroAsAbsence = true
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasureStepCount:        stepSpec,
		schema.MeasureHeartRate:        spec(schema.MeasureHeartRate, heartRate),
		schema.MeasureSleepDuration:    spec(schema.MeasureSleepDuration, sleepDuration),
		schema.MeasurePhysicalActivity: spec(schema.MeasurePhysicalActivity, physicalActivity),
		schema.MeasureBodyWeight:       spec(schema.MeasureBodyWeight, bodyWeight),
		schema.MeasureBodyMassIndex:    spec(schema.MeasureBodyMassIndex, bodyMassIndex),
	}
}

// zoneAt picks the zone in force at epoch: the latest details.tzs entry
// starting at or before it, then details.tz, then UTC.
func zoneAt(item jsonnode.Node, epoch int64) (*time.Location, error) {
	if history, ok := item.Get("details.tzs").Array(); ok && len(history) > 0 {
		var (
			chosen jsonnode.Node
			best   int64
			found  bool
		)
		for _, pair := range history {
			start, ok := pair.Index(0).Int64()
			if !ok || start > epoch {
				continue
			}
			if !found || start >= best {
				chosen, best, found = pair.Index(1), start, true
			}
		}
		if found {
			return mapping.ZoneFromNode(chosen)
		}
	}
	if tz := item.Get("details.tz"); !tz.IsNull() {
		return mapping.ZoneFromNode(tz)
	}
	return time.UTC, nil
}

func localTime(item jsonnode.Node, path string) (time.Time, error) {
	epoch, err := item.RequiredInt64(path)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := zoneAt(item, epoch)
	if err != nil {
		return time.Time{}, err
	}
	return mapping.EpochSeconds(epoch, loc), nil
}

// span is the created..completed frame, or the created instant alone.
func span(item jsonnode.Node) (schema.TimeFrame, error) {
	start, err := localTime(item, "time_created")
	if err != nil {
		return schema.TimeFrame{}, err
	}
	if !item.Has("time_completed") {
		return schema.AtInstant(start), nil
	}
	end, err := localTime(item, "time_completed")
	if err != nil {
		return schema.TimeFrame{}, err
	}
	return mapping.StartAndEnd(start, end), nil
}

func record(item jsonnode.Node, body schema.Measure, modality schema.Modality) mapping.Record {
	rec := mapping.Record{Body: body, ExternalID: mapping.IDString(item, "xid"), Modality: modality}
	if updated := item.OptionalInt64("time_updated"); updated != nil {
		rec.SourceUpdated = mapping.Time(mapping.EpochSeconds(*updated, time.UTC))
	}
	return rec
}

func steps(e mapping.Entry) (mapping.Record, bool, error) {
	count := e.Node.OptionalInt64("details.steps")
	if count == nil || *count < 0 {
		return mapping.Record{}, false, nil
	}
	frame, err := span(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.StepCount{Common: mapping.Framed(frame), Steps: *count}
	return record(e.Node, body, schema.ModalitySensed), true, nil
}

func heartRate(e mapping.Entry) (mapping.Record, bool, error) {
	rate, err := e.Node.RequiredDecimal("resting_heartrate")
	if err != nil {
		return mapping.Record{}, false, err
	}
	at, err := localTime(e.Node, "time_created")
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.HeartRate{
		Common:                 mapping.Framed(schema.AtInstant(at)),
		Rate:                   schema.NewUnitValue(rate, schema.BeatsPerMinute),
		RelationshipToActivity: schema.AtRest,
	}
	return record(e.Node, body, schema.ModalitySensed), true, nil
}

func sleepDuration(e mapping.Entry) (mapping.Record, bool, error) {
	total, err := e.Node.RequiredInt64("details.duration")
	if err != nil {
		return mapping.Record{}, false, err
	}
	awake, _ := e.Node.Get("details.awake").Int64()
	light, _ := e.Node.Get("details.light").Int64()
	frame, err := span(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.SleepDuration{Common: mapping.Framed(frame), Duration: schema.IntValue(total-awake, schema.Second)}
	modality := schema.ModalityUnset
	if awake > 0 || light > 0 {
		modality = schema.ModalitySensed
	}
	rec := record(e.Node, body, modality)
	if wakeups := e.Node.OptionalInt64("details.awakenings"); wakeups != nil {
		rec.Properties = append(rec.Properties, schema.Property{Key: "wakeup_count", Value: *wakeups})
	}
	return rec, true, nil
}

func activityName(item jsonnode.Node) string {
	if title := item.OptionalString("title"); title != nil && strings.TrimSpace(*title) != "" {
		return *title
	}
	subType := item.OptionalInt64("sub_type")
	if subType == nil || *subType == otherSubType {
		return "workout"
	}
	if name, ok := subTypeNames[*subType]; ok {
		return name
	}
	return "workout"
}

func intensity(level int64) schema.Intensity {
	switch {
	case level == 1:
		return schema.IntensityLight
	case level == 2 || level == 3:
		return schema.IntensityModerate
	case level >= 4:
		return schema.IntensityVigorous
	}
	return ""
}

func physicalActivity(e mapping.Entry) (mapping.Record, bool, error) {
	activity := schema.PhysicalActivity{ActivityName: activityName(e.Node)}

	completed := e.Node.OptionalInt64("time_completed")
	seconds := e.Node.OptionalInt64("details.time")
	if completed != nil && seconds != nil && e.Node.Has("details.tz") {
		loc, err := mapping.ZoneFromNode(e.Node.Get("details.tz"))
		if err != nil {
			return mapping.Record{}, false, err
		}
		end := mapping.EpochSeconds(*completed, loc)
		activity.Common = mapping.Framed(mapping.EndAndDuration(end, schema.IntValue(*seconds, schema.Second)))
	} else {
		frame, err := span(e.Node)
		if err != nil {
			return mapping.Record{}, false, err
		}
		activity.Common = mapping.Framed(frame)
	}

	if meters := e.Node.OptionalDecimal("details.meters"); meters != nil {
		v := schema.NewUnitValue(*meters, schema.Meter)
		activity.Distance = &v
	}
	if kcal := e.Node.OptionalDecimal("details.calories"); kcal != nil {
		active := *kcal
		if bmr := e.Node.OptionalDecimal("details.bmr_calories"); bmr != nil {
			active = active.Sub(*bmr)
		}
		if active.GreaterThan(decimal.Zero) {
			v := schema.NewUnitValue(active, schema.Kilocalorie)
			activity.CaloriesBurned = &v
		}
	}
	if level := e.Node.OptionalInt64("details.intensity"); level != nil {
		activity.ReportedIntensity = intensity(*level)
	}
	modality := schema.ModalityUnset
	if n := e.Node.OptionalInt64("details.steps"); n != nil && *n > 0 {
		modality = schema.ModalitySensed
	}
	return record(e.Node, activity, modality), true, nil
}

func bodyEvent(e mapping.Entry, field string, build func(common schema.Common, value decimal.Decimal) schema.Measure) (mapping.Record, bool, error) {
	value := e.Node.OptionalDecimal(field)
	if value == nil {
		return mapping.Record{}, false, nil
	}
	at, err := localTime(e.Node, "time_created")
	if err != nil {
		return mapping.Record{}, false, err
	}
	common := mapping.Framed(schema.AtInstant(at))
	if note := e.Node.OptionalString("note"); note != nil {
		common.UserNotes = *note
	}
	return record(e.Node, build(common, *value), schema.ModalityUnset), true, nil
}

func bodyWeight(e mapping.Entry) (mapping.Record, bool, error) {
	return bodyEvent(e, "weight", func(common schema.Common, v decimal.Decimal) schema.Measure {
		return schema.BodyWeight{Common: common, Weight: schema.NewUnitValue(v, schema.Kilogram)}
	})
}

func bodyMassIndex(e mapping.Entry) (mapping.Record, bool, error) {
	return bodyEvent(e, "bmi", func(common schema.Common, v decimal.Decimal) schema.Measure {
		return schema.BodyMassIndex{Common: common, Index: schema.NewUnitValue(v, schema.KilogramsPerSquareMeter)}
	})
}
