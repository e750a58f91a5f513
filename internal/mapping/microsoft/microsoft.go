// Package microsoft holds the Microsoft Health mapping tables.
package microsoft

import (
	"strings"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
)

const (
	Provider   = "microsoft"
	SourceName = "Microsoft Health API"
)

// activityLists are the per-type lists of the activities endpoint that hold
// exercise sessions. Sleep is mapped separately.
var activityLists = []string{
	"bikeActivities",
	"hikeActivities",
	"freePlayActivities",
	"golfActivities",
	"guidedWorkoutActivities",
	"runActivities",
}

func spec(measure schema.MeasureType, list string, fn mapping.EntryFunc) mapping.Spec {
	return mapping.Spec{
		Provider:      Provider,
		SourceName:    SourceName,
		Measure:       measure,
		ListPath:      list,
		OptionalList:  true,
		Entry:         fn,
		ZeroAsAbsence: true,
	}
}

// Specs returns the daily summary and activity tables keyed by measure.
func Specs() map[schema.MeasureType]mapping.Spec {
	activity := spec(schema.MeasurePhysicalActivity, "", physicalActivity)
	activity.List = sessionEntries
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasureStepCount:        spec(schema.MeasureStepCount, "summaries", steps),
		schema.MeasureHeartRate:        spec(schema.MeasureHeartRate, "summaries", heartRate),
		schema.MeasureCaloriesBurned:   spec(schema.MeasureCaloriesBurned, "summaries", caloriesBurned),
		schema.MeasurePhysicalActivity: activity,
		schema.MeasureSleepDuration:    spec(schema.MeasureSleepDuration, "sleepActivities", sleepDuration),
	}
}

func sessionEntries(root jsonnode.Node) ([]jsonnode.Node, error) {
	var out []jsonnode.Node
	for _, list := range activityLists {
		sessions, _ := root.Get(list).Array()
		out = append(out, sessions...)
	}
	return out, nil
}

// parseTime accepts RFC 3339 and, for summaries that omit the offset, UTC local time.
func parseTime(raw string) (time.Time, error) {
	if t, err := mapping.ParseOffsetDateTime(raw); err == nil {
		return t, nil
	}
	return mapping.ParseLocalDateTime(raw, time.UTC)
}

// summary is the whole day a daily summary starts.
func summary(node jsonnode.Node) (time.Time, schema.TimeFrame, error) {
	raw, err := node.RequiredString("startTime")
	if err != nil {
		return time.Time{}, schema.TimeFrame{}, err
	}
	start, err := parseTime(raw)
	if err != nil {
		return time.Time{}, schema.TimeFrame{}, err
	}
	return start, mapping.WholeDayOf(start), nil
}

func steps(e mapping.Entry) (mapping.Record, bool, error) {
	count, err := e.Node.RequiredInt64("stepsTaken")
	if err != nil {
		return mapping.Record{}, false, err
	}
	start, day, err := summary(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.StepCount{Common: mapping.Framed(day), Steps: count},
		ExternalID: mapping.SyntheticExternalID("microsoft-steps", start),
	}, true, nil
}

// heartRate maps the daily average; summaries without one are skipped.
func heartRate(e mapping.Entry) (mapping.Record, bool, error) {
	average := e.Node.OptionalDecimal("heartRateSummary.averageHeartRate")
	if average == nil {
		return mapping.Record{}, false, nil
	}
	start, day, err := summary(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.HeartRate{Common: mapping.Framed(day), Rate: schema.NewUnitValue(*average, schema.BeatsPerMinute)},
		ExternalID: mapping.SyntheticExternalID("microsoft-heart-rate", start),
	}, true, nil
}

func caloriesBurned(e mapping.Entry) (mapping.Record, bool, error) {
	kcal := e.Node.OptionalDecimal("caloriesBurnedSummary.totalCalories")
	if kcal == nil {
		return mapping.Record{}, false, nil
	}
	start, day, err := summary(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.CaloriesBurned{Common: mapping.Framed(day), Energy: schema.NewUnitValue(*kcal, schema.Kilocalorie)},
		ExternalID: mapping.SyntheticExternalID("microsoft-calories", start),
	}, true, nil
}

// physicalActivity skips sessions of zero duration. Distances are reported in centimeters.
func physicalActivity(e mapping.Entry) (mapping.Record, bool, error) {
	name, err := e.Node.RequiredString("activityType")
	if err != nil {
		return mapping.Record{}, false, err
	}
	raw, err := e.Node.RequiredString("duration")
	if err != nil {
		return mapping.Record{}, false, err
	}
	duration, err := mapping.ParseISODuration(raw)
	if err != nil {
		return mapping.Record{}, false, err
	}
	if duration <= 0 {
		return mapping.Record{}, false, nil
	}
	activity := schema.PhysicalActivity{ActivityName: strings.TrimSpace(name)}
	if rawStart := e.Node.OptionalString("startTime"); rawStart != nil {
		start, err := mapping.ParseOffsetDateTime(*rawStart)
		if err != nil {
			return mapping.Record{}, false, err
		}
		activity.Common = mapping.Framed(mapping.StartAndDuration(start, mapping.Seconds(duration)))
	}
	if cm := e.Node.OptionalDecimal("distanceSummary.totalDistance"); cm != nil {
		v := schema.NewUnitValue(*cm, schema.Centimeter)
		activity.Distance = &v
	}
	if kcal := e.Node.OptionalDecimal("caloriesBurnedSummary.totalCalories"); kcal != nil {
		v := schema.NewUnitValue(*kcal, schema.Kilocalorie)
		activity.CaloriesBurned = &v
	}
	return mapping.Record{Body: activity, ExternalID: mapping.IDString(e.Node, "id")}, true, nil
}

func sleepDuration(e mapping.Entry) (mapping.Record, bool, error) {
	rawStart, err := e.Node.RequiredString("startTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	rawEnd, err := e.Node.RequiredString("endTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	start, err := mapping.ParseOffsetDateTime(rawStart)
	if err != nil {
		return mapping.Record{}, false, err
	}
	end, err := mapping.ParseOffsetDateTime(rawEnd)
	if err != nil {
		return mapping.Record{}, false, err
	}
	raw, err := e.Node.RequiredString("sleepDuration")
	if err != nil {
		return mapping.Record{}, false, err
	}
	asleep, err := mapping.ParseISODuration(raw)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.SleepDuration{Common: mapping.Framed(mapping.StartAndEnd(start, end)), Duration: mapping.Seconds(asleep)},
		ExternalID: mapping.IDString(e.Node, "id"),
	}, true, nil
}
