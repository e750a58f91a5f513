// Package fitbit holds the Fitbit mapping tables. Every Fitbit page is mapped
// together with the user profile, which carries the UTC offset Fitbit
// timestamps are local to.
package fitbit

import (
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
)

const (
	Provider   = "fitbit"
	SourceName = "Fitbit Resource API"

	// ProfileOffsetPath locates the user's UTC offset in the profile response.
	ProfileOffsetPath = "user.offsetFromUTCMillis"
)

var awakeLevels = map[string]bool{"wake": true, "awake": true, "restless": true}

func spec(measure schema.MeasureType, list string, fn mapping.EntryFunc) mapping.Spec {
	return mapping.Spec{
		Provider:   Provider,
		SourceName: SourceName,
		Measure:    measure,
		Arity:      2,
		ZonePath:   ProfileOffsetPath,
		ListPath:   list,
		Entry:      fn,
	}
}

// Specs returns the daily and event-level tables keyed by measure.
func Specs() map[schema.MeasureType]mapping.Spec {
	steps := spec(schema.MeasureStepCount, "activities-steps", dailySteps)
	steps.ZeroAsAbsence = true
	heart := spec(schema.MeasureHeartRate, "activities-heart", restingHeartRate)
	heart.ZeroAsAbsence = true
	heart.OptionalList = true
	sleep := spec(schema.MeasureSleepDuration, "sleep", sleepDuration)
	sleep.ZeroAsAbsence = true
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasureBodyWeight:       spec(schema.MeasureBodyWeight, "weight", bodyWeight),
		schema.MeasureBodyMassIndex:    spec(schema.MeasureBodyMassIndex, "weight", bodyMassIndex),
		schema.MeasureStepCount:        steps,
		schema.MeasureHeartRate:        heart,
		schema.MeasurePhysicalActivity: spec(schema.MeasurePhysicalActivity, "activities", physicalActivity),
		schema.MeasureSleepDuration:    sleep,
		schema.MeasureSleepEpisode:     spec(schema.MeasureSleepEpisode, "sleep", sleepEpisode),
	}
}

// IntradaySpecs returns the one-minute series tables used for fine-grained requests.
func IntradaySpecs() map[schema.MeasureType]mapping.Spec {
	steps := spec(schema.MeasureStepCount, "activities-steps-intraday.dataset", intradaySteps)
	steps.ZeroAsAbsence = true
	steps.OptionalList = true
	heart := spec(schema.MeasureHeartRate, "activities-heart-intraday.dataset", intradayHeartRate)
	heart.ZeroAsAbsence = true
	heart.OptionalList = true
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasureStepCount: steps,
		schema.MeasureHeartRate: heart,
	}
}

// loggedAt reads the date and optional clock of a log entry.
func loggedAt(e mapping.Entry) (schema.TimeFrame, error) {
	date, err := e.Node.RequiredString("date")
	if err != nil {
		return schema.TimeFrame{}, err
	}
	if clock := e.Node.OptionalString("time"); clock != nil {
		at, err := mapping.CombineDateTime(date, *clock, e.Zone)
		if err != nil {
			return schema.TimeFrame{}, err
		}
		return schema.AtInstant(at), nil
	}
	day, err := mapping.ParseDate(date, e.Zone)
	if err != nil {
		return schema.TimeFrame{}, err
	}
	return mapping.WholeDayOf(day), nil
}

func bodyWeight(e mapping.Entry) (mapping.Record, bool, error) {
	weight, err := e.Node.RequiredDecimal("weight")
	if err != nil {
		return mapping.Record{}, false, err
	}
	frame, err := loggedAt(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.BodyWeight{Common: mapping.Framed(frame), Weight: schema.NewUnitValue(weight, schema.Kilogram)},
		ExternalID: mapping.IDString(e.Node, "logId"),
	}, true, nil
}

func bodyMassIndex(e mapping.Entry) (mapping.Record, bool, error) {
	bmi, err := e.Node.RequiredDecimal("bmi")
	if err != nil {
		return mapping.Record{}, false, err
	}
	frame, err := loggedAt(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.BodyMassIndex{Common: mapping.Framed(frame), Index: schema.NewUnitValue(bmi, schema.KilogramsPerSquareMeter)},
		ExternalID: mapping.IDString(e.Node, "logId"),
	}, true, nil
}

func dailySteps(e mapping.Entry) (mapping.Record, bool, error) {
	steps, err := e.Node.RequiredInt64("value")
	if err != nil {
		return mapping.Record{}, false, err
	}
	date, err := e.Node.RequiredString("dateTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	day, err := mapping.ParseDate(date, e.Zone)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.StepCount{Common: mapping.Framed(mapping.WholeDayOf(day)), Steps: steps},
		ExternalID: mapping.SyntheticExternalID("fitbit-steps", day),
	}, true, nil
}

// seriesDate is the day an intraday dataset belongs to, taken from the summary list.
func seriesDate(e mapping.Entry, summaryPath string) (string, error) {
	return e.Root.RequiredString(summaryPath + ".0.dateTime")
}

func intradaySteps(e mapping.Entry) (mapping.Record, bool, error) {
	steps, err := e.Node.RequiredInt64("value")
	if err != nil {
		return mapping.Record{}, false, err
	}
	date, err := seriesDate(e, "activities-steps")
	if err != nil {
		return mapping.Record{}, false, err
	}
	clock, err := e.Node.RequiredString("time")
	if err != nil {
		return mapping.Record{}, false, err
	}
	start, err := mapping.CombineDateTime(date, clock, e.Zone)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body: schema.StepCount{
			Common: mapping.Framed(mapping.StartAndDuration(start, schema.IntValue(1, schema.Minute))),
			Steps:  steps,
		},
		ExternalID: mapping.SyntheticExternalID("fitbit-steps-intraday", start),
	}, true, nil
}

func intradayHeartRate(e mapping.Entry) (mapping.Record, bool, error) {
	rate, err := e.Node.RequiredDecimal("value")
	if err != nil {
		return mapping.Record{}, false, err
	}
	date, err := seriesDate(e, "activities-heart")
	if err != nil {
		return mapping.Record{}, false, err
	}
	clock, err := e.Node.RequiredString("time")
	if err != nil {
		return mapping.Record{}, false, err
	}
	at, err := mapping.CombineDateTime(date, clock, e.Zone)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.HeartRate{Common: mapping.Framed(schema.AtInstant(at)), Rate: schema.NewUnitValue(rate, schema.BeatsPerMinute)},
		ExternalID: mapping.SyntheticExternalID("fitbit-heart-rate", at),
	}, true, nil
}

// restingHeartRate maps the daily summary; days without a resting rate are skipped.
func restingHeartRate(e mapping.Entry) (mapping.Record, bool, error) {
	rate := e.Node.OptionalDecimal("value.restingHeartRate")
	if rate == nil {
		return mapping.Record{}, false, nil
	}
	date, err := e.Node.RequiredString("dateTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	day, err := mapping.ParseDate(date, e.Zone)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body: schema.HeartRate{
			Common:                 mapping.Framed(mapping.WholeDayOf(day)),
			Rate:                   schema.NewUnitValue(*rate, schema.BeatsPerMinute),
			RelationshipToActivity: schema.AtRest,
		},
		ExternalID: mapping.SyntheticExternalID("fitbit-resting-heart-rate", day),
	}, true, nil
}

func physicalActivity(e mapping.Entry) (mapping.Record, bool, error) {
	name, err := e.Node.RequiredString("name")
	if err != nil {
		return mapping.Record{}, false, err
	}
	date, err := e.Node.RequiredString("startDate")
	if err != nil {
		return mapping.Record{}, false, err
	}
	var frame schema.TimeFrame
	if has, _ := e.Node.Get("hasStartTime").Bool(); has {
		clock, err := e.Node.RequiredString("startTime")
		if err != nil {
			return mapping.Record{}, false, err
		}
		start, err := mapping.CombineDateTime(date, clock, e.Zone)
		if err != nil {
			return mapping.Record{}, false, err
		}
		frame = schema.AtInstant(start)
		if ms := e.Node.OptionalInt64("duration"); ms != nil {
			frame = mapping.StartAndDuration(start, schema.IntValue(*ms, schema.Millisecond))
		}
	} else {
		day, err := mapping.ParseDate(date, e.Zone)
		if err != nil {
			return mapping.Record{}, false, err
		}
		frame = mapping.WholeDayOf(day)
	}
	activity := schema.PhysicalActivity{Common: mapping.Framed(frame), ActivityName: name}
	if km := e.Node.OptionalDecimal("distance"); km != nil {
		v := schema.NewUnitValue(*km, schema.Kilometer)
		activity.Distance = &v
	}
	if kcal := e.Node.OptionalDecimal("calories"); kcal != nil {
		v := schema.NewUnitValue(*kcal, schema.Kilocalorie)
		activity.CaloriesBurned = &v
	}
	return mapping.Record{Body: activity, ExternalID: mapping.IDString(e.Node, "logId")}, true, nil
}

func sleepDuration(e mapping.Entry) (mapping.Record, bool, error) {
	minutes, err := e.Node.RequiredInt64("minutesAsleep")
	if err != nil {
		return mapping.Record{}, false, err
	}
	raw, err := e.Node.RequiredString("startTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	start, err := mapping.ParseLocalDateTime(raw, e.Zone)
	if err != nil {
		return mapping.Record{}, false, err
	}
	frame := schema.AtInstant(start)
	if inBed := e.Node.OptionalInt64("timeInBed"); inBed != nil {
		frame = mapping.StartAndDuration(start, schema.IntValue(*inBed, schema.Minute))
	}
	return mapping.Record{
		Body:       schema.SleepDuration{Common: mapping.Framed(frame), Duration: schema.IntValue(minutes, schema.Minute)},
		ExternalID: mapping.IDString(e.Node, "logId"),
	}, true, nil
}

func sleepEpisode(e mapping.Entry) (mapping.Record, bool, error) {
	minutes, err := e.Node.RequiredInt64("minutesAsleep")
	if err != nil {
		return mapping.Record{}, false, err
	}
	if minutes == 0 {
		return mapping.Record{}, false, nil
	}
	raw, err := e.Node.RequiredString("startTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	start, err := mapping.ParseLocalDateTime(raw, e.Zone)
	if err != nil {
		return mapping.Record{}, false, err
	}
	end, err := recordEnd(e, start)
	if err != nil {
		return mapping.Record{}, false, err
	}
	segments, err := sleepSegments(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	analysis, err := mapping.AnalyzeSleep(segments, end, minutes)
	if err != nil {
		return mapping.Record{}, false, err
	}
	total := schema.IntValue(minutes, schema.Minute)
	episode := schema.SleepEpisode{
		Common:         mapping.Framed(mapping.StartAndEnd(analysis.Onset, analysis.Arising)),
		TotalSleepTime: &total,
		WakeCount:      mapping.Int64(analysis.Awakenings),
		MainSleep:      e.Node.OptionalBool("isMainSleep"),
	}
	if v := e.Node.OptionalInt64("minutesToFallAsleep"); v != nil {
		latency := schema.IntValue(*v, schema.Minute)
		episode.LatencyToSleepOnset = &latency
	}
	if v := e.Node.OptionalInt64("minutesAfterWakeup"); v != nil {
		latency := schema.IntValue(*v, schema.Minute)
		episode.LatencyToArising = &latency
	}
	if v := e.Node.OptionalDecimal("efficiency"); v != nil {
		efficiency := schema.NewUnitValue(*v, schema.Percent)
		episode.SleepMaintenanceEfficiency = &efficiency
	}
	return mapping.Record{Body: episode, ExternalID: mapping.IDString(e.Node, "logId")}, true, nil
}

func recordEnd(e mapping.Entry, start time.Time) (time.Time, error) {
	if raw := e.Node.OptionalString("endTime"); raw != nil {
		return mapping.ParseLocalDateTime(*raw, e.Zone)
	}
	ms, err := e.Node.RequiredInt64("duration")
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(ms) * time.Millisecond), nil
}

func sleepSegments(e mapping.Entry) ([]mapping.Segment, error) {
	nodes, _ := e.Node.Get("levels.data").Array()
	segments := make([]mapping.Segment, 0, len(nodes))
	for _, node := range nodes {
		segment, err := sleepSegment(node, e.Zone)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

func sleepSegment(node jsonnode.Node, zone *time.Location) (mapping.Segment, error) {
	raw, err := node.RequiredString("dateTime")
	if err != nil {
		return mapping.Segment{}, err
	}
	start, err := mapping.ParseLocalDateTime(raw, zone)
	if err != nil {
		return mapping.Segment{}, err
	}
	level, err := node.RequiredString("level")
	if err != nil {
		return mapping.Segment{}, err
	}
	return mapping.Segment{Start: start, Stage: level, Awake: awakeLevels[level]}, nil
}
