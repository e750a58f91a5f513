// Package misfit holds the Misfit mapping tables.
package misfit

import (
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/mapping"
)

const (
	Provider   = "misfit"
	SourceName = "Misfit Resource API"
)

// Sleep detail values.
const (
	stateAwake = 1
	stateSleep = 2
	stateDeep  = 3
)

var stageNames = map[int64]string{stateAwake: "awake", stateSleep: "sleep", stateDeep: "deep"}

// Specs returns the Misfit tables keyed by measure.
func Specs() map[schema.MeasureType]mapping.Spec {
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasurePhysicalActivity: {
			Provider: Provider, SourceName: SourceName, Measure: schema.MeasurePhysicalActivity,
			ListPath: "sessions", Entry: physicalActivity,
		},
		schema.MeasureSleepDuration: {
			Provider: Provider, SourceName: SourceName, Measure: schema.MeasureSleepDuration,
			ListPath: "sleeps", Entry: sleepDuration,
		},
		schema.MeasureSleepEpisode: {
			Provider: Provider, SourceName: SourceName, Measure: schema.MeasureSleepEpisode,
			ListPath: "sleeps", Entry: sleepEpisode,
		},
		schema.MeasureStepCount: {
			Provider: Provider, SourceName: SourceName, Measure: schema.MeasureStepCount,
			ListPath: "summary", Entry: steps, ZeroAsAbsence: true,
		},
	}
}

func physicalActivity(e mapping.Entry) (mapping.Record, bool, error) {
	name, err := e.Node.RequiredString("activityType")
	if err != nil {
		return mapping.Record{}, false, err
	}
	raw, err := e.Node.RequiredString("startTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	start, err := mapping.ParseOffsetDateTime(raw)
	if err != nil {
		return mapping.Record{}, false, err
	}
	frame := schema.AtInstant(start)
	if seconds := e.Node.OptionalInt64("duration"); seconds != nil {
		frame = mapping.StartAndDuration(start, schema.IntValue(*seconds, schema.Second))
	}
	activity := schema.PhysicalActivity{Common: mapping.Framed(frame), ActivityName: name}
	if miles := e.Node.OptionalDecimal("distance"); miles != nil {
		v := schema.NewUnitValue(*miles, schema.Mile)
		activity.Distance = &v
	}
	if kcal := e.Node.OptionalDecimal("calories"); kcal != nil {
		v := schema.NewUnitValue(*kcal, schema.Kilocalorie)
		activity.CaloriesBurned = &v
	}
	return mapping.Record{
		Body:       activity,
		ExternalID: mapping.IDString(e.Node, "id"),
		Modality:   mapping.ModalityFromFlag(e.Node.OptionalBool("autoDetected")),
	}, true, nil
}

type sleepRecord struct {
	start    time.Time
	end      time.Time
	analysis mapping.SleepAnalysis
}

func readSleep(e mapping.Entry) (sleepRecord, error) {
	raw, err := e.Node.RequiredString("startTime")
	if err != nil {
		return sleepRecord{}, err
	}
	start, err := mapping.ParseOffsetDateTime(raw)
	if err != nil {
		return sleepRecord{}, err
	}
	seconds, err := e.Node.RequiredInt64("duration")
	if err != nil {
		return sleepRecord{}, err
	}
	end := start.Add(time.Duration(seconds) * time.Second)

	details, _ := e.Node.Get("sleepDetails").Array()
	segments := make([]mapping.Segment, 0, len(details))
	for _, detail := range details {
		at, err := detail.RequiredString("datetime")
		if err != nil {
			return sleepRecord{}, err
		}
		segmentStart, err := mapping.ParseOffsetDateTime(at)
		if err != nil {
			return sleepRecord{}, err
		}
		state, err := detail.RequiredInt64("value")
		if err != nil {
			return sleepRecord{}, err
		}
		segments = append(segments, mapping.Segment{Start: segmentStart, Stage: stageNames[state], Awake: state == stateAwake})
	}
	analysis, err := mapping.AnalyzeSleep(segments, end, 0)
	if err != nil {
		return sleepRecord{}, err
	}
	return sleepRecord{start: start, end: end, analysis: analysis}, nil
}

func sleepDuration(e mapping.Entry) (mapping.Record, bool, error) {
	rec, err := readSleep(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	if !rec.analysis.HasSleep {
		return mapping.Record{}, false, nil
	}
	return mapping.Record{
		Body: schema.SleepDuration{
			Common:   mapping.Framed(mapping.StartAndEnd(rec.start, rec.end)),
			Duration: mapping.Seconds(rec.analysis.Asleep),
		},
		ExternalID: mapping.IDString(e.Node, "id"),
		Modality:   mapping.ModalityFromFlag(e.Node.OptionalBool("autoDetected")),
	}, true, nil
}

func sleepEpisode(e mapping.Entry) (mapping.Record, bool, error) {
	rec, err := readSleep(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	if !rec.analysis.HasSleep {
		return mapping.Record{}, false, nil
	}
	total := mapping.Seconds(rec.analysis.Asleep)
	onset := mapping.Seconds(rec.analysis.Onset.Sub(rec.start))
	arising := mapping.Seconds(rec.end.Sub(rec.analysis.Arising))
	return mapping.Record{
		Body: schema.SleepEpisode{
			Common:              mapping.Framed(mapping.StartAndEnd(rec.analysis.Onset, rec.analysis.Arising)),
			TotalSleepTime:      &total,
			LatencyToSleepOnset: &onset,
			LatencyToArising:    &arising,
			WakeCount:           mapping.Int64(rec.analysis.Awakenings),
		},
		ExternalID: mapping.IDString(e.Node, "id"),
		Modality:   mapping.ModalityFromFlag(e.Node.OptionalBool("autoDetected")),
	}, true, nil
}

func steps(e mapping.Entry) (mapping.Record, bool, error) {
	count, err := e.Node.RequiredInt64("steps")
	if err != nil {
		return mapping.Record{}, false, err
	}
	date, err := e.Node.RequiredString("date")
	if err != nil {
		return mapping.Record{}, false, err
	}
	day, err := mapping.ParseDate(date, time.UTC)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.StepCount{Common: mapping.Framed(mapping.WholeDayOf(day)), Steps: count},
		ExternalID: mapping.SyntheticExternalID("misfit-steps", day),
	}, true, nil
}
