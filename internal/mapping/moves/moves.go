// Package moves holds the Moves storyline mapping tables.
package moves

import (
	"strings"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
)

const (
	Provider   = "moves"
	SourceName = "Moves Resource API"

	timeLayout = "20060102T150405-0700"
)

// Specs returns the Moves tables keyed by measure. Both read the activities
// nested under each day's segments in the daily storyline.
func Specs() map[schema.MeasureType]mapping.Spec {
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasurePhysicalActivity: {
			Provider: Provider, SourceName: SourceName, Measure: schema.MeasurePhysicalActivity,
			List: activityEntries, Entry: physicalActivity,
		},
		schema.MeasureStepCount: {
			Provider: Provider, SourceName: SourceName, Measure: schema.MeasureStepCount,
			List: activityEntries, Entry: steps,
		},
	}
}

// activityEntries flattens days[].segments[].activities[]. Days without
// segments and segments without activities contribute nothing.
func activityEntries(root jsonnode.Node) ([]jsonnode.Node, error) {
	days, ok := root.Array()
	if !ok {
		if root.IsNull() {
			return nil, nil
		}
		return nil, &jsonnode.MissingFieldError{Path: "", Reason: "storyline is not a list of days"}
	}
	var out []jsonnode.Node
	for _, day := range days {
		segments, _ := day.Get("segments").Array()
		for _, segment := range segments {
			activities, _ := segment.Get("activities").Array()
			out = append(out, activities...)
		}
	}
	return out, nil
}

// frame returns ok=false unless both startTime and endTime are present.
func frame(node jsonnode.Node) (schema.TimeFrame, bool, error) {
	rawStart, rawEnd := node.OptionalString("startTime"), node.OptionalString("endTime")
	if rawStart == nil || rawEnd == nil {
		return schema.TimeFrame{}, false, nil
	}
	start, err := parseTime(*rawStart)
	if err != nil {
		return schema.TimeFrame{}, false, err
	}
	end, err := parseTime(*rawEnd)
	if err != nil {
		return schema.TimeFrame{}, false, err
	}
	return mapping.StartAndEnd(start, end), true, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	_, offset := t.Zone()
	return t.In(mapping.FixedZone(offset)), nil
}

// modality reads the "manual" flag: manual entries are self-reported, tracked ones sensed.
func modality(node jsonnode.Node) schema.Modality {
	manual := node.OptionalBool("manual")
	if manual == nil {
		return schema.ModalityUnset
	}
	return mapping.ModalityFromBool(mapping.Bool(!*manual))
}

func record(node jsonnode.Node, body schema.Measure, f schema.TimeFrame) (mapping.Record, error) {
	name, err := node.RequiredString("activity")
	if err != nil {
		return mapping.Record{}, err
	}
	start, _ := f.Start()
	return mapping.Record{
		Body:       body,
		ExternalID: mapping.SyntheticExternalID(name, start),
		Modality:   modality(node),
	}, nil
}

func physicalActivity(e mapping.Entry) (mapping.Record, bool, error) {
	f, ok, err := frame(e.Node)
	if err != nil || !ok {
		return mapping.Record{}, false, err
	}
	name, err := e.Node.RequiredString("activity")
	if err != nil {
		return mapping.Record{}, false, err
	}
	activity := schema.PhysicalActivity{Common: mapping.Framed(f), ActivityName: name}
	if meters := e.Node.OptionalDecimal("distance"); meters != nil {
		v := schema.NewUnitValue(*meters, schema.Meter)
		activity.Distance = &v
	}
	if kcal := e.Node.OptionalDecimal("calories"); kcal != nil {
		v := schema.NewUnitValue(*kcal, schema.Kilocalorie)
		activity.CaloriesBurned = &v
	}
	rec, err := record(e.Node, activity, f)
	return rec, err == nil, err
}

// steps skips activities without a step count, such as cycling.
func steps(e mapping.Entry) (mapping.Record, bool, error) {
	count := e.Node.OptionalInt64("steps")
	if count == nil {
		return mapping.Record{}, false, nil
	}
	f, ok, err := frame(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	if !ok {
		return mapping.Record{}, false, &jsonnode.MissingFieldError{Path: "startTime", Reason: "step activity without a time frame"}
	}
	rec, err := record(e.Node, schema.StepCount{Common: mapping.Framed(f), Steps: *count}, f)
	return rec, err == nil, err
}
