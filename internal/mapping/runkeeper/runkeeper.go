// Package runkeeper holds the Runkeeper HealthGraph mapping tables.
package runkeeper

import (
	"strings"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
	"github.com/shopspring/decimal"
)

const (
	Provider   = "runkeeper"
	SourceName = "Runkeeper HealthGraph API"

	startTimeLayout = "Mon, 2 Jan 2006 15:04:05"
)

var hourSeconds = decimal.NewFromInt(3600)

// Specs returns the Runkeeper tables keyed by measure.
func Specs() map[schema.MeasureType]mapping.Spec {
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasurePhysicalActivity: {
			Provider: Provider, SourceName: SourceName, Measure: schema.MeasurePhysicalActivity,
			ListPath: "items", Entry: physicalActivity,
		},
		schema.MeasureCaloriesBurned: {
			Provider: Provider, SourceName: SourceName, Measure: schema.MeasureCaloriesBurned,
			ListPath: "items", Entry: caloriesBurned,
		},
	}
}

// modality: web entries are self-reported, API entries with a GPS path are sensed.
func modality(item jsonnode.Node) schema.Modality {
	source := mapping.IDString(item, "source")
	if !strings.EqualFold(source, "RunKeeper") {
		return schema.ModalityUnset
	}
	switch mapping.IDString(item, "entry_mode") {
	case "Web":
		return schema.ModalitySelfReported
	case "API":
		if hasPath, _ := item.Get("has_path").Bool(); hasPath {
			return schema.ModalitySensed
		}
	}
	return schema.ModalityUnset
}

// frame returns ok=false for items without utc_offset.
func frame(item jsonnode.Node) (schema.TimeFrame, bool, error) {
	offset := item.OptionalDecimal("utc_offset")
	if offset == nil {
		return schema.TimeFrame{}, false, nil
	}
	raw, err := item.RequiredString("start_time")
	if err != nil {
		return schema.TimeFrame{}, false, err
	}
	loc := mapping.FixedZone(int(offset.Mul(hourSeconds).IntPart()))
	start, err := time.ParseInLocation(startTimeLayout, raw, loc)
	if err != nil {
		return schema.TimeFrame{}, false, err
	}
	if seconds := item.OptionalDecimal("duration"); seconds != nil {
		return mapping.StartAndDuration(start, schema.NewUnitValue(*seconds, schema.Second)), true, nil
	}
	return schema.AtInstant(start), true, nil
}

func physicalActivity(e mapping.Entry) (mapping.Record, bool, error) {
	f, ok, err := frame(e.Node)
	if err != nil || !ok {
		return mapping.Record{}, false, err
	}
	name, err := e.Node.RequiredString("type")
	if err != nil {
		return mapping.Record{}, false, err
	}
	activity := schema.PhysicalActivity{Common: mapping.Framed(f), ActivityName: name}
	if meters := e.Node.OptionalDecimal("total_distance"); meters != nil {
		v := schema.NewUnitValue(*meters, schema.Meter)
		activity.Distance = &v
	}
	return mapping.Record{Body: activity, ExternalID: mapping.IDString(e.Node, "uri"), Modality: modality(e.Node)}, true, nil
}

func caloriesBurned(e mapping.Entry) (mapping.Record, bool, error) {
	kcal := e.Node.OptionalDecimal("total_calories")
	if kcal == nil {
		return mapping.Record{}, false, nil
	}
	f, ok, err := frame(e.Node)
	if err != nil || !ok {
		return mapping.Record{}, false, err
	}
	body := schema.CaloriesBurned{
		Common:       mapping.Framed(f),
		Energy:       schema.NewUnitValue(*kcal, schema.Kilocalorie),
		ActivityName: mapping.IDString(e.Node, "type"),
	}
	return mapping.Record{Body: body, ExternalID: mapping.IDString(e.Node, "uri"), Modality: modality(e.Node)}, true, nil
}
