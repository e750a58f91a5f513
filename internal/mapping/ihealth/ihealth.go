// Package ihealth holds the iHealth mapping tables. Measurement times are
// epoch seconds that encode local wall time, qualified by a per-entry zone.
package ihealth

import (
	"fmt"
	"strings"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
	"github.com/shopspring/decimal"
)

const (
	Provider   = "ihealth"
	SourceName = "iHealth Resource API"
)

var mealRelationships = map[string]schema.TemporalRelationshipToMeal{
	"Before_breakfast": schema.BeforeBreakfast,
	"After_breakfast":  schema.AfterBreakfast,
	"Before_lunch":     schema.BeforeLunch,
	"After_lunch":      schema.AfterLunch,
	"Before_dinner":    schema.BeforeDinner,
	"After_dinner":     schema.AfterDinner,
	"At_midnight":      schema.AfterDinner,
}

var weightUnits = map[int64]schema.MassUnit{0: schema.Kilogram, 1: schema.Pound, 2: schema.Stone}

func spec(measure schema.MeasureType, list string, fn mapping.EntryFunc) mapping.Spec {
	return mapping.Spec{
		Provider:     Provider,
		SourceName:   SourceName,
		Measure:      measure,
		ListPath:     list,
		OptionalList: true,
		Entry:        fn,
	}
}

// Specs returns the iHealth tables keyed by measure.
func Specs() map[schema.MeasureType]mapping.Spec {
	zeroSkipped := func(s mapping.Spec) mapping.Spec {
		s.ZeroAsAbsence = true
		return s
	}
	heart := zeroSkipped(spec(schema.MeasureHeartRate, "", heartRate))
	heart.List = heartRateEntries
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasureStepCount:        zeroSkipped(spec(schema.MeasureStepCount, "ARDataList", steps)),
		schema.MeasureBloodPressure:    spec(schema.MeasureBloodPressure, "BPDataList", bloodPressure),
		schema.MeasureHeartRate:        heart,
		schema.MeasureBloodGlucose:     zeroSkipped(spec(schema.MeasureBloodGlucose, "BGDataList", bloodGlucose)),
		schema.MeasureBodyWeight:       zeroSkipped(spec(schema.MeasureBodyWeight, "WeightDataList", bodyWeight)),
		schema.MeasureBodyMassIndex:    zeroSkipped(spec(schema.MeasureBodyMassIndex, "WeightDataList", bodyMassIndex)),
		schema.MeasureSleepDuration:    spec(schema.MeasureSleepDuration, "SRDataList", sleepDuration),
		schema.MeasurePhysicalActivity: spec(schema.MeasurePhysicalActivity, "SPORTDataList", physicalActivity),
		schema.MeasureOxygenSaturation: zeroSkipped(spec(schema.MeasureOxygenSaturation, "BODataList", oxygenSaturation)),
	}
}

// heartRateEntries collects pulse readings from the blood pressure and the
// pulse oximetry lists, whichever the page carries.
func heartRateEntries(root jsonnode.Node) ([]jsonnode.Node, error) {
	var out []jsonnode.Node
	for _, path := range []string{"BPDataList", "BODataList"} {
		list := root.Get(path)
		if list.IsNull() {
			continue
		}
		nodes, ok := list.Array()
		if !ok {
			return nil, fmt.Errorf("%s is not an array", path)
		}
		out = append(out, nodes...)
	}
	return out, nil
}

// zone reads TimeZone, given either as "+0800" or as a signed number like 800.
func zone(node jsonnode.Node) (*time.Location, error) {
	tz := node.Get("TimeZone")
	if tz.IsNull() {
		return time.UTC, nil
	}
	if s, ok := tz.Value().(string); ok {
		s = strings.TrimSpace(s)
		if s != "" && s[0] != '+' && s[0] != '-' {
			s = "+" + s
		}
		return mapping.ParseOffset(s)
	}
	n, ok := tz.Int64()
	if !ok {
		return nil, fmt.Errorf("TimeZone %v: unsupported value", tz.Value())
	}
	return mapping.ParseOffset(fmt.Sprintf("%+05d", n))
}

func localTime(node jsonnode.Node, path string) (time.Time, error) {
	sec, err := node.RequiredInt64(path)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := zone(node)
	if err != nil {
		return time.Time{}, err
	}
	return mapping.LocalEpochSeconds(sec, loc), nil
}

func modality(node jsonnode.Node) schema.Modality {
	switch mapping.IDString(node, "DataSource") {
	case "FromDevice":
		return schema.ModalitySensed
	case "Manual":
		return schema.ModalitySelfReported
	}
	return schema.ModalityUnset
}

func common(node jsonnode.Node, frame schema.TimeFrame) schema.Common {
	c := mapping.Framed(frame)
	if note := node.OptionalString("Note"); note != nil && strings.TrimSpace(*note) != "" {
		c.UserNotes = *note
	}
	return c
}

func record(node jsonnode.Node, body schema.Measure) mapping.Record {
	rec := mapping.Record{Body: body, ExternalID: mapping.IDString(node, "DataID"), Modality: modality(node)}
	if changed := node.OptionalInt64("LastChangeTime"); changed != nil {
		rec.SourceUpdated = mapping.Time(mapping.EpochSeconds(*changed, time.UTC))
	}
	return rec
}

func measuredAt(node jsonnode.Node) (schema.TimeFrame, error) {
	at, err := localTime(node, "MDate")
	if err != nil {
		return schema.TimeFrame{}, err
	}
	return schema.AtInstant(at), nil
}

func steps(e mapping.Entry) (mapping.Record, bool, error) {
	count, err := e.Node.RequiredInt64("Steps")
	if err != nil {
		return mapping.Record{}, false, err
	}
	day, err := localTime(e.Node, "MDate")
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.StepCount{Common: common(e.Node, mapping.WholeDayOf(day)), Steps: count}
	return record(e.Node, body), true, nil
}

func bloodPressure(e mapping.Entry) (mapping.Record, bool, error) {
	systolic, err := e.Node.RequiredDecimal("HP")
	if err != nil {
		return mapping.Record{}, false, err
	}
	diastolic, err := e.Node.RequiredDecimal("LP")
	if err != nil {
		return mapping.Record{}, false, err
	}
	unit := schema.MillimetersOfMercury
	if code, _ := e.Node.Get("BPUnit").Int64(); code == 1 {
		unit = schema.Kilopascal
	}
	frame, err := measuredAt(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.BloodPressure{
		Common:    common(e.Node, frame),
		Systolic:  schema.NewUnitValue(systolic, unit),
		Diastolic: schema.NewUnitValue(diastolic, unit),
	}
	return record(e.Node, body), true, nil
}

func heartRate(e mapping.Entry) (mapping.Record, bool, error) {
	rate := e.Node.OptionalDecimal("HR")
	if rate == nil {
		return mapping.Record{}, false, nil
	}
	frame, err := measuredAt(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.HeartRate{Common: common(e.Node, frame), Rate: schema.NewUnitValue(*rate, schema.BeatsPerMinute)}
	return record(e.Node, body), true, nil
}

func bloodGlucose(e mapping.Entry) (mapping.Record, bool, error) {
	value, err := e.Node.RequiredDecimal("BG")
	if err != nil {
		return mapping.Record{}, false, err
	}
	unit := schema.MilligramsPerDeciliter
	if code, _ := e.Node.Get("BGUnit").Int64(); code == 1 {
		unit = schema.MillimolesPerLiter
	}
	frame, err := measuredAt(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.BloodGlucose{Common: common(e.Node, frame), Glucose: schema.NewUnitValue(value, unit)}
	if situation := e.Node.OptionalString("DinnerSituation"); situation != nil {
		body.RelationshipToMeal = mealRelationships[*situation]
	}
	if drug := e.Node.OptionalString("DrugSituation"); drug != nil && *drug != "" {
		body.Additional = schema.NewProperties(schema.Property{Key: "temporal_relationship_to_medication", Value: *drug})
	}
	return record(e.Node, body), true, nil
}

func bodyWeight(e mapping.Entry) (mapping.Record, bool, error) {
	value, err := e.Node.RequiredDecimal("WeightValue")
	if err != nil {
		return mapping.Record{}, false, err
	}
	code, _ := e.Node.Get("WeightUnit").Int64()
	unit, ok := weightUnits[code]
	if !ok {
		return mapping.Record{}, false, fmt.Errorf("WeightUnit %d: unknown unit", code)
	}
	frame, err := measuredAt(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.BodyWeight{Common: common(e.Node, frame), Weight: schema.NewUnitValue(value, unit)}
	return record(e.Node, body), true, nil
}

func bodyMassIndex(e mapping.Entry) (mapping.Record, bool, error) {
	value := e.Node.OptionalDecimal("BMI")
	if value == nil {
		return mapping.Record{}, false, nil
	}
	frame, err := measuredAt(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.BodyMassIndex{Common: common(e.Node, frame), Index: schema.NewUnitValue(*value, schema.KilogramsPerSquareMeter)}
	return record(e.Node, body), true, nil
}

func sleepDuration(e mapping.Entry) (mapping.Record, bool, error) {
	minutes, err := e.Node.RequiredDecimal("HoursSlept")
	if err != nil {
		return mapping.Record{}, false, err
	}
	start, err := localTime(e.Node, "StartTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	end, err := localTime(e.Node, "EndTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.SleepDuration{
		Common:   common(e.Node, mapping.StartAndEnd(start, end)),
		Duration: schema.NewUnitValue(minutes, schema.Minute),
	}
	rec := record(e.Node, body)
	if awakenings := e.Node.OptionalInt64("Awaken"); awakenings != nil {
		rec.Properties = append(rec.Properties, schema.Property{Key: "wakeup_count", Value: *awakenings})
	}
	return rec, true, nil
}

func physicalActivity(e mapping.Entry) (mapping.Record, bool, error) {
	name := e.Node.OptionalString("SportName")
	if name == nil || strings.TrimSpace(*name) == "" {
		return mapping.Record{}, false, nil
	}
	start, err := localTime(e.Node, "SportStartTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	end, err := localTime(e.Node, "SportEndTime")
	if err != nil {
		return mapping.Record{}, false, err
	}
	activity := schema.PhysicalActivity{Common: common(e.Node, mapping.StartAndEnd(start, end)), ActivityName: *name}
	if kcal := e.Node.OptionalDecimal("Calories"); kcal != nil && kcal.GreaterThan(decimal.Zero) {
		v := schema.NewUnitValue(*kcal, schema.Kilocalorie)
		activity.CaloriesBurned = &v
	}
	return record(e.Node, activity), true, nil
}

func oxygenSaturation(e mapping.Entry) (mapping.Record, bool, error) {
	value, err := e.Node.RequiredDecimal("BO")
	if err != nil {
		return mapping.Record{}, false, err
	}
	frame, err := measuredAt(e.Node)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.OxygenSaturation{Common: common(e.Node, frame), Saturation: schema.NewUnitValue(value, schema.Percent)}
	return record(e.Node, body), true, nil
}
