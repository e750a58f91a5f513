// Package withings holds the Withings mapping tables.
package withings

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
	"github.com/shopspring/decimal"
)

const (
	Provider   = "withings"
	SourceName = "Withings Resource API"
)

// Measure group types.
const (
	typeWeight      = 1
	typeHeight      = 4
	typeDiastolic   = 9
	typeSystolic    = 10
	typeHeartPulse  = 11
	typeSpO2        = 54
	typeTemperature = 71
)

const (
	categoryReal = 1
	categoryGoal = 2
)

var deviceNames = map[int64]string{16: "Pulse", 32: "Aura"}

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

// Specs returns the measure-group, daily activity and sleep tables keyed by measure.
func Specs() map[schema.MeasureType]mapping.Spec {
	steps := spec(schema.MeasureStepCount, "body.activities", dailySteps)
	steps.ZeroAsAbsence = true
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasureBodyWeight:       spec(schema.MeasureBodyWeight, "body.measuregrps", bodyWeight),
		schema.MeasureBodyHeight:       spec(schema.MeasureBodyHeight, "body.measuregrps", bodyHeight),
		schema.MeasureBloodPressure:    spec(schema.MeasureBloodPressure, "body.measuregrps", bloodPressure),
		schema.MeasureHeartRate:        spec(schema.MeasureHeartRate, "body.measuregrps", heartRate),
		schema.MeasureBodyTemperature:  spec(schema.MeasureBodyTemperature, "body.measuregrps", bodyTemperature),
		schema.MeasureOxygenSaturation: spec(schema.MeasureOxygenSaturation, "body.measuregrps", oxygenSaturation),
		schema.MeasureStepCount:        steps,
		schema.MeasureCaloriesBurned:   spec(schema.MeasureCaloriesBurned, "body.activities", dailyCalories),
		schema.MeasureSleepDuration:    spec(schema.MeasureSleepDuration, "body.series", sleepDuration),
		schema.MeasureSleepEpisode:     spec(schema.MeasureSleepEpisode, "body.series", sleepEpisode),
	}
}

// IntradaySpecs returns the fine-grained activity series tables.
func IntradaySpecs() map[schema.MeasureType]mapping.Spec {
	steps := spec(schema.MeasureStepCount, "", intradaySeries("steps", func(c schema.Common, v decimal.Decimal) schema.Measure {
		return schema.StepCount{Common: c, Steps: v.IntPart()}
	}))
	steps.List = seriesEntries
	steps.ZeroAsAbsence = true
	calories := spec(schema.MeasureCaloriesBurned, "", intradaySeries("calories", func(c schema.Common, v decimal.Decimal) schema.Measure {
		return schema.CaloriesBurned{Common: c, Energy: schema.NewUnitValue(v, schema.Kilocalorie)}
	}))
	calories.List = seriesEntries
	calories.ZeroAsAbsence = true
	return map[schema.MeasureType]mapping.Spec{
		schema.MeasureStepCount:      steps,
		schema.MeasureCaloriesBurned: calories,
	}
}

// group is a decoded measure group.
type group struct {
	values   map[int64]decimal.Decimal
	at       time.Time
	modality schema.Modality
}

// readGroup returns ok=false for goals and for measurements of ambiguous attribution.
func readGroup(node jsonnode.Node) (group, bool, error) {
	category, err := node.RequiredInt64("category")
	if err != nil {
		return group{}, false, err
	}
	switch category {
	case categoryReal:
	case categoryGoal:
		return group{}, false, nil
	default:
		return group{}, false, fmt.Errorf("category %d: unknown measure group category", category)
	}
	attrib, err := node.RequiredInt64("attrib")
	if err != nil {
		return group{}, false, err
	}
	var modality schema.Modality
	switch attrib {
	case 0:
		modality = schema.ModalitySensed
	case 1:
		return group{}, false, nil
	case 2, 4:
		modality = schema.ModalitySelfReported
	default:
		return group{}, false, fmt.Errorf("attrib %d: unknown attribution", attrib)
	}
	date, err := node.RequiredInt64("date")
	if err != nil {
		return group{}, false, err
	}
	measures, err := node.RequiredArray("measures")
	if err != nil {
		return group{}, false, err
	}
	values := make(map[int64]decimal.Decimal, len(measures))
	for _, m := range measures {
		kind, err := m.RequiredInt64("type")
		if err != nil {
			return group{}, false, err
		}
		if _, dup := values[kind]; dup {
			return group{}, false, fmt.Errorf("type %d: duplicate measure in group", kind)
		}
		raw, err := m.RequiredInt64("value")
		if err != nil {
			return group{}, false, err
		}
		exponent, err := m.RequiredInt64("unit")
		if err != nil {
			return group{}, false, err
		}
		values[kind] = decimal.New(raw, int32(exponent))
	}
	return group{values: values, at: mapping.EpochSeconds(date, time.UTC), modality: modality}, true, nil
}

// measureGroup maps groups carrying every type in types; other groups are skipped.
func measureGroup(build func(c schema.Common, v map[int64]decimal.Decimal) schema.Measure, types ...int64) mapping.EntryFunc {
	return func(e mapping.Entry) (mapping.Record, bool, error) {
		g, ok, err := readGroup(e.Node)
		if err != nil || !ok {
			return mapping.Record{}, false, err
		}
		for _, kind := range types {
			if _, present := g.values[kind]; !present {
				return mapping.Record{}, false, nil
			}
		}
		c := mapping.Framed(schema.AtInstant(g.at))
		if comment := e.Node.OptionalString("comment"); comment != nil {
			c.UserNotes = *comment
		}
		return mapping.Record{
			Body:       build(c, g.values),
			ExternalID: mapping.IDString(e.Node, "grpid"),
			Modality:   g.modality,
		}, true, nil
	}
}

var (
	bodyWeight = measureGroup(func(c schema.Common, v map[int64]decimal.Decimal) schema.Measure {
		return schema.BodyWeight{Common: c, Weight: schema.NewUnitValue(v[typeWeight], schema.Kilogram)}
	}, typeWeight)
	bodyHeight = measureGroup(func(c schema.Common, v map[int64]decimal.Decimal) schema.Measure {
		return schema.BodyHeight{Common: c, Height: schema.NewUnitValue(v[typeHeight], schema.Meter)}
	}, typeHeight)
	bloodPressure = measureGroup(func(c schema.Common, v map[int64]decimal.Decimal) schema.Measure {
		return schema.BloodPressure{
			Common:    c,
			Systolic:  schema.NewUnitValue(v[typeSystolic], schema.MillimetersOfMercury),
			Diastolic: schema.NewUnitValue(v[typeDiastolic], schema.MillimetersOfMercury),
		}
	}, typeSystolic, typeDiastolic)
	heartRate = measureGroup(func(c schema.Common, v map[int64]decimal.Decimal) schema.Measure {
		return schema.HeartRate{Common: c, Rate: schema.NewUnitValue(v[typeHeartPulse], schema.BeatsPerMinute)}
	}, typeHeartPulse)
	bodyTemperature = measureGroup(func(c schema.Common, v map[int64]decimal.Decimal) schema.Measure {
		return schema.BodyTemperature{Common: c, Temperature: schema.NewUnitValue(v[typeTemperature], schema.Celsius)}
	}, typeTemperature)
	oxygenSaturation = measureGroup(func(c schema.Common, v map[int64]decimal.Decimal) schema.Measure {
		return schema.OxygenSaturation{Common: c, Saturation: schema.NewUnitValue(v[typeSpO2], schema.Percent)}
	}, typeSpO2)
)

func activityDay(e mapping.Entry) (time.Time, string, error) {
	date, err := e.Node.RequiredString("date")
	if err != nil {
		return time.Time{}, "", err
	}
	loc := time.UTC
	if name := e.Node.OptionalString("timezone"); name != nil {
		if loc, err = mapping.LoadZone(*name); err != nil {
			return time.Time{}, "", err
		}
	}
	day, err := mapping.ParseDate(date, loc)
	return day, date, err
}

func dailySteps(e mapping.Entry) (mapping.Record, bool, error) {
	count, err := e.Node.RequiredInt64("steps")
	if err != nil {
		return mapping.Record{}, false, err
	}
	day, date, err := activityDay(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.StepCount{Common: mapping.Framed(mapping.WholeDayOf(day)), Steps: count},
		ExternalID: date,
		Modality:   schema.ModalitySensed,
	}, true, nil
}

func dailyCalories(e mapping.Entry) (mapping.Record, bool, error) {
	kcal := e.Node.OptionalDecimal("calories")
	if kcal == nil {
		return mapping.Record{}, false, nil
	}
	day, date, err := activityDay(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	return mapping.Record{
		Body:       schema.CaloriesBurned{Common: mapping.Framed(mapping.WholeDayOf(day)), Energy: schema.NewUnitValue(*kcal, schema.Kilocalorie)},
		ExternalID: date,
		Modality:   schema.ModalitySensed,
	}, true, nil
}

// seriesEntries flattens the intraday object keyed by epoch seconds into
// chronologically ordered {"epoch", "data"} entries.
func seriesEntries(root jsonnode.Node) ([]jsonnode.Node, error) {
	series := root.Get("body.series")
	if series.IsNull() {
		return nil, nil
	}
	fields, ok := series.Fields()
	if !ok {
		return nil, fmt.Errorf("body.series is not an object")
	}
	type keyed struct {
		epoch int64
		node  jsonnode.Node
	}
	entries := make([]keyed, 0, len(fields))
	for _, f := range fields {
		epoch, err := strconv.ParseInt(f.Name, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("body.series key %q: %w", f.Name, err)
		}
		entries = append(entries, keyed{epoch: epoch, node: jsonnode.Wrap(map[string]any{"epoch": epoch, "data": f.Value})})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].epoch < entries[j].epoch })
	out := make([]jsonnode.Node, len(entries))
	for i, entry := range entries {
		out[i] = entry.node
	}
	return out, nil
}

func intradaySeries(field string, build func(c schema.Common, v decimal.Decimal) schema.Measure) mapping.EntryFunc {
	return func(e mapping.Entry) (mapping.Record, bool, error) {
		value := e.Node.OptionalDecimal("data." + field)
		if value == nil || value.IsNegative() {
			return mapping.Record{}, false, nil
		}
		epoch, err := e.Node.RequiredInt64("epoch")
		if err != nil {
			return mapping.Record{}, false, err
		}
		seconds, err := e.Node.RequiredInt64("data.duration")
		if err != nil {
			return mapping.Record{}, false, err
		}
		start := mapping.EpochSeconds(epoch, time.UTC)
		frame := mapping.StartAndDuration(start, schema.IntValue(seconds, schema.Second))
		return mapping.Record{
			Body:       build(mapping.Framed(frame), *value),
			ExternalID: strconv.FormatInt(epoch, 10),
			Modality:   schema.ModalitySensed,
		}, true, nil
	}
}

type sleepSummary struct {
	start, end               time.Time
	light, deep, rem         int64
	toSleep, toWake, wakeups *int64
}

func readSleep(e mapping.Entry) (sleepSummary, error) {
	loc := time.UTC
	if name := e.Node.OptionalString("timezone"); name != nil {
		var err error
		if loc, err = mapping.LoadZone(*name); err != nil {
			return sleepSummary{}, err
		}
	}
	startEpoch, err := e.Node.RequiredInt64("startdate")
	if err != nil {
		return sleepSummary{}, err
	}
	endEpoch, err := e.Node.RequiredInt64("enddate")
	if err != nil {
		return sleepSummary{}, err
	}
	s := sleepSummary{
		start:   mapping.EpochSeconds(startEpoch, loc),
		end:     mapping.EpochSeconds(endEpoch, loc),
		toSleep: e.Node.OptionalInt64("data.durationtosleep"),
		toWake:  e.Node.OptionalInt64("data.durationtowakeup"),
		wakeups: e.Node.OptionalInt64("data.wakeupcount"),
	}
	s.light, _ = e.Node.Get("data.lightsleepduration").Int64()
	s.deep, _ = e.Node.Get("data.deepsleepduration").Int64()
	s.rem, _ = e.Node.Get("data.remsleepduration").Int64()
	return s, nil
}

func (s sleepSummary) total() schema.DurationValue {
	return schema.IntValue(s.light+s.deep+s.rem, schema.Second)
}

func (s sleepSummary) stages() []schema.Property {
	return []schema.Property{
		{Key: "light_sleep_duration", Value: schema.IntValue(s.light, schema.Second)},
		{Key: "deep_sleep_duration", Value: schema.IntValue(s.deep, schema.Second)},
		{Key: "rem_sleep_duration", Value: schema.IntValue(s.rem, schema.Second)},
	}
}

func sleepRecord(e mapping.Entry, body schema.Measure) mapping.Record {
	rec := mapping.Record{Body: body, ExternalID: mapping.IDString(e.Node, "id"), Modality: schema.ModalitySensed}
	if model := e.Node.OptionalInt64("model"); model != nil {
		if name, ok := deviceNames[*model]; ok {
			rec.Properties = append(rec.Properties, schema.Property{Key: "device_name", Value: name})
		}
	}
	return rec
}

func sleepDuration(e mapping.Entry) (mapping.Record, bool, error) {
	s, err := readSleep(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	body := schema.SleepDuration{Common: mapping.Framed(mapping.StartAndEnd(s.start, s.end)), Duration: s.total()}
	body.Additional = schema.NewProperties(s.stages()...)
	if s.wakeups != nil {
		body.Additional.Set("wakeup_count", *s.wakeups)
	}
	return sleepRecord(e, body), true, nil
}

func sleepEpisode(e mapping.Entry) (mapping.Record, bool, error) {
	s, err := readSleep(e)
	if err != nil {
		return mapping.Record{}, false, err
	}
	onset, arising := s.start, s.end
	total := s.total()
	episode := schema.SleepEpisode{TotalSleepTime: &total, WakeCount: s.wakeups}
	if s.toSleep != nil {
		onset = onset.Add(time.Duration(*s.toSleep) * time.Second)
		latency := schema.IntValue(*s.toSleep, schema.Second)
		episode.LatencyToSleepOnset = &latency
	}
	if s.toWake != nil {
		arising = arising.Add(-time.Duration(*s.toWake) * time.Second)
		latency := schema.IntValue(*s.toWake, schema.Second)
		episode.LatencyToArising = &latency
	}
	episode.Common = mapping.Framed(mapping.StartAndEnd(onset, arising))
	episode.Additional = schema.NewProperties(s.stages()...)
	return sleepRecord(e, episode), true, nil
}
