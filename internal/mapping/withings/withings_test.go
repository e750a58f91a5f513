package withings

import (
	"testing"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
	"github.com/shopspring/decimal"
)

const measureGroups = `{"status":0,"body":{"measuregrps":[
	{"grpid":2,"attrib":0,"date":1439596626,"category":1,"comment":"morning","measures":[
		{"value":74929,"type":1,"unit":-3},
		{"value":1850,"type":4,"unit":-3}]},
	{"grpid":3,"attrib":2,"date":1439596626,"category":1,"measures":[
		{"value":104,"type":9,"unit":0},
		{"value":125,"type":10,"unit":0},
		{"value":61,"type":11,"unit":0}]},
	{"grpid":4,"attrib":1,"date":1439596626,"category":1,"measures":[{"value":80000,"type":1,"unit":-3}]},
	{"grpid":5,"attrib":0,"date":1439596626,"category":2,"measures":[{"value":70000,"type":1,"unit":-3}]}
]}}`

func mapPage(t *testing.T, spec mapping.Spec, page string) mapping.Batch {
	t.Helper()
	batch, err := mapping.MustMapper(spec).Map([]jsonnode.Node{jsonnode.MustParse(page)})
	if err != nil {
		t.Fatalf("map %s: %v", spec.Measure, err)
	}
	if len(batch.EntryErrors) > 0 {
		t.Fatalf("unexpected entry errors: %v", batch.EntryErrors)
	}
	return batch
}

func TestMeasureGroupsScaleValues(t *testing.T) {
	batch := mapPage(t, Specs()[schema.MeasureBodyWeight], measureGroups)
	if len(batch.Points) != 1 {
		t.Fatalf("expected goal and ambiguous groups to be skipped, got %d points", len(batch.Points))
	}
	weight := batch.Points[0].Body.(schema.BodyWeight)
	if !weight.Weight.Value.Equal(mustDecimal(t, "74.929")) || weight.UserNotes != "morning" {
		t.Fatalf("unexpected weight %+v", weight)
	}
	if batch.Points[0].Header.Provenance.Modality != schema.ModalitySensed {
		t.Fatal("expected sensed modality for attrib 0")
	}
}

func TestBloodPressureNeedsBothReadings(t *testing.T) {
	batch := mapPage(t, Specs()[schema.MeasureBloodPressure], measureGroups)
	if len(batch.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(batch.Points))
	}
	bp := batch.Points[0].Body.(schema.BloodPressure)
	if bp.Systolic.String() != "125 mmHg" || bp.Diastolic.String() != "104 mmHg" {
		t.Fatalf("unexpected pressure %+v", bp)
	}
	if batch.Points[0].Header.Provenance.Modality != schema.ModalitySelfReported {
		t.Fatal("expected self-reported modality for attrib 2")
	}
	if id, _ := batch.Points[0].ExternalID(); id != "3" {
		t.Fatalf("unexpected id %s", id)
	}
}

func TestDuplicateMeasureTypeIsEntryError(t *testing.T) {
	batch, err := mapping.MustMapper(Specs()[schema.MeasureBodyWeight]).Map([]jsonnode.Node{jsonnode.MustParse(`{"body":{"measuregrps":[
		{"grpid":9,"attrib":0,"date":1439596626,"category":1,"measures":[{"value":1,"type":1,"unit":0},{"value":2,"type":1,"unit":0}]}
	]}}`)})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(batch.EntryErrors) != 1 {
		t.Fatalf("expected one entry error, got %v", batch.EntryErrors)
	}
}

func TestIntradayStepsSortedAndFiltered(t *testing.T) {
	batch := mapPage(t, IntradaySpecs()[schema.MeasureStepCount], `{"body":{"series":{
		"1439884800":{"steps":21,"duration":60},
		"1439883600":{"steps":7,"duration":60},
		"1439885000":{"calories":1.2,"duration":60},
		"1439886000":{"steps":-1,"duration":60}
	}}}`)
	if len(batch.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(batch.Points))
	}
	first, _ := batch.Points[0].ExternalID()
	second, _ := batch.Points[1].ExternalID()
	if first != "1439883600" || second != "1439884800" {
		t.Fatalf("unexpected order %s, %s", first, second)
	}
}

func TestDailyStepsInActivityZone(t *testing.T) {
	batch := mapPage(t, Specs()[schema.MeasureStepCount], `{"body":{"activities":[
		{"date":"2015-08-18","steps":2934,"timezone":"America/New_York","calories":99.5},
		{"date":"2015-08-19","steps":0,"timezone":"America/New_York"}
	]}}`)
	if len(batch.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(batch.Points))
	}
	start, _ := batch.Points[0].Body.(schema.StepCount).TimeFrame.Start()
	if start.Format(time.RFC3339) != "2015-08-18T00:00:00-04:00" {
		t.Fatalf("unexpected start %s", start.Format(time.RFC3339))
	}
	if id, _ := batch.Points[0].ExternalID(); id != "2015-08-18" {
		t.Fatalf("unexpected id %s", id)
	}
}

func TestSleepEpisodeTrimsLatencies(t *testing.T) {
	batch := mapPage(t, Specs()[schema.MeasureSleepEpisode], `{"body":{"series":[
		{"id":373,"timezone":"UTC","model":32,"startdate":1439852400,"enddate":1439881200,
		 "data":{"wakeupcount":2,"lightsleepduration":12000,"deepsleepduration":9000,"remsleepduration":5400,
		 "durationtosleep":600,"durationtowakeup":1200}}
	]}}`)
	episode := batch.Points[0].Body.(schema.SleepEpisode)
	if episode.TotalSleepTime.String() != "26400 sec" || *episode.WakeCount != 2 {
		t.Fatalf("unexpected episode %+v", episode)
	}
	interval, _ := episode.TimeFrame.Interval()
	start, _ := interval.Start()
	end, _ := interval.End()
	if start.Unix() != 1439853000 || end.Unix() != 1439880000 {
		t.Fatalf("unexpected bounds %d..%d", start.Unix(), end.Unix())
	}
	if name, _ := batch.Points[0].Header.Provenance.Additional.Get("device_name"); name != "Aura" {
		t.Fatalf("unexpected device %v", name)
	}
}

func mustDecimal(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("decimal %q: %v", raw, err)
	}
	return d
}
