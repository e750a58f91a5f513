package ihealth

import (
	"testing"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
)

func mapPage(t *testing.T, measure schema.MeasureType, page string) mapping.Batch {
	t.Helper()
	batch, err := mapping.MustMapper(Specs()[measure]).Map([]jsonnode.Node{jsonnode.MustParse(page)})
	if err != nil {
		t.Fatalf("map %s: %v", measure, err)
	}
	if len(batch.EntryErrors) > 0 {
		t.Fatalf("unexpected entry errors: %v", batch.EntryErrors)
	}
	return batch
}

func TestBloodPressureKeepsLocalWallClock(t *testing.T) {
	// MDate 1461226500 is 2016-04-21T08:15:00 on the measuring device.
	batch := mapPage(t, schema.MeasureBloodPressure, `{"BPDataList":[
		{"DataID":"c62b84d9d4b7480a8ff2aef1465aa454","DataSource":"FromDevice","HP":120,"LP":90,"HR":75,
		 "BPUnit":0,"MDate":1461226500,"TimeZone":"-0600","LastChangeTime":1461254400,"Note":""}
	]}`)
	point := batch.Points[0]
	bp := point.Body.(schema.BloodPressure)
	at, _ := bp.TimeFrame.Instant()
	if at.Format(time.RFC3339) != "2016-04-21T08:15:00-06:00" {
		t.Fatalf("unexpected time %s", at.Format(time.RFC3339))
	}
	if bp.Systolic.String() != "120 mmHg" || bp.UserNotes != "" {
		t.Fatalf("unexpected body %+v", bp)
	}
	if point.Header.Provenance.Modality != schema.ModalitySensed {
		t.Fatalf("unexpected modality %q", point.Header.Provenance.Modality)
	}
	if id, _ := point.ExternalID(); id != "c62b84d9d4b7480a8ff2aef1465aa454" {
		t.Fatalf("unexpected id %s", id)
	}
}

func TestHeartRateReadsBothLists(t *testing.T) {
	batch := mapPage(t, schema.MeasureHeartRate, `{
		"BPDataList":[{"DataID":"bp","HR":75,"MDate":1461226500,"TimeZone":"-0600"},{"DataID":"bp0","HR":0,"MDate":1461226500,"TimeZone":"-0600"}],
		"BODataList":[{"DataID":"bo","HR":68,"BO":98,"MDate":1461226500,"TimeZone":800,"DataSource":"Manual"}]
	}`)
	if len(batch.Points) != 2 || batch.Skipped != 1 {
		t.Fatalf("expected 2 points and 1 skip, got %d/%d", len(batch.Points), batch.Skipped)
	}
	at, _ := batch.Points[1].Body.(schema.HeartRate).TimeFrame.Instant()
	if _, offset := at.Zone(); offset != 8*3600 {
		t.Fatalf("unexpected numeric zone offset %d", offset)
	}
	if batch.Points[1].Header.Provenance.Modality != schema.ModalitySelfReported {
		t.Fatal("expected self-reported modality for manual entries")
	}
}

func TestBloodGlucoseMealAndMedication(t *testing.T) {
	batch := mapPage(t, schema.MeasureBloodGlucose, `{"BGDataList":[
		{"DataID":"g1","BG":60,"BGUnit":0,"DinnerSituation":"At_midnight","DrugSituation":"Before_taking_pills",
		 "MDate":1461226500,"TimeZone":"+0000","Note":"Such glucose, much blood."}
	]}`)
	glucose := batch.Points[0].Body.(schema.BloodGlucose)
	if glucose.RelationshipToMeal != schema.AfterDinner || glucose.Glucose.String() != "60 mg/dL" {
		t.Fatalf("unexpected glucose %+v", glucose)
	}
	if v, ok := glucose.Additional.Get("temporal_relationship_to_medication"); !ok || v != "Before_taking_pills" {
		t.Fatalf("unexpected medication property %v", v)
	}
	if glucose.UserNotes != "Such glucose, much blood." {
		t.Fatalf("unexpected notes %q", glucose.UserNotes)
	}
}

func TestWeightUnitsKeptAsReported(t *testing.T) {
	batch := mapPage(t, schema.MeasureBodyWeight, `{"WeightDataList":[
		{"DataID":"w0","WeightValue":0,"WeightUnit":0,"MDate":1461226500,"TimeZone":"+0000"},
		{"DataID":"w1","WeightValue":12.5,"WeightUnit":2,"MDate":1461226500,"TimeZone":"+0000"}
	]}`)
	if len(batch.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(batch.Points))
	}
	if got := batch.Points[0].Body.(schema.BodyWeight).Weight.String(); got != "12.5 st" {
		t.Fatalf("unexpected weight %s", got)
	}
}

func TestEmptySportNameIsSkipped(t *testing.T) {
	batch := mapPage(t, schema.MeasurePhysicalActivity, `{"SPORTDataList":[
		{"DataID":"a0","SportName":"","SportStartTime":1461226500,"SportEndTime":1461230100,"TimeZone":"+0000"},
		{"DataID":"a1","SportName":"Swimming","SportStartTime":1461226500,"SportEndTime":1461230100,"TimeZone":"+0000","Calories":202.5}
	]}`)
	if len(batch.Points) != 1 || batch.Points[0].Body.(schema.PhysicalActivity).CaloriesBurned.String() != "202.5 kcal" {
		t.Fatalf("unexpected activities %+v", batch.Points)
	}
}
