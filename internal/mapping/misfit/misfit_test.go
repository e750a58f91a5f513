package misfit

import (
	"testing"
	"time"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
)

const sleeps = `{"sleeps":[{
	"id":"54fa13a8440f705a7406845f","autoDetected":false,
	"startTime":"2015-02-23T21:40:59-05:00","duration":9000,
	"sleepDetails":[
		{"datetime":"2015-02-23T21:40:59-05:00","value":2},
		{"datetime":"2015-02-23T23:10:59-05:00","value":1},
		{"datetime":"2015-02-23T23:20:59-05:00","value":3}
	]
}]}`

func mapPage(t *testing.T, measure schema.MeasureType, page string) (mapping.Batch, error) {
	t.Helper()
	return mapping.MustMapper(Specs()[measure]).Map([]jsonnode.Node{jsonnode.MustParse(page)})
}

func TestSleepDurationCountsAsleepSegments(t *testing.T) {
	batch, err := mapPage(t, schema.MeasureSleepDuration, sleeps)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(batch.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(batch.Points))
	}
	got := batch.Points[0].Body.(schema.SleepDuration).Duration
	if got.String() != "8400 sec" {
		t.Fatalf("unexpected duration %s", got)
	}
	if batch.Points[0].Header.Provenance.Modality != schema.ModalityUnset {
		t.Fatalf("unexpected modality %q", batch.Points[0].Header.Provenance.Modality)
	}
}

func TestSleepEpisodeBounds(t *testing.T) {
	batch, err := mapPage(t, schema.MeasureSleepEpisode, sleeps)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	episode := batch.Points[0].Body.(schema.SleepEpisode)
	interval, _ := episode.TimeFrame.Interval()
	end, _ := interval.End()
	if end.Format(time.RFC3339) != "2015-02-24T00:10:59-05:00" {
		t.Fatalf("unexpected arising %s", end.Format(time.RFC3339))
	}
	if *episode.WakeCount != 1 || episode.LatencyToArising.String() != "0 sec" {
		t.Fatalf("unexpected episode %+v", episode)
	}
}

func TestSleepWithoutDetailsFailsThePage(t *testing.T) {
	_, err := mapPage(t, schema.MeasureSleepDuration, `{"sleeps":[{"id":"1","startTime":"2015-02-23T21:40:59-05:00","duration":60,"sleepDetails":[]}]}`)
	if !errs.IsPageScoped(err) {
		t.Fatalf("expected page-scoped error, got %v", err)
	}
}

func TestStepsSummarySkipsZero(t *testing.T) {
	batch, err := mapPage(t, schema.MeasureStepCount, `{"summary":[{"date":"2015-06-01","steps":0},{"date":"2015-06-02","steps":184}]}`)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(batch.Points) != 1 || batch.Points[0].Body.(schema.StepCount).Steps != 184 {
		t.Fatalf("unexpected points %+v", batch.Points)
	}
	if id, _ := batch.Points[0].ExternalID(); id != "misfit-steps-1433203200" {
		t.Fatalf("unexpected id %s", id)
	}
	if modality := batch.Points[0].Header.Provenance.Modality; modality != schema.ModalityUnset {
		t.Fatalf("summary carries no modality signal, got %q", modality)
	}
}

func TestActivitySessionInMiles(t *testing.T) {
	batch, err := mapPage(t, schema.MeasurePhysicalActivity, `{"sessions":[{"id":"s1","activityType":"Walking","startTime":"2015-04-13T11:46:00-07:00","duration":1140,"distance":0.79,"calories":48.6}]}`)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	activity := batch.Points[0].Body.(schema.PhysicalActivity)
	if activity.Distance.String() != "0.79 mi" || activity.CaloriesBurned.String() != "48.6 kcal" {
		t.Fatalf("unexpected activity %+v", activity)
	}
}
