package moves

import (
	"testing"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
	"github.com/coachpo/shimmer/internal/mapping"
)

const storyline = `[
	{"date":"20160403","segments":[
		{"type":"place","startTime":"20160403T080000-0500","endTime":"20160403T173000-0500","place":{"id":1}},
		{"type":"move","startTime":"20160403T175200-0500","endTime":"20160403T180109-0500","activities":[
			{"activity":"cycling","group":"cycling","manual":false,
			 "startTime":"20160403T175200-0500","endTime":"20160403T175709-0500","duration":309,"distance":1500,"calories":41},
			{"activity":"walking","group":"walking","manual":true,
			 "startTime":"20160403T175709-0500","endTime":"20160403T180109-0500","duration":240,"distance":212,"steps":301}
		]}
	]},
	{"date":"20160404","segments":null},
	{"date":"20160405","segments":[
		{"type":"move","activities":[{"activity":"walking","steps":40}]}
	]}
]`

func mapPage(t *testing.T, measure schema.MeasureType, page string) mapping.Batch {
	t.Helper()
	batch, err := mapping.MustMapper(Specs()[measure]).Map([]jsonnode.Node{jsonnode.MustParse(page)})
	if err != nil {
		t.Fatalf("map %s: %v", measure, err)
	}
	return batch
}

func TestPhysicalActivityFromStorylineActivities(t *testing.T) {
	batch := mapPage(t, schema.MeasurePhysicalActivity, storyline)
	if len(batch.Points) != 2 || batch.Skipped != 1 {
		t.Fatalf("expected 2 points and 1 skip, got %d/%d", len(batch.Points), batch.Skipped)
	}
	ride := batch.Points[0]
	activity := ride.Body.(schema.PhysicalActivity)
	if activity.ActivityName != "cycling" || activity.Distance.String() != "1500 m" || activity.CaloriesBurned.String() != "41 kcal" {
		t.Fatalf("unexpected activity %+v", activity)
	}
	start, _ := activity.TimeFrame.Start()
	if start.Format(time.RFC3339) != "2016-04-03T17:52:00-05:00" {
		t.Fatalf("unexpected start %s", start.Format(time.RFC3339))
	}
	interval, ok := activity.TimeFrame.Interval()
	if !ok {
		t.Fatal("expected an interval frame")
	}
	if end, _ := interval.End(); end.Sub(start) != 309*time.Second {
		t.Fatalf("unexpected end %s", end)
	}
	if id, _ := ride.ExternalID(); id != "cycling-1459723920" {
		t.Fatalf("unexpected id %s", id)
	}
	if ride.Header.Provenance.Modality != schema.ModalitySensed {
		t.Fatalf("tracked activity should be sensed, got %q", ride.Header.Provenance.Modality)
	}
	if walk := batch.Points[1]; walk.Header.Provenance.Modality != schema.ModalitySelfReported {
		t.Fatalf("manual activity should be self-reported, got %q", walk.Header.Provenance.Modality)
	}
	if ride.Header.Provenance.SourceName != SourceName {
		t.Fatalf("unexpected source %s", ride.Header.Provenance.SourceName)
	}
}

func TestStepCountRequiresTimeFrame(t *testing.T) {
	batch := mapPage(t, schema.MeasureStepCount, storyline)
	if len(batch.Points) != 1 || batch.Skipped != 1 || len(batch.EntryErrors) != 1 {
		t.Fatalf("expected 1 point, 1 skip and 1 entry error, got %d/%d/%d", len(batch.Points), batch.Skipped, len(batch.EntryErrors))
	}
	if got := batch.Points[0].Body.(schema.StepCount).Steps; got != 301 {
		t.Fatalf("unexpected steps %d", got)
	}
}

func TestEmptyStorylineMapsToNothing(t *testing.T) {
	for _, page := range []string{`[]`, `[{"date":"20160403","segments":[]}]`} {
		batch := mapPage(t, schema.MeasurePhysicalActivity, page)
		if len(batch.Points) != 0 || len(batch.EntryErrors) != 0 {
			t.Fatalf("%s: unexpected batch %+v", page, batch)
		}
	}
}

func TestStorylineMustBeAList(t *testing.T) {
	_, err := mapping.MustMapper(Specs()[schema.MeasureStepCount]).Map([]jsonnode.Node{jsonnode.MustParse(`{"segments":[]}`)})
	if err == nil {
		t.Fatal("expected a page error for a non-list storyline")
	}
}
