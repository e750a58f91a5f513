package mapping

import (
	"sort"
	"strconv"
	"time"

	"github.com/coachpo/shimmer/errs"
)

// Segment is one stage of a sleep record, lasting until the next segment starts.
type Segment struct {
	Start time.Time
	Stage string
	Awake bool
}

// SleepAnalysis is the reconstruction of a segmented sleep record.
type SleepAnalysis struct {
	Asleep   time.Duration
	Awake    time.Duration
	Onset    time.Time
	Arising  time.Time
	HasSleep bool
	// Awakenings counts awake segments between the onset and arising.
	Awakenings int64
}

// AnalyzeSleep rebuilds asleep time, onset and arising from ordered segments.
// The last segment ends at recordEnd. An empty record, or a record reporting
// minutes asleep without any non-awake segment, is a page-scoped mapping error.
func AnalyzeSleep(segments []Segment, recordEnd time.Time, reportedMinutesAsleep int64) (SleepAnalysis, error) {
	if len(segments) == 0 {
		return SleepAnalysis{}, errs.PageMapping("", "sleep record has no segments")
	}
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start.Before(ordered[j].Start) })

	var out SleepAnalysis
	firstSleepIndex, lastSleepIndex := -1, -1
	for i, seg := range ordered {
		end := recordEnd
		if i+1 < len(ordered) {
			end = ordered[i+1].Start
		}
		if end.Before(seg.Start) {
			return SleepAnalysis{}, errs.PageMapping("", "sleep segment "+strconv.Itoa(i)+" starts after the record ends")
		}
		length := end.Sub(seg.Start)
		if seg.Awake {
			out.Awake += length
			continue
		}
		if !out.HasSleep {
			out.Onset = seg.Start
			out.HasSleep = true
			firstSleepIndex = i
		}
		out.Asleep += length
		out.Arising = end
		lastSleepIndex = i
	}
	if !out.HasSleep && reportedMinutesAsleep > 0 {
		return SleepAnalysis{}, errs.PageMapping("", "sleep record reports minutes asleep but has no asleep segment",
			errs.WithField("minutes_asleep", strconv.FormatInt(reportedMinutesAsleep, 10)))
	}
	for i := firstSleepIndex + 1; i < lastSleepIndex; i++ {
		if ordered[i].Awake {
			out.Awakenings++
		}
	}
	return out, nil
}
