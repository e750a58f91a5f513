package schema

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// TimeInterval is either {start, end}, {start, duration} or {end, duration}.
type TimeInterval struct {
	start    *time.Time
	end      *time.Time
	duration *DurationValue
}

// IntervalOfStartAndEnd builds an interval bounded on both sides.
func IntervalOfStartAndEnd(start, end time.Time) TimeInterval {
	return TimeInterval{start: &start, end: &end}
}

// IntervalOfStartAndDuration builds an interval from its start and length.
func IntervalOfStartAndDuration(start time.Time, duration DurationValue) TimeInterval {
	return TimeInterval{start: &start, duration: &duration}
}

// IntervalOfEndAndDuration builds an interval from its end and length.
func IntervalOfEndAndDuration(end time.Time, duration DurationValue) TimeInterval {
	return TimeInterval{end: &end, duration: &duration}
}

// Start returns the interval start, deriving it from end and duration when needed.
func (i TimeInterval) Start() (time.Time, bool) {
	if i.start != nil {
		return *i.start, true
	}
	if i.end != nil && i.duration != nil {
		d, err := ToDuration(*i.duration)
		if err != nil {
			return time.Time{}, false
		}
		return i.end.Add(-d), true
	}
	return time.Time{}, false
}

// End returns the interval end, deriving it from start and duration when needed.
func (i TimeInterval) End() (time.Time, bool) {
	if i.end != nil {
		return *i.end, true
	}
	if i.start != nil && i.duration != nil {
		d, err := ToDuration(*i.duration)
		if err != nil {
			return time.Time{}, false
		}
		return i.start.Add(d), true
	}
	return time.Time{}, false
}

// Duration returns the declared duration, if the interval was built with one.
func (i TimeInterval) Duration() (DurationValue, bool) {
	if i.duration == nil {
		return DurationValue{}, false
	}
	return *i.duration, true
}

type timeIntervalJSON struct {
	StartDateTime *string        `json:"start_date_time,omitempty"`
	EndDateTime   *string        `json:"end_date_time,omitempty"`
	Duration      *DurationValue `json:"duration,omitempty"`
}

// MarshalJSON encodes the interval with RFC 3339 timestamps that keep the recorded offset.
func (i TimeInterval) MarshalJSON() ([]byte, error) {
	out := timeIntervalJSON{Duration: i.duration}
	if i.start != nil {
		s := i.start.Format(time.RFC3339Nano)
		out.StartDateTime = &s
	}
	if i.end != nil {
		s := i.end.Format(time.RFC3339Nano)
		out.EndDateTime = &s
	}
	return json.Marshal(out)
}

// TimeFrame is either a single instant or an interval, never both.
type TimeFrame struct {
	instant  *time.Time
	interval *TimeInterval
}

// AtInstant builds a time frame for a single point in time.
func AtInstant(t time.Time) TimeFrame {
	return TimeFrame{instant: &t}
}

// OverInterval builds a time frame covering an interval.
func OverInterval(interval TimeInterval) TimeFrame {
	return TimeFrame{interval: &interval}
}

// WholeDay builds the interval starting at local midnight of date and lasting one day.
func WholeDay(year int, month time.Month, day int, loc *time.Location) TimeFrame {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	return OverInterval(IntervalOfStartAndDuration(start, IntValue(1, Day)))
}

// Instant returns the instant when the frame is one.
func (f TimeFrame) Instant() (time.Time, bool) {
	if f.instant == nil {
		return time.Time{}, false
	}
	return *f.instant, true
}

// Interval returns the interval when the frame is one.
func (f TimeFrame) Interval() (TimeInterval, bool) {
	if f.interval == nil {
		return TimeInterval{}, false
	}
	return *f.interval, true
}

// IsZero reports whether the frame carries neither an instant nor an interval.
func (f TimeFrame) IsZero() bool {
	return f.instant == nil && f.interval == nil
}

// Start returns the instant or the interval start.
func (f TimeFrame) Start() (time.Time, bool) {
	if f.instant != nil {
		return *f.instant, true
	}
	if f.interval != nil {
		return f.interval.Start()
	}
	return time.Time{}, false
}

type timeFrameJSON struct {
	DateTime     *string       `json:"date_time,omitempty"`
	TimeInterval *TimeInterval `json:"time_interval,omitempty"`
}

// MarshalJSON encodes the frame as either date_time or time_interval.
func (f TimeFrame) MarshalJSON() ([]byte, error) {
	var out timeFrameJSON
	if f.instant != nil {
		s := f.instant.Format(time.RFC3339Nano)
		out.DateTime = &s
	}
	out.TimeInterval = f.interval
	return json.Marshal(out)
}

var errUnsupportedDurationUnit = errors.New("unsupported duration unit")

var durationUnits = map[DurationUnit]time.Duration{
	Millisecond: time.Millisecond,
	Second:      time.Second,
	Minute:      time.Minute,
	Hour:        time.Hour,
	Day:         24 * time.Hour,
}

// ToDuration converts a duration value into a time.Duration for timestamp arithmetic.
func ToDuration(u DurationValue) (time.Duration, error) {
	per, ok := durationUnits[u.Unit]
	if !ok {
		return 0, fmt.Errorf("%w: %q", errUnsupportedDurationUnit, string(u.Unit))
	}
	nanos := u.Value.Mul(decimal.NewFromInt(int64(per)))
	return time.Duration(nanos.IntPart()), nil
}
