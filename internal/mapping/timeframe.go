package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
)

const (
	dateLayout = "2006-01-02"
	// LocalDateTimeLayout is an ISO local date-time without offset.
	LocalDateTimeLayout = "2006-01-02T15:04:05"
)

// FixedZone returns UTC for a zero offset and an unnamed fixed zone otherwise.
func FixedZone(offsetSeconds int) *time.Location {
	if offsetSeconds == 0 {
		return time.UTC
	}
	return time.FixedZone("", offsetSeconds)
}

// OffsetFromMillis builds a fixed zone from a millisecond UTC offset.
func OffsetFromMillis(millis int64) *time.Location {
	return FixedZone(int(millis / 1000))
}

// ParseOffset accepts "Z", "+08", "+0800", "+08:00" and their negative forms.
func ParseOffset(raw string) (*time.Location, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "Z" || s == "z" {
		return time.UTC, nil
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	default:
		return nil, fmt.Errorf("offset %q: missing sign", raw)
	}
	s = strings.ReplaceAll(s, ":", "")
	var hours, minutes int
	var err error
	switch len(s) {
	case 1, 2:
		hours, err = strconv.Atoi(s)
	case 3, 4:
		hours, err = strconv.Atoi(s[:len(s)-2])
		if err == nil {
			minutes, err = strconv.Atoi(s[len(s)-2:])
		}
	default:
		return nil, fmt.Errorf("offset %q: unsupported length", raw)
	}
	if err != nil {
		return nil, fmt.Errorf("offset %q: %w", raw, err)
	}
	if hours > 18 || minutes > 59 {
		return nil, fmt.Errorf("offset %q: out of range", raw)
	}
	return FixedZone(sign * (hours*3600 + minutes*60)), nil
}

// LoadZone resolves an IANA name, a "GMT-0700" style label or a bare offset.
func LoadZone(name string) (*time.Location, error) {
	s := strings.TrimSpace(name)
	switch {
	case s == "" || s == "UTC" || s == "GMT":
		return time.UTC, nil
	case strings.HasPrefix(s, "GMT") || strings.HasPrefix(s, "UTC"):
		return ParseOffset(s[3:])
	case s[0] == '+' || s[0] == '-':
		return ParseOffset(s)
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("zone %q: %w", name, err)
	}
	return loc, nil
}

// ZoneFromNode reads a zone given either as an offset in seconds or as a zone name.
func ZoneFromNode(node jsonnode.Node) (*time.Location, error) {
	if node.IsNull() {
		return nil, fmt.Errorf("zone missing")
	}
	if name, ok := node.Value().(string); ok {
		return LoadZone(name)
	}
	seconds, ok := node.Int64()
	if !ok {
		return nil, fmt.Errorf("zone %v: unsupported value", node.Value())
	}
	return FixedZone(int(seconds)), nil
}

// ZoneFromProfile reads a millisecond offset from a profile node.
func ZoneFromProfile(profile jsonnode.Node, path string) (*time.Location, error) {
	millis, err := profile.RequiredInt64(path)
	if err != nil {
		return nil, err
	}
	return OffsetFromMillis(millis), nil
}

// ParseDate reads a yyyy-MM-dd date at midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
}

// CombineDateTime joins a date with an HH:mm or HH:mm:ss clock in loc.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock = strings.TrimSpace(clock)
	layout := dateLayout + " 15:04:05"
	if strings.Count(clock, ":") == 1 {
		layout = dateLayout + " 15:04"
	}
	return time.ParseInLocation(layout, strings.TrimSpace(date)+" "+clock, loc)
}

// ParseLocalDateTime reads an ISO local date-time, with optional fraction, in loc.
func ParseLocalDateTime(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", strings.TrimSpace(raw), loc)
}

// ParseOffsetDateTime reads an RFC 3339 timestamp keeping its recorded offset.
func ParseOffsetDateTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	_, offset := t.Zone()
	return t.In(FixedZone(offset)), nil
}

// EpochSeconds converts Unix seconds to a time in loc, UTC when loc is nil.
func EpochSeconds(sec int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(sec, 0).In(loc)
}

// LocalEpochSeconds reinterprets seconds that encode local wall time as if it were UTC.
func LocalEpochSeconds(sec int64, loc *time.Location) time.Time {
	wall := time.Unix(sec, 0).UTC()
	if loc == nil {
		return wall
	}
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
}

// EpochNanos converts a nanosecond epoch string to UTC.
func EpochNanos(raw string) (time.Time, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("epoch nanos %q: %w", raw, err)
	}
	return time.Unix(0, n).UTC(), nil
}

// WholeDayOf is the frame from local midnight of t lasting one day.
func WholeDayOf(t time.Time) schema.TimeFrame {
	return schema.WholeDay(t.Year(), t.Month(), t.Day(), t.Location())
}

// StartAndEnd returns an instant when both bounds are equal and an interval otherwise.
func StartAndEnd(start, end time.Time) schema.TimeFrame {
	if start.Equal(end) {
		return schema.AtInstant(start)
	}
	return schema.OverInterval(schema.IntervalOfStartAndEnd(start, end))
}

// StartAndDuration builds an interval frame.
func StartAndDuration(start time.Time, d schema.DurationValue) schema.TimeFrame {
	return schema.OverInterval(schema.IntervalOfStartAndDuration(start, d))
}

// EndAndDuration builds an interval frame anchored at its end.
func EndAndDuration(end time.Time, d schema.DurationValue) schema.TimeFrame {
	return schema.OverInterval(schema.IntervalOfEndAndDuration(end, d))
}

// Framed returns the shared measure fields for a frame.
func Framed(f schema.TimeFrame) schema.Common {
	return schema.Common{TimeFrame: schema.WithTimeFrame(f)}
}

// Seconds renders d as a whole-second duration value.
func Seconds(d time.Duration) schema.DurationValue {
	return schema.IntValue(int64(d/time.Second), schema.Second)
}

// ParseISODuration reads an ISO 8601 duration of days and clock time, such as
// "P1DT2H30M" or "PT45M12.5S". Years, months and weeks are rejected since
// their length depends on the calendar.
func ParseISODuration(raw string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	rest, ok := strings.CutPrefix(s, "P")
	if !ok || rest == "" {
		return 0, fmt.Errorf("duration %q: expected ISO 8601 form", raw)
	}
	datePart, clockPart, hasClock := strings.Cut(rest, "T")
	if hasClock && clockPart == "" {
		return 0, fmt.Errorf("duration %q: empty time part", raw)
	}
	var total time.Duration
	if datePart != "" {
		days, ok := strings.CutSuffix(datePart, "D")
		n, err := strconv.ParseInt(days, 10, 64)
		if !ok || err != nil {
			return 0, fmt.Errorf("duration %q: only days are supported before T", raw)
		}
		total += time.Duration(n) * 24 * time.Hour
	}
	units := map[byte]time.Duration{'H': time.Hour, 'M': time.Minute, 'S': time.Second}
	for clockPart != "" {
		i := strings.IndexAny(clockPart, "HMS")
		if i <= 0 {
			return 0, fmt.Errorf("duration %q: malformed time part", raw)
		}
		unit := clockPart[i]
		value, err := strconv.ParseFloat(clockPart[:i], 64)
		if err != nil || (unit != 'S' && strings.Contains(clockPart[:i], ".")) {
			return 0, fmt.Errorf("duration %q: malformed %c component", raw, unit)
		}
		total += time.Duration(value * float64(units[unit]))
		clockPart = clockPart[i+1:]
	}
	return total, nil
}
