// Package retrieval drives provider requests: it picks the query shape, walks
// pagination, fans out per-day requests and aggregates the mapped result.
package retrieval

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/domain/schema"
)

const dayLayout = "2006-01-02"

// Request is one logical retrieval for a user, provider and measure over a
// calendar-day range. Start and End are inclusive and interpreted in UTC.
type Request struct {
	Provider    string             `validate:"required"`
	Measure     schema.MeasureType `validate:"required,measure"`
	UserID      string             `validate:"required"`
	Start       time.Time          `validate:"required"`
	End         time.Time          `validate:"required,gtefield=Start"`
	Normalize   bool
	FineGrained bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("measure", func(fl validator.FieldLevel) bool {
		_, ok := schema.MeasureType(fl.Field().String()).Schema()
		return ok
	}); err != nil {
		panic(err)
	}
	return v
}

// withDefaults truncates the bounds to UTC days and fills missing ones with
// yesterday and tomorrow relative to now.
func (r Request) withDefaults(now time.Time) Request {
	today := day(now)
	if r.Start.IsZero() {
		r.Start = today.AddDate(0, 0, -1)
	} else {
		r.Start = day(r.Start)
	}
	if r.End.IsZero() {
		r.End = today.AddDate(0, 0, 1)
	} else {
		r.End = day(r.End)
	}
	r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
	r.UserID = strings.TrimSpace(r.UserID)
	return r
}

func (r Request) validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errs.New(r.Provider, errs.KindInvalid, errs.WithMessage("invalid request"), errs.WithCause(err))
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field()+":"+fe.Tag())
	}
	return errs.New(r.Provider, errs.KindInvalid,
		errs.WithMeasure(string(r.Measure)),
		errs.WithMessage("invalid request"),
		errs.WithField("fields", strings.Join(fields, ",")),
		errs.WithCause(err))
}

// Days lists the calendar days in [Start, End].
func (r Request) Days() []time.Time {
	var days []time.Time
	for d := day(r.Start); !d.After(day(r.End)); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// window is the date span of one logical upstream request.
type window struct {
	start time.Time
	end   time.Time
	// perDay marks single-day windows of a PER_DAY fan-out.
	perDay bool
}

func (w window) label() string {
	if w.start.Equal(w.end) {
		return w.start.Format(dayLayout)
	}
	return w.start.Format(dayLayout) + ".." + w.end.Format(dayLayout)
}

// vars renders the request variables for w. Epoch bounds run from the start of
// the first day to the start of the day after the last one.
func (w window) vars() map[string]string {
	endExclusive := w.end.AddDate(0, 0, 1)
	return map[string]string{
		"date":        w.start.Format(dayLayout),
		"startDate":   w.start.Format(dayLayout),
		"endDate":     w.end.Format(dayLayout),
		"startEpoch":  itoa(w.start.Unix()),
		"endEpoch":    itoa(endExclusive.Unix()),
		"startMillis": itoa(w.start.UnixMilli()),
		"endMillis":   itoa(endExclusive.UnixMilli()),
		"startNanos":  itoa(w.start.UnixNano()),
		"endNanos":    itoa(endExclusive.UnixNano()),
		"startTime":   w.start.UTC().Format(time.RFC3339),
		"endTime":     endExclusive.UTC().Format(time.RFC3339),
	}
}
