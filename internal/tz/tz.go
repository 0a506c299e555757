// Package tz normalizes client-supplied date strings into UTC instants and
// projects stored UTC instants back into a named timezone for display.
// Reminders always persist ScheduledAt in UTC; this package is the only
// place wall-clock conversion happens.
package tz

import (
	"fmt"
	"regexp"
	"time"

	"github.com/solstice-io/solstice/internal/apperr"
)

var dateOnlyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// datetimeLayouts are tried in order for inputs that are not date-only.
// Layouts without a zone offset are interpreted in the requested timezone.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// DayParts overrides the wall-clock parts applied to a date-only input.
type DayParts struct {
	Hour        int
	Minute      int
	Second      int
	Millisecond int
}

// StartOfDay and EndOfDay are the inclusive bounds used by range filters:
// a "from" date means 00:00:00.000 local, a "to" date 23:59:59.999 local.
var (
	StartOfDay = DayParts{}
	EndOfDay   = DayParts{Hour: 23, Minute: 59, Second: 59, Millisecond: 999}
)

// ParseToUTC parses a date-only (YYYY-MM-DD) or date-time string in the
// given timezone and returns the corresponding UTC instant. Date-only
// inputs default to local midnight unless parts overrides the wall-clock
// components. Returns apperr.ErrInvalidTimezone for an unknown zone and
// apperr.ErrInvalidDate for an unparseable input.
func ParseToUTC(input, zone string, parts *DayParts) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", apperr.ErrInvalidTimezone, zone)
	}

	if dateOnlyRe.MatchString(input) {
		day, err := time.ParseInLocation("2006-01-02", input, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", apperr.ErrInvalidDate, input)
		}
		p := StartOfDay
		if parts != nil {
			p = *parts
		}
		local := time.Date(day.Year(), day.Month(), day.Day(),
			p.Hour, p.Minute, p.Second, p.Millisecond*int(time.Millisecond), loc)
		return local.UTC(), nil
	}

	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", apperr.ErrInvalidDate, input)
}

// Local is the display projection of a UTC instant in a timezone.
type Local struct {
	LocalDate            string `json:"localDate"`
	LocalTime            string `json:"localTime"`
	LocalDateTimeISO     string `json:"localDateTimeISO"`
	LocalDateTimeDisplay string `json:"localDateTimeDisplay"`
}

// ProjectToLocal renders a UTC instant in the given timezone. Display is
// best-effort: an unknown zone falls back to UTC rather than failing.
func ProjectToLocal(t time.Time, zone string) Local {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return Local{
		LocalDate:            local.Format("2006-01-02"),
		LocalTime:            local.Format("15:04"),
		LocalDateTimeISO:     local.Format(time.RFC3339),
		LocalDateTimeDisplay: local.Format("Jan 2, 2006 3:04 PM"),
	}
}

// Ensure returns name when it is a recognized IANA zone, UTC otherwise.
// It never fails; callers that need a hard error use ParseToUTC.
func Ensure(name string) string {
	if name == "" {
		return "UTC"
	}
	if _, err := time.LoadLocation(name); err != nil {
		return "UTC"
	}
	return name
}
