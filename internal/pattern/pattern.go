// Package pattern computes recurrence due dates. Everything here is pure
// calendar arithmetic on midnight-UTC dates; no storage, no clocks.
package pattern

import (
	"time"

	"github.com/expensaur/backend/internal/model"
)

// NextOccurrence returns the due date following fromDate for the given
// pattern. The pattern is assumed valid (see model.Pattern.Validate);
// day-of-month values beyond a month's length are clamped to its last day
// rather than overflowing into the next month.
func NextOccurrence(p model.Pattern, fromDate time.Time) time.Time {
	from := model.DateOnly(fromDate)

	switch p.Frequency {
	case model.FrequencyWeekly:
		return pinWeekday(from.AddDate(0, 0, 7*p.Interval), p.DayOfWeek)
	case model.FrequencyBiweekly:
		// Fixed two-week cadence; interval is forced to 1 at validation.
		return pinWeekday(from.AddDate(0, 0, 14), p.DayOfWeek)
	case model.FrequencyMonthly:
		return addMonths(from, p.Interval, p.DayOfMonth)
	case model.FrequencyQuarterly:
		return addMonths(from, 3*p.Interval, p.DayOfMonth)
	}
	// Unreachable with a validated pattern.
	return from
}

// pinWeekday rolls the naive next date forward to the first date on or
// after it that falls on the wanted weekday.
func pinWeekday(naive time.Time, want *time.Weekday) time.Time {
	if want == nil {
		return naive
	}
	delta := (int(*want) - int(naive.Weekday()) + 7) % 7
	return naive.AddDate(0, 0, delta)
}

// addMonths advances by n calendar months. The resulting day is the pinned
// day-of-month when set, otherwise the origin's day, clamped in both cases
// to the target month's last valid day (Feb 31 -> Feb 28/29).
func addMonths(from time.Time, n int, pinDay *int) time.Time {
	day := from.Day()
	if pinDay != nil {
		day = *pinDay
	}

	y, m, _ := from.Date()
	anchor := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	if last := daysInMonth(anchor.Year(), anchor.Month()); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month is this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
