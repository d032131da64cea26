package model

import (
	"fmt"
	"time"
)

// Frequency is the kind of recurrence a pattern follows.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// ParseFrequency converts the wire representation of a frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly:
		return Frequency(s), nil
	}
	return "", &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", s)}
}

// Pattern describes when a template recurs. A Pattern is validated once at
// template construction; downstream date arithmetic assumes it is valid.
type Pattern struct {
	Frequency Frequency
	Interval  int

	// DayOfMonth pins monthly/quarterly occurrences to a fixed day (1-28).
	DayOfMonth *int

	// DayOfWeek pins weekly/biweekly occurrences to a fixed weekday.
	DayOfWeek *time.Weekday
}

// Validate checks the pattern's parameters. Biweekly requires interval 1:
// the cadence is a fixed two-week step, so any other interval would be
// silently meaningless.
func (p Pattern) Validate() error {
	switch p.Frequency {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly:
	default:
		return &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", p.Frequency)}
	}
	if p.Interval < 1 {
		return &ValidationError{Field: "interval", Reason: "must be at least 1"}
	}
	if p.Frequency == FrequencyBiweekly && p.Interval != 1 {
		return &ValidationError{Field: "interval", Reason: "biweekly patterns use a fixed two-week step; interval must be 1"}
	}
	if p.DayOfMonth != nil {
		if p.Frequency != FrequencyMonthly && p.Frequency != FrequencyQuarterly {
			return &ValidationError{Field: "day_of_month", Reason: "only valid for monthly and quarterly patterns"}
		}
		if *p.DayOfMonth < 1 || *p.DayOfMonth > 28 {
			return &ValidationError{Field: "day_of_month", Reason: "must be between 1 and 28"}
		}
	}
	if p.DayOfWeek != nil {
		if p.Frequency != FrequencyWeekly && p.Frequency != FrequencyBiweekly {
			return &ValidationError{Field: "day_of_week", Reason: "only valid for weekly and biweekly patterns"}
		}
		if *p.DayOfWeek < time.Sunday || *p.DayOfWeek > time.Saturday {
			return &ValidationError{Field: "day_of_week", Reason: "must be a valid weekday"}
		}
	}
	return nil
}
