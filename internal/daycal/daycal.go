// Package daycal implements the calendar model behind daily reflections:
// day-of-year math, leap-year handling, midnight-aligned unlock checks, and
// deterministic cyclic lookups into the fixed content tables.
package daycal

import (
	"fmt"
	"time"
)

// DateKeyLayout is the canonical date key format used as the `d` tag of
// reflection records.
const DateKeyLayout = "2006-01-02"

// DayOfYear returns the 1-based ordinal day of t within its year (1..366).
func DayOfYear(t time.Time) int {
	return t.YearDay()
}

// IsLeapYear reports whether year is a Gregorian leap year: divisible by 4
// and not by 100, or divisible by 400.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// TotalDays returns the number of days in year: 366 for leap years, else 365.
func TotalDays(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// IsToday reports whether t falls on the same local calendar date as the
// current time.
func IsToday(t time.Time) bool {
	return IsTodayAt(t, time.Now())
}

// IsTodayAt reports whether t falls on the same calendar date as now.
func IsTodayAt(t, now time.Time) bool {
	return midnight(t).Equal(midnight(now))
}

// IsFuture reports whether t falls on a local calendar date after today.
func IsFuture(t time.Time) bool {
	return IsFutureAt(t, time.Now())
}

// IsFutureAt reports whether t falls on a calendar date after now's.
// A day stops being future the instant local midnight passes, independent of
// any prior session state.
func IsFutureAt(t, now time.Time) bool {
	return midnight(t).After(midnight(now))
}

// IsUnlocked reports whether the reflection page for t may be written:
// today and every past date are unlocked, future dates are not.
func IsUnlocked(t time.Time) bool {
	return IsUnlockedAt(t, time.Now())
}

// IsUnlockedAt is IsUnlocked against an explicit clock.
func IsUnlockedAt(t, now time.Time) bool {
	return !IsFutureAt(t, now)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ContentForDay returns the table entry for the given 1-based day of year,
// wrapping cyclically so the mapping stays deterministic regardless of the
// table size or the current year's length.
func ContentForDay(dayOfYear int, table []string) string {
	if len(table) == 0 {
		return ""
	}
	idx := (dayOfYear - 1) % len(table)
	if idx < 0 {
		idx += len(table)
	}
	return table[idx]
}

// DateKey formats t as the canonical YYYY-MM-DD key.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key in the local time zone, matching how
// unlock checks interpret dates.
func ParseDateKey(key string) (time.Time, error) {
	return ParseDateKeyIn(key, time.Local)
}

// ParseDateKeyIn parses a YYYY-MM-DD key in the given location.
func ParseDateKeyIn(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("daycal: parse date key %q: %w", key, err)
	}
	return t, nil
}

// DayContent bundles the deterministic content for one day of the year.
type DayContent struct {
	Day         int    `json:"day"`
	Quote       string `json:"quote"`
	Prompt      string `json:"prompt"`
	Affirmation string `json:"affirmation"`
}

// ContentFor returns the quote, prompt, and affirmation assigned to the
// given day of year.
func ContentFor(dayOfYear int) DayContent {
	return DayContent{
		Day:         dayOfYear,
		Quote:       ContentForDay(dayOfYear, Quotes),
		Prompt:      ContentForDay(dayOfYear, Prompts),
		Affirmation: ContentForDay(dayOfYear, Affirmations),
	}
}
