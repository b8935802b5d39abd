package daycal

import (
	"testing"
	"time"
)

func TestTotalDays(t *testing.T) {
	cases := []struct {
		year int
		want int
	}{
		{2024, 366},
		{2023, 365},
		{2000, 366},
		{1900, 365},
		{2100, 365},
		{2400, 366},
	}
	for _, c := range cases {
		if got := TotalDays(c.year); got != c.want {
			t.Errorf("TotalDays(%d) = %d, want %d", c.year, got, c.want)
		}
		if got := IsLeapYear(c.year); got != (c.want == 366) {
			t.Errorf("IsLeapYear(%d) = %v, want %v", c.year, got, c.want == 366)
		}
	}
}

func TestDayOfYear(t *testing.T) {
	d := time.Date(2024, 12, 6, 10, 0, 0, 0, time.UTC)
	if got := DayOfYear(d); got != 341 {
		t.Errorf("DayOfYear(2024-12-06) = %d, want 341", got)
	}
	first := time.Date(2023, 1, 1, 23, 59, 0, 0, time.UTC)
	if got := DayOfYear(first); got != 1 {
		t.Errorf("DayOfYear(2023-01-01) = %d, want 1", got)
	}
	last := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	if got := DayOfYear(last); got != 366 {
		t.Errorf("DayOfYear(2024-12-31) = %d, want 366", got)
	}
}

func TestContentForDay_CyclicWrap(t *testing.T) {
	table := []string{"a", "b", "c"}
	if got := ContentForDay(1, table); got != "a" {
		t.Errorf("ContentForDay(1) = %q, want %q", got, "a")
	}
	if got := ContentForDay(len(table)+1, table); got != "a" {
		t.Errorf("ContentForDay(len+1) = %q, want %q", got, "a")
	}
	if got := ContentForDay(3, table); got != "c" {
		t.Errorf("ContentForDay(3) = %q, want %q", got, "c")
	}
	if got := ContentForDay(366, table); got != table[(366-1)%3] {
		t.Errorf("ContentForDay(366) = %q", got)
	}
}

func TestContentForDay_EmptyTable(t *testing.T) {
	if got := ContentForDay(5, nil); got != "" {
		t.Errorf("expected empty string for empty table, got %q", got)
	}
}

func TestUnlockBoundaries(t *testing.T) {
	loc := time.FixedZone("TST", -5*3600)
	now := time.Date(2024, 6, 15, 0, 0, 1, 0, loc)

	past := time.Date(2024, 6, 14, 23, 0, 0, 0, loc)
	if IsFutureAt(past, now) {
		t.Error("yesterday must not be future")
	}
	if !IsUnlockedAt(past, now) {
		t.Error("yesterday must be unlocked")
	}

	// Just past local midnight: today unlocks immediately.
	today := time.Date(2024, 6, 15, 18, 0, 0, 0, loc)
	if IsFutureAt(today, now) {
		t.Error("later today must not be future")
	}
	if !IsTodayAt(today, now) {
		t.Error("later today must still be today")
	}

	tomorrow := time.Date(2024, 6, 16, 0, 0, 0, 0, loc)
	if !IsFutureAt(tomorrow, now) {
		t.Error("tomorrow must be future")
	}
	if IsUnlockedAt(tomorrow, now) {
		t.Error("tomorrow must be locked")
	}
}

func TestWallClockForms(t *testing.T) {
	now := time.Now()

	parsed, err := ParseDateKey(DateKey(now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsToday(parsed) {
		t.Error("today's key must parse to today")
	}
	if !IsUnlocked(parsed) {
		t.Error("today must be unlocked")
	}
	if IsFuture(parsed) {
		t.Error("today must not be future")
	}

	nextYear := now.AddDate(1, 0, 0)
	if !IsFuture(nextYear) {
		t.Error("a date a year out must be future")
	}
	if IsUnlocked(nextYear) {
		t.Error("a date a year out must be locked")
	}

	yesterday := now.AddDate(0, 0, -1)
	if IsFuture(yesterday) || !IsUnlocked(yesterday) || IsToday(yesterday) {
		t.Error("yesterday must be unlocked, past, and not today")
	}
}

func TestDateKeyRoundTrip(t *testing.T) {
	d := time.Date(2024, 12, 6, 15, 30, 0, 0, time.UTC)
	key := DateKey(d)
	if key != "2024-12-06" {
		t.Fatalf("DateKey = %q, want %q", key, "2024-12-06")
	}
	parsed, err := ParseDateKeyIn(key, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if DayOfYear(parsed) != 341 {
		t.Errorf("DayOfYear(parsed) = %d, want 341", DayOfYear(parsed))
	}
}

func TestParseDateKey_Invalid(t *testing.T) {
	if _, err := ParseDateKey("06/12/2024"); err == nil {
		t.Error("expected error for non-canonical key")
	}
	if _, err := ParseDateKeyIn("06/12/2024", time.UTC); err == nil {
		t.Error("expected error for non-canonical key")
	}
}

func TestContentFor_Deterministic(t *testing.T) {
	a := ContentFor(41)
	b := ContentFor(41)
	if a != b {
		t.Errorf("ContentFor not deterministic: %+v vs %+v", a, b)
	}
	if a.Quote == "" || a.Prompt == "" || a.Affirmation == "" {
		t.Errorf("ContentFor(41) returned empty fields: %+v", a)
	}
}
