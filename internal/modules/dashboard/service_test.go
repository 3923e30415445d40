package dashboard

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeRangeDefaults(t *testing.T) {
	t.Parallel()

	from, to := NormalizeRange(time.Time{}, time.Time{})
	if days := int(to.Sub(from).Hours()/24) + 1; days != 30 {
		t.Errorf("default range spans %d days, want 30", days)
	}
}

func TestNormalizeRangeInverted(t *testing.T) {
	t.Parallel()

	from, to := NormalizeRange(date(2026, 8, 20), date(2026, 8, 10))
	if from.After(to) {
		t.Errorf("range still inverted: %v .. %v", from, to)
	}
	if !from.Equal(date(2026, 8, 10)) || !to.Equal(date(2026, 8, 20)) {
		t.Errorf("range = %v .. %v", from, to)
	}
}

func TestNormalizeRangeCapsAtOneYear(t *testing.T) {
	t.Parallel()

	from, to := NormalizeRange(date(2020, 1, 1), date(2026, 8, 1))
	if to.Sub(from) > 366*24*time.Hour {
		t.Errorf("range not capped: %v .. %v", from, to)
	}
}

func TestNormalizeRangeTruncatesTime(t *testing.T) {
	t.Parallel()

	from, _ := NormalizeRange(
		time.Date(2026, 8, 10, 15, 30, 2, 0, time.UTC),
		time.Date(2026, 8, 12, 1, 0, 0, 0, time.UTC))
	if from.Hour() != 0 || from.Minute() != 0 {
		t.Errorf("from not truncated to midnight: %v", from)
	}
}

func TestEmptySeries(t *testing.T) {
	t.Parallel()

	series := emptySeries(date(2026, 8, 1), date(2026, 8, 5))
	if len(series) != 5 {
		t.Fatalf("series length = %d, want 5", len(series))
	}
	if series[0].Date != "2026-08-01" || series[4].Date != "2026-08-05" {
		t.Errorf("series endpoints = %s .. %s", series[0].Date, series[4].Date)
	}

	single := emptySeries(date(2026, 8, 1), date(2026, 8, 1))
	if len(single) != 1 {
		t.Errorf("single-day series length = %d, want 1", len(single))
	}
}
