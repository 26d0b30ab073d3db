package tltime

import (
	"math"
	"testing"
	"time"
)

func TestIntervalMillis(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  RepeatConfig
		want EpochMillis
	}{
		{"minutes", RepeatConfig{FrequencyMinutes, 5}, 5 * 60_000},
		{"hours", RepeatConfig{FrequencyHours, 2}, 2 * 3_600_000},
		{"daily", RepeatConfig{FrequencyDaily, 1}, 86_400_000},
		{"weekly", RepeatConfig{FrequencyWeekly, 1}, 7 * 86_400_000},
		{"monthly", RepeatConfig{FrequencyMonthly, 1}, 30 * 86_400_000},
		{"yearly", RepeatConfig{FrequencyYearly, 1}, 365 * 86_400_000},
		{"zero interval coerced to 1", RepeatConfig{FrequencyDaily, 0}, 86_400_000},
		{"negative interval coerced to 1", RepeatConfig{FrequencyDaily, -3}, 86_400_000},
		{"unknown frequency falls back to daily", RepeatConfig{"Bogus", 1}, 86_400_000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := IntervalMillis(c.cfg); got != c.want {
				t.Errorf("IntervalMillis(%+v) = %d, want %d", c.cfg, got, c.want)
			}
		})
	}
}

func TestSubSaturates(t *testing.T) {
	t.Parallel()
	if got := EpochMillis(10).Sub(EpochMillis(3)); got != 7 {
		t.Errorf("Sub = %d, want 7", got)
	}
	// Overflow toward +inf: now (max) minus a very negative past.
	got := maxEpoch.Sub(EpochMillis(-1000))
	if got != maxEpoch {
		t.Errorf("Sub overflow (positive) = %d, want %d", got, maxEpoch)
	}
	// Overflow toward -inf: a very negative now minus a large positive past.
	got = minEpoch.Sub(EpochMillis(1000))
	if got != minEpoch {
		t.Errorf("Sub overflow (negative) = %d, want %d", got, minEpoch)
	}
}

func TestWeekdayAndMinuteOfDay(t *testing.T) {
	t.Parallel()
	// 2024-01-01 is a Monday; 14:30 UTC = 870 minutes since midnight.
	ts := FromTime(time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC))
	if Weekday(ts) != time.Monday {
		t.Errorf("Weekday = %v, want Monday", Weekday(ts))
	}
	if MinuteOfDay(ts) != 14*60+30 {
		t.Errorf("MinuteOfDay = %d, want %d", MinuteOfDay(ts), 14*60+30)
	}
	if ShortWeekday(time.Monday) != "Mon" {
		t.Errorf("ShortWeekday(Monday) = %q, want Mon", ShortWeekday(time.Monday))
	}
}

func TestNowRoundTrip(t *testing.T) {
	t.Parallel()
	t1 := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	e := FromTime(t1)
	t2 := e.Time()
	if !t1.Equal(t2) {
		t.Errorf("round trip mismatch: %v != %v", t1, t2)
	}
	if math.Abs(float64(int64(e))) == 0 && !t1.IsZero() {
		t.Fatalf("unexpected zero epoch for non-zero time")
	}
}
