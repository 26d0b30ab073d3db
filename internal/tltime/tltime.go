// Package tltime provides the monotonic timestamp type and recurrence/date
// arithmetic the priority engine shares (spec.md §4.3 C2). Everything here
// is pure and deterministic: the engine computes in UTC regardless of input
// timezone, and recurrence intervals use the fixed-length approximations
// spec.md requires (30-day months, 365-day years) rather than a calendar
// library's variable-length ones.
package tltime

import "time"

// EpochMillis is a signed 64-bit epoch-millisecond timestamp, the wire and
// in-memory representation for every persisted instant in a document.
type EpochMillis int64

// Now returns the current instant as EpochMillis.
func Now() EpochMillis {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to EpochMillis.
func FromTime(t time.Time) EpochMillis {
	return EpochMillis(t.UnixMilli())
}

// Time converts back to a time.Time in UTC.
func (e EpochMillis) Time() time.Time {
	return time.UnixMilli(int64(e)).UTC()
}

// Sub returns e - other, saturating at the int64 bounds instead of
// overflowing — spec.md §4.3 requires saturating subtraction for now-minus-past.
func (e EpochMillis) Sub(other EpochMillis) EpochMillis {
	a, b := int64(e), int64(other)
	d := a - b
	// Overflow can only happen when a and b have opposite signs.
	if b > 0 && a < int64(minEpoch)+b {
		return EpochMillis(minEpoch)
	}
	if b < 0 && a > int64(maxEpoch)+b {
		return EpochMillis(maxEpoch)
	}
	return EpochMillis(d)
}

const (
	minEpoch = EpochMillis(-1 << 63)
	maxEpoch = EpochMillis(1<<63 - 1)
)

// Frequency is a repeat_config.frequency variant.
type Frequency string

const (
	FrequencyMinutes Frequency = "Minutes"
	FrequencyHours   Frequency = "Hours"
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

const (
	minuteMs = EpochMillis(60_000)
	hourMs   = 60 * minuteMs
	dayMs    = 24 * hourMs
	weekMs   = 7 * dayMs
	monthMs  = 30 * dayMs
	yearMs   = 365 * dayMs
)

// RepeatConfig mirrors Task.repeat_config: a frequency unit times an
// interval count.
type RepeatConfig struct {
	Frequency Frequency
	Interval  int
}

// IntervalMillis converts (frequency, interval) into a duration in
// milliseconds per spec.md §4.3. Unknown frequencies and non-positive
// intervals fall back to a single day, matching the healer's general
// policy of coercing malformed enum/scalar data to a safe default rather
// than propagating an error through a pure computation.
func IntervalMillis(cfg RepeatConfig) EpochMillis {
	interval := cfg.Interval
	if interval < 1 {
		interval = 1
	}
	var unit EpochMillis
	switch cfg.Frequency {
	case FrequencyMinutes:
		unit = minuteMs
	case FrequencyHours:
		unit = hourMs
	case FrequencyDaily:
		unit = dayMs
	case FrequencyWeekly:
		unit = weekMs
	case FrequencyMonthly:
		unit = monthMs
	case FrequencyYearly:
		unit = yearMs
	default:
		unit = dayMs
	}
	return unit * EpochMillis(interval)
}

// Weekday returns the UTC weekday for a timestamp, ignoring any timezone
// the caller might otherwise infer — the engine always computes in UTC.
func Weekday(e EpochMillis) time.Weekday {
	return e.Time().Weekday()
}

// MinuteOfDay returns the number of minutes elapsed since UTC midnight
// on the day containing e, in [0, 1440).
func MinuteOfDay(e EpochMillis) int {
	t := e.Time()
	return t.Hour()*60 + t.Minute()
}

// ShortWeekday renders the 3-letter English weekday name used by the
// place-hours JSON schema ("Sun".."Sat"), per spec.md §6.
func ShortWeekday(w time.Weekday) string {
	return [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}[w]
}
