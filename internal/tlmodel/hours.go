package tlmodel

import (
	"encoding/json"
	"strconv"
	"strings"
)

// hoursWire is the on-disk shape of Place.hours described in spec.md §6:
//
//	{ "mode": "always_open" | "always_closed" | "custom",
//	  "schedule"?: { "Mon": ["09:00-17:00", ...], ... } }
type hoursWire struct {
	Mode     string              `json:"mode"`
	Schedule map[string][]string `json:"schedule,omitempty"`
}

// ParseOpenHours decodes the embedded JSON blob. Unknown/invalid JSON is
// not an error here: a failed parse returns ok=false together with a safe
// AlwaysOpen value, so the result fails open (spec.md §4.5 step 2).
func ParseOpenHours(raw []byte) (OpenHours, bool) {
	var w hoursWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return OpenHours{Mode: OpenHoursAlwaysOpen}, false
	}

	oh := OpenHours{}
	switch OpenHoursMode(w.Mode) {
	case OpenHoursAlwaysOpen:
		oh.Mode = OpenHoursAlwaysOpen
	case OpenHoursAlwaysClosed:
		oh.Mode = OpenHoursAlwaysClosed
	case OpenHoursCustom:
		oh.Mode = OpenHoursCustom
		oh.Schedule = make(map[string][]TimeRange, len(w.Schedule))
		for day, ranges := range w.Schedule {
			for _, r := range ranges {
				tr, ok := parseTimeRange(r)
				if !ok {
					return OpenHours{Mode: OpenHoursAlwaysOpen}, false
				}
				oh.Schedule[day] = append(oh.Schedule[day], tr)
			}
		}
	default:
		return OpenHours{Mode: OpenHoursAlwaysOpen}, false
	}
	return oh, true
}

// MarshalOpenHours encodes an OpenHours value back to the wire JSON shape.
func MarshalOpenHours(oh OpenHours) ([]byte, error) {
	w := hoursWire{Mode: string(oh.Mode)}
	if oh.Mode == OpenHoursCustom {
		w.Schedule = make(map[string][]string, len(oh.Schedule))
		for day, ranges := range oh.Schedule {
			for _, r := range ranges {
				w.Schedule[day] = append(w.Schedule[day], formatTimeRange(r))
			}
		}
	}
	return json.Marshal(w)
}

func parseTimeRange(s string) (TimeRange, bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return TimeRange{}, false
	}
	start, ok1 := parseHHMM(parts[0])
	end, ok2 := parseHHMM(parts[1])
	if !ok1 || !ok2 {
		return TimeRange{}, false
	}
	return TimeRange{StartMinute: start, EndMinute: end}, true
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func formatTimeRange(r TimeRange) string {
	return formatHHMM(r.StartMinute) + "-" + formatHHMM(r.EndMinute)
}

func formatHHMM(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	pad := func(n int) string {
		if n < 10 {
			return "0" + strconv.Itoa(n)
		}
		return strconv.Itoa(n)
	}
	return pad(h) + ":" + pad(m)
}
