// Package visibility computes per-task contextual visibility from place,
// open-hours, and view filter (spec.md §4.5, C4). Grounded on the
// teacher's internal/fs/filter.go view-filtering shape: resolve an
// entity's attributes, then test them against a filter struct, failing
// open on malformed hours data but closed on a place id that no longer
// resolves to anything.
package visibility

import (
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
)

// ViewFilter narrows which tasks are visible by place. A nil PlaceID or
// the literal "All" means no place filtering.
type ViewFilter struct {
	PlaceID *tlmodel.PlaceID
}

const allPlacesFilter = tlmodel.PlaceID("All")

// Result is the outcome of evaluating one task's visibility.
type Result struct {
	EffectivePlaceID tlmodel.PlaceID
	IsOpen           bool
	FilterMatch      bool
	Visible          bool
}

// Evaluate runs spec.md §4.5 steps 1-4 for a single task.
func Evaluate(placeID *tlmodel.PlaceID, places map[tlmodel.PlaceID]*tlmodel.Place, filter ViewFilter, now tltime.EpochMillis) Result {
	effective := tlmodel.AnywherePlaceID
	if placeID != nil {
		effective = *placeID
	}

	isOpen := evaluateOpen(effective, places, now)
	filterMatch := evaluateFilterMatch(effective, places, filter)

	return Result{
		EffectivePlaceID: effective,
		IsOpen:           isOpen,
		FilterMatch:      filterMatch,
		Visible:          isOpen && filterMatch,
	}
}

func evaluateOpen(effective tlmodel.PlaceID, places map[tlmodel.PlaceID]*tlmodel.Place, now tltime.EpochMillis) bool {
	if effective == tlmodel.AnywherePlaceID {
		return true
	}
	place, ok := places[effective]
	if !ok {
		return false // deleted/unknown place: fail-closed
	}
	switch place.Hours.Mode {
	case tlmodel.OpenHoursAlwaysOpen:
		return true
	case tlmodel.OpenHoursAlwaysClosed:
		return false
	case tlmodel.OpenHoursCustom:
		return withinCustomHours(place.Hours, now)
	default:
		return true // invalid/unknown mode: fail-open
	}
}

func withinCustomHours(hours tlmodel.OpenHours, now tltime.EpochMillis) bool {
	day := tltime.ShortWeekday(tltime.Weekday(now))
	minute := tltime.MinuteOfDay(now)
	for _, r := range hours.Schedule[day] {
		if minute >= r.StartMinute && minute < r.EndMinute {
			return true
		}
	}
	return false
}

func evaluateFilterMatch(effective tlmodel.PlaceID, places map[tlmodel.PlaceID]*tlmodel.Place, filter ViewFilter) bool {
	if filter.PlaceID == nil || *filter.PlaceID == allPlacesFilter {
		return true
	}
	filterPlace := *filter.PlaceID
	if effective == filterPlace {
		return true
	}
	if effective == tlmodel.AnywherePlaceID {
		return true
	}
	place, ok := places[filterPlace]
	if !ok {
		return false
	}
	for _, included := range place.IncludedPlaces {
		if included == effective {
			return true
		}
	}
	return false
}
