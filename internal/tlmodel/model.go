// Package tlmodel defines the persisted entity shapes of a TaskLens
// document: Task, Place, DocumentState, and their wire-adjacent enums
// (spec.md §3). Struct shape and the typed/defaulted enum idiom are
// grounded on the teacher's internal/api/types.go (Issue/State/Label) and
// the two-pass known/unknown field split in internal/marshal/frontmatter.go,
// generalized here into Task.Extra.
package tlmodel

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tasklens/tasklens/internal/tltime"
)

// TaskID and PlaceID are opaque UUID-shaped identifiers; equality is value
// equality on the underlying string, stable across merges.
type TaskID string
type PlaceID string

// NewTaskID and NewPlaceID mint a fresh identifier backed by a random UUID.
func NewTaskID() TaskID   { return TaskID(uuid.NewString()) }
func NewPlaceID() PlaceID { return PlaceID(uuid.NewString()) }

// AnywherePlaceID is the reserved identifier used when a task has no
// place_id. It is never an entry in DocumentState.Places.
const AnywherePlaceID PlaceID = "Anywhere"

// Status is the task status enum.
type Status string

const (
	StatusPending Status = "Pending"
	StatusDone    Status = "Done"
)

// ScheduleType is the schedule.type enum.
type ScheduleType string

const (
	ScheduleOnce      ScheduleType = "Once"
	ScheduleRoutinely ScheduleType = "Routinely"
	ScheduleDueDate   ScheduleType = "DueDate"
	ScheduleCalendar  ScheduleType = "Calendar"
)

// Schedule captures the scheduling half of a task: how due_date/lead_time
// are sourced and, for Routinely tasks, when the task was last marked done.
type Schedule struct {
	Type     ScheduleType
	DueDate  *tltime.EpochMillis
	LeadTime tltime.EpochMillis
	LastDone *tltime.EpochMillis
}

// Task is the persisted shape described in spec.md §3.
type Task struct {
	ID            TaskID
	Title         string
	Notes         string
	ParentID      *TaskID
	ChildTaskIDs  []TaskID
	PlaceID       *PlaceID
	Status        Status
	Importance    float64
	CreditInc     float64 // credit_increment, default 0.5
	Credits       float64
	CreditsTS     tltime.EpochMillis // credits_timestamp
	DesiredCredit float64            // desired_credits
	PriorityTS    tltime.EpochMillis // priority_timestamp
	Schedule      Schedule
	Repeat        *tltime.RepeatConfig
	IsSequential  bool
	IsAcked       bool // is_acknowledged
	LastCompleted *tltime.EpochMillis

	// Extra preserves unknown persisted fields verbatim through hydration,
	// per spec.md §9 "dynamic fields" / forward compatibility. The engine
	// never inspects it.
	Extra map[string]json.RawMessage
}

// DefaultCreditIncrement is the spec.md §6 engine-wide constant.
const DefaultCreditIncrement = 0.5

// DefaultImportance is the Task.importance default per spec.md §3.
const DefaultImportance = 0.5

// NewTask returns a task with the defaults spec.md §3 names, inheriting
// credit_increment, place_id, and lead_time from the given parent when one
// is supplied (spec.md §3 "Lifecycle").
func NewTask(id TaskID, title string, parent *Task) Task {
	t := Task{
		ID:         id,
		Title:      title,
		Status:     StatusPending,
		Importance: DefaultImportance,
		CreditInc:  DefaultCreditIncrement,
		Schedule:   Schedule{Type: ScheduleOnce},
	}
	if parent != nil {
		if parent.CreditInc != 0 {
			t.CreditInc = parent.CreditInc
		}
		t.PlaceID = parent.PlaceID
		t.Schedule.LeadTime = parent.Schedule.LeadTime
	}
	return t
}

// OpenHoursMode is the Place.hours.mode enum.
type OpenHoursMode string

const (
	OpenHoursAlwaysOpen   OpenHoursMode = "always_open"
	OpenHoursAlwaysClosed OpenHoursMode = "always_closed"
	OpenHoursCustom       OpenHoursMode = "custom"
)

// TimeRange is an inclusive-start, exclusive-end "HH:MM-HH:MM" range,
// expressed in minutes since midnight.
type TimeRange struct {
	StartMinute int
	EndMinute   int
}

// OpenHours is the decoded form of Place.hours' embedded JSON (spec.md §6).
type OpenHours struct {
	Mode     OpenHoursMode
	Schedule map[string][]TimeRange // keyed by short weekday name, e.g. "Mon"
}

// Place is the persisted shape described in spec.md §3.
type Place struct {
	ID             PlaceID
	Name           string
	Hours          OpenHours
	IncludedPlaces []PlaceID
}

// DocumentState is the full persisted document (spec.md §3).
type DocumentState struct {
	Tasks       map[TaskID]*Task
	RootTaskIDs []TaskID
	Places      map[PlaceID]*Place
	DocumentURL *string // metadata.document_url, opaque to the engine
}

// NewDocumentState returns an empty, already-valid document.
func NewDocumentState() *DocumentState {
	return &DocumentState{
		Tasks:  make(map[TaskID]*Task),
		Places: make(map[PlaceID]*Place),
	}
}

// InboxTitle is the reserved root title excluded from balance aggregation
// (spec.md §3 I8, §4.6, GLOSSARY).
const InboxTitle = "Inbox"

// IsInbox reports whether a task is the reserved Inbox root.
func IsInbox(t *Task) bool {
	return t.ParentID == nil && t.Title == InboxTitle
}

// Clone returns a deep-enough copy of the document for use as an
// immutable read snapshot: readers must never observe mutations made by a
// concurrent writer. Slices and the Extra map are copied; Task/Place
// values are copied by value into freshly allocated pointers.
func (d *DocumentState) Clone() *DocumentState {
	out := &DocumentState{
		Tasks:       make(map[TaskID]*Task, len(d.Tasks)),
		RootTaskIDs: append([]TaskID(nil), d.RootTaskIDs...),
		Places:      make(map[PlaceID]*Place, len(d.Places)),
		DocumentURL: d.DocumentURL,
	}
	for id, t := range d.Tasks {
		ct := *t
		ct.ChildTaskIDs = append([]TaskID(nil), t.ChildTaskIDs...)
		if t.ParentID != nil {
			p := *t.ParentID
			ct.ParentID = &p
		}
		if t.PlaceID != nil {
			p := *t.PlaceID
			ct.PlaceID = &p
		}
		if t.Schedule.DueDate != nil {
			v := *t.Schedule.DueDate
			ct.Schedule.DueDate = &v
		}
		if t.Schedule.LastDone != nil {
			v := *t.Schedule.LastDone
			ct.Schedule.LastDone = &v
		}
		if t.Repeat != nil {
			r := *t.Repeat
			ct.Repeat = &r
		}
		if t.LastCompleted != nil {
			v := *t.LastCompleted
			ct.LastCompleted = &v
		}
		if t.Extra != nil {
			ct.Extra = make(map[string]json.RawMessage, len(t.Extra))
			for k, v := range t.Extra {
				ct.Extra[k] = v
			}
		}
		out.Tasks[id] = &ct
	}
	for id, p := range d.Places {
		cp := *p
		cp.IncludedPlaces = append([]PlaceID(nil), p.IncludedPlaces...)
		out.Places[id] = &cp
	}
	return out
}
