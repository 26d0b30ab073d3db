// Package dispatch applies mutating actions to a DocumentState (spec.md
// §4.1, C9). Every successful action leaves invariants I1-I7 intact on a
// single-replica document; fields are reconciled surgically so concurrent
// edits merge cleanly. Grounded on the teacher's internal/db/store.go
// transactional mutation style (pre-check before any write, wrapped
// sentinel errors) and internal/repo's interface-first design.
package dispatch

import (
	"errors"
	"fmt"
	"math"

	"github.com/tasklens/tasklens/internal/lifecycle"
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
)

// Kind enumerates the failure kinds surfaced by the dispatcher (spec.md §7).
type Kind string

const (
	KindTaskNotFound   Kind = "TaskNotFound"
	KindParentNotFound Kind = "ParentNotFound"
	KindTaskExists     Kind = "TaskExists"
	KindMoveToSelf     Kind = "MoveToSelf"
	KindCycleDetected  Kind = "CycleDetected"
	KindInconsistency  Kind = "Inconsistency"
)

// Error is the dispatcher's error shape: Kind is stable and intended for
// errors.Is/As matching via the sentinel values below; Action and Detail
// are for human-facing diagnostics.
type Error struct {
	Kind   Kind
	Action string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Action, e.Kind, e.Detail)
}

// Is supports errors.Is(err, dispatch.ErrTaskNotFound) and friends by
// comparing Kind, not pointer identity.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels usable with errors.Is. Action/Detail are empty on these; a
// returned *Error from Apply carries the real ones.
var (
	ErrTaskNotFound   = &Error{Kind: KindTaskNotFound}
	ErrParentNotFound = &Error{Kind: KindParentNotFound}
	ErrTaskExists     = &Error{Kind: KindTaskExists}
	ErrMoveToSelf     = &Error{Kind: KindMoveToSelf}
	ErrCycleDetected  = &Error{Kind: KindCycleDetected}
	ErrInconsistency  = &Error{Kind: KindInconsistency}
)

// H_short is the credit half-life applied on CompleteTask, per spec.md §6.
const hShort = tltime.EpochMillis(14_400_000)

// Action is the tagged union of mutations accepted by Apply. Callers set
// exactly one of the embedded pointers; nothing enforces this, and Apply
// acts on the first non-nil one in the order of its switch.
type Action struct {
	CreateTask             *CreateTask
	UpdateTask             *UpdateTask
	DeleteTask             *DeleteTask
	CompleteTask           *CompleteTask
	MoveTask               *MoveTask
	RefreshLifecycle       *RefreshLifecycle
	SetBalanceDistribution *SetBalanceDistribution
	CreatePlace            *CreatePlace
}

type CreateTask struct {
	ID       tlmodel.TaskID
	ParentID *tlmodel.TaskID
	Title    string
}

// TaskUpdates patches only the fields whose pointer is non-nil.
type TaskUpdates struct {
	Title         *string
	Notes         *string
	PlaceID       **tlmodel.PlaceID
	Importance    *float64
	CreditInc     *float64
	DesiredCredit *float64
	Schedule      *tlmodel.Schedule
	Repeat        **tltime.RepeatConfig
	IsSequential  *bool
}

type UpdateTask struct {
	ID      tlmodel.TaskID
	Updates TaskUpdates
}

type DeleteTask struct {
	ID tlmodel.TaskID
}

type CompleteTask struct {
	ID  tlmodel.TaskID
	Now tltime.EpochMillis
}

type MoveTask struct {
	ID          tlmodel.TaskID
	NewParentID *tlmodel.TaskID
}

type RefreshLifecycle struct {
	Now tltime.EpochMillis
}

type SetBalanceDistribution struct {
	DesiredCredits map[tlmodel.TaskID]float64
}

type CreatePlace struct {
	ID             tlmodel.PlaceID
	Name           string
	Hours          tlmodel.OpenHours
	IncludedPlaces []tlmodel.PlaceID
}

// Apply mutates d according to action, or returns an *Error and leaves d
// unchanged (validation runs before any write for every action except the
// intentionally idempotent cascading delete).
func Apply(d *tlmodel.DocumentState, action Action) error {
	switch {
	case action.CreateTask != nil:
		return applyCreateTask(d, action.CreateTask)
	case action.UpdateTask != nil:
		return applyUpdateTask(d, action.UpdateTask)
	case action.DeleteTask != nil:
		return applyDeleteTask(d, action.DeleteTask)
	case action.CompleteTask != nil:
		return applyCompleteTask(d, action.CompleteTask)
	case action.MoveTask != nil:
		return applyMoveTask(d, action.MoveTask)
	case action.RefreshLifecycle != nil:
		lifecycle.Refresh(d, action.RefreshLifecycle.Now)
		return nil
	case action.SetBalanceDistribution != nil:
		return applySetBalanceDistribution(d, action.SetBalanceDistribution)
	case action.CreatePlace != nil:
		return applyCreatePlace(d, action.CreatePlace)
	default:
		return &Error{Kind: KindInconsistency, Action: "Apply", Detail: "empty action"}
	}
}

func applyCreateTask(d *tlmodel.DocumentState, a *CreateTask) error {
	if _, exists := d.Tasks[a.ID]; exists {
		return &Error{Kind: KindTaskExists, Action: "CreateTask", Detail: string(a.ID)}
	}
	var parent *tlmodel.Task
	if a.ParentID != nil {
		p, ok := d.Tasks[*a.ParentID]
		if !ok {
			return &Error{Kind: KindParentNotFound, Action: "CreateTask", Detail: string(*a.ParentID)}
		}
		parent = p
	}

	t := tlmodel.NewTask(a.ID, a.Title, parent)
	if a.ParentID != nil {
		t.ParentID = a.ParentID
	}
	d.Tasks[a.ID] = &t

	if parent != nil {
		parent.ChildTaskIDs = append(parent.ChildTaskIDs, a.ID)
	} else {
		d.RootTaskIDs = append(d.RootTaskIDs, a.ID)
	}
	return nil
}

func applyUpdateTask(d *tlmodel.DocumentState, a *UpdateTask) error {
	t, ok := d.Tasks[a.ID]
	if !ok {
		return &Error{Kind: KindTaskNotFound, Action: "UpdateTask", Detail: string(a.ID)}
	}
	u := a.Updates
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.PlaceID != nil {
		t.PlaceID = *u.PlaceID
	}
	if u.Importance != nil {
		t.Importance = *u.Importance
	}
	if u.CreditInc != nil {
		t.CreditInc = *u.CreditInc
	}
	if u.DesiredCredit != nil {
		t.DesiredCredit = *u.DesiredCredit
	}
	if u.Schedule != nil {
		t.Schedule = *u.Schedule
	}
	if u.Repeat != nil {
		t.Repeat = *u.Repeat
	}
	if u.IsSequential != nil {
		t.IsSequential = *u.IsSequential
	}
	return nil
}

// applyDeleteTask cascades depth-first to every descendant. Missing
// descendants encountered mid-recursion are swallowed: the cascade has
// already removed their container entry by construction, so re-deleting a
// stale reference is a no-op rather than an error (spec.md §4.1, §7).
func applyDeleteTask(d *tlmodel.DocumentState, a *DeleteTask) error {
	t, ok := d.Tasks[a.ID]
	if !ok {
		return &Error{Kind: KindTaskNotFound, Action: "DeleteTask", Detail: string(a.ID)}
	}

	children := append([]tlmodel.TaskID(nil), t.ChildTaskIDs...)
	for _, cid := range children {
		deleteSubtree(d, cid)
	}

	if t.ParentID != nil {
		if parent, ok := d.Tasks[*t.ParentID]; ok {
			parent.ChildTaskIDs = removeID(parent.ChildTaskIDs, a.ID)
		}
	} else {
		d.RootTaskIDs = removeID(d.RootTaskIDs, a.ID)
	}
	delete(d.Tasks, a.ID)
	return nil
}

func deleteSubtree(d *tlmodel.DocumentState, id tlmodel.TaskID) {
	t, ok := d.Tasks[id]
	if !ok {
		return
	}
	for _, cid := range append([]tlmodel.TaskID(nil), t.ChildTaskIDs...) {
		deleteSubtree(d, cid)
	}
	delete(d.Tasks, id)
}

func applyCompleteTask(d *tlmodel.DocumentState, a *CompleteTask) error {
	t, ok := d.Tasks[a.ID]
	if !ok {
		return &Error{Kind: KindTaskNotFound, Action: "CompleteTask", Detail: string(a.ID)}
	}
	decayed := decayCredits(t.Credits, t.CreditsTS, a.Now)
	inc := t.CreditInc
	if inc == 0 {
		inc = tlmodel.DefaultCreditIncrement
	}
	t.Credits = decayed + inc
	t.CreditsTS = a.Now
	t.Status = tlmodel.StatusDone
	t.LastCompleted = &a.Now
	return nil
}

func decayCredits(credits float64, creditsTS, now tltime.EpochMillis) float64 {
	elapsed := now.Sub(creditsTS)
	if elapsed <= 0 {
		return credits
	}
	exponent := float64(elapsed) / float64(hShort)
	return credits * math.Pow(0.5, exponent)
}

func applyMoveTask(d *tlmodel.DocumentState, a *MoveTask) error {
	t, ok := d.Tasks[a.ID]
	if !ok {
		return &Error{Kind: KindTaskNotFound, Action: "MoveTask", Detail: string(a.ID)}
	}
	if a.NewParentID != nil && *a.NewParentID == a.ID {
		return &Error{Kind: KindMoveToSelf, Action: "MoveTask", Detail: string(a.ID)}
	}

	samParent := (t.ParentID == nil && a.NewParentID == nil) ||
		(t.ParentID != nil && a.NewParentID != nil && *t.ParentID == *a.NewParentID)
	if samParent {
		return nil
	}

	var newParent *tlmodel.Task
	if a.NewParentID != nil {
		p, ok := d.Tasks[*a.NewParentID]
		if !ok {
			return &Error{Kind: KindParentNotFound, Action: "MoveTask", Detail: string(*a.NewParentID)}
		}
		if isDescendant(d, a.ID, *a.NewParentID) {
			return &Error{Kind: KindCycleDetected, Action: "MoveTask", Detail: string(a.ID)}
		}
		newParent = p
	}

	if t.ParentID != nil {
		if oldParent, ok := d.Tasks[*t.ParentID]; ok {
			oldParent.ChildTaskIDs = removeID(oldParent.ChildTaskIDs, a.ID)
		}
	} else {
		d.RootTaskIDs = removeID(d.RootTaskIDs, a.ID)
	}

	if newParent != nil {
		if !containsID(newParent.ChildTaskIDs, a.ID) {
			newParent.ChildTaskIDs = append(newParent.ChildTaskIDs, a.ID)
		}
		t.ParentID = a.NewParentID
	} else {
		if !containsID(d.RootTaskIDs, a.ID) {
			d.RootTaskIDs = append(d.RootTaskIDs, a.ID)
		}
		t.ParentID = nil
	}
	return nil
}

// isDescendant reports whether candidate is id itself or a descendant of
// id, by walking candidate's parent chain up to the root.
func isDescendant(d *tlmodel.DocumentState, id, candidate tlmodel.TaskID) bool {
	cur := candidate
	for i := 0; i < len(d.Tasks)+1; i++ {
		if cur == id {
			return true
		}
		t, ok := d.Tasks[cur]
		if !ok || t.ParentID == nil {
			return false
		}
		cur = *t.ParentID
	}
	return true // chain longer than |tasks|: must contain a cycle through id
}

func applySetBalanceDistribution(d *tlmodel.DocumentState, a *SetBalanceDistribution) error {
	for id := range a.DesiredCredits {
		if _, ok := d.Tasks[id]; !ok {
			return &Error{Kind: KindTaskNotFound, Action: "SetBalanceDistribution", Detail: string(id)}
		}
	}
	for id, desired := range a.DesiredCredits {
		d.Tasks[id].DesiredCredit = desired
	}
	return nil
}

func applyCreatePlace(d *tlmodel.DocumentState, a *CreatePlace) error {
	d.Places[a.ID] = &tlmodel.Place{
		ID:             a.ID,
		Name:           a.Name,
		Hours:          a.Hours,
		IncludedPlaces: append([]tlmodel.PlaceID(nil), a.IncludedPlaces...),
	}
	return nil
}

func removeID(ids []tlmodel.TaskID, id tlmodel.TaskID) []tlmodel.TaskID {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func containsID(ids []tlmodel.TaskID, id tlmodel.TaskID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
