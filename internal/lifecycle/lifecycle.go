// Package lifecycle implements the routine acknowledge/wake pass run by a
// RefreshLifecycle action (spec.md §4.9, C8). Grounded on the teacher's
// internal/sync/worker.go "poll until unchanged" loop structure: a
// periodic pass that classifies and advances entity state, generalized
// here from a remote-fetch diff to a pure local state transition.
package lifecycle

import (
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
)

// ackDwell is the minimum time after completion before a Done task is
// acknowledged. Zero: acknowledgement exists so the UI can dismiss a
// completion on the very next refresh, not to enforce a cooldown
// (spec.md §4.9).
const ackDwell = tltime.EpochMillis(0)

// Refresh runs both lifecycle steps against d in place: acknowledging
// dwelled completions, then waking due Routinely tasks.
func Refresh(d *tlmodel.DocumentState, now tltime.EpochMillis) {
	acknowledge(d, now)
	wakeRoutines(d, now)
}

func acknowledge(d *tlmodel.DocumentState, now tltime.EpochMillis) {
	for _, t := range d.Tasks {
		if t.Status != tlmodel.StatusDone || t.IsAcked || t.LastCompleted == nil {
			continue
		}
		if now.Sub(*t.LastCompleted) >= ackDwell {
			t.IsAcked = true
		}
	}
}

func wakeRoutines(d *tlmodel.DocumentState, now tltime.EpochMillis) {
	for _, t := range d.Tasks {
		if t.Schedule.Type != tlmodel.ScheduleRoutinely || t.Status != tlmodel.StatusDone {
			continue
		}
		if t.LastCompleted == nil {
			continue
		}
		interval := tltime.IntervalMillis(repeatConfigOrDefault(t))
		if now < *t.LastCompleted+interval {
			continue
		}
		lastDone := *t.LastCompleted
		t.Status = tlmodel.StatusPending
		t.IsAcked = false
		t.Schedule.LastDone = &lastDone
	}
}

func repeatConfigOrDefault(t *tlmodel.Task) tltime.RepeatConfig {
	if t.Repeat != nil {
		return *t.Repeat
	}
	return tltime.RepeatConfig{Frequency: tltime.FrequencyDaily, Interval: 1}
}
