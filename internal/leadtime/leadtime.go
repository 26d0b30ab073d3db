// Package leadtime computes the lead-time ramp factor described in
// spec.md §4.4 (C3): a map from (effective due date, effective lead time,
// now) to a factor in [0, ~2], plus a stage classification for diagnostic
// traces. Pure arithmetic; no pack dependency fits a "ramp/easing" helper
// better than a direct implementation (see DESIGN.md).
package leadtime

import "github.com/tasklens/tasklens/internal/tltime"

// Stage classifies where (due, lead, now) falls along the ramp, for
// internal/priority's ScoreTrace diagnostic.
type Stage string

const (
	StageTooEarly Stage = "TooEarly"
	StageRamping  Stage = "Ramping"
	StageReady    Stage = "Ready"
	StageOverdue  Stage = "Overdue"
)

// Result is the ramp factor plus its stage classification.
type Result struct {
	Factor float64
	Stage  Stage
}

// Compute evaluates the ramp per spec.md §4.4. due == nil means "no due
// date" and always yields factor 0.
//
// The overdue bonus is resolved (SPEC_FULL.md §4.4) as a linear mirror of
// the ramp's approach side, saturating at +1.0 once the task has been
// overdue for a full lead-time window (factor caps at 2.0). When lead == 0
// the bonus is always 1.0 (instantly saturated), matching the "else -> 1"
// branch of the spec's compliant form.
func Compute(due *tltime.EpochMillis, lead tltime.EpochMillis, now tltime.EpochMillis) Result {
	if due == nil {
		return Result{Factor: 0, Stage: StageTooEarly}
	}

	remaining := *due - now

	if remaining <= 0 {
		bonus := overdueBonus(remaining, lead)
		factor := 1 + bonus
		stage := StageOverdue
		if remaining == 0 {
			stage = StageReady
			factor = 1
		}
		return Result{Factor: factor, Stage: stage}
	}

	if int64(remaining) >= int64(lead) {
		return Result{Factor: 0, Stage: StageTooEarly}
	}

	if lead <= 0 {
		// remaining > 0 and lead <= 0 only takes this path when lead == 0,
		// but remaining >= lead (0) was already handled above; unreachable
		// in practice, kept as a defensive fallback to avoid div-by-zero.
		return Result{Factor: 1, Stage: StageReady}
	}

	factor := 1 - float64(remaining)/float64(lead)
	return Result{Factor: factor, Stage: StageRamping}
}

func overdueBonus(remaining, lead tltime.EpochMillis) float64 {
	if lead <= 0 {
		return 1
	}
	overdue := float64(-remaining)
	ratio := overdue / float64(lead)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}
