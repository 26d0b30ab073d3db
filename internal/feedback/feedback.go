// Package feedback computes the per-root multiplicative feedback factor
// from a balance projection (spec.md §4.7, C6). Every task inherits its
// root's feedback factor; there is no nested-root case by definition
// (roots have parent_id = null).
package feedback

import (
	"math"

	"github.com/tasklens/tasklens/internal/balance"
	"github.com/tasklens/tasklens/internal/tlmodel"
)

// DefaultSensitivity is the spec.md §9 Open Question resolution: 1.0
// reproduces the spec's observed tests and is exposed for tuning via
// Options.Sensitivity (SPEC_FULL.md §4.7).
const DefaultSensitivity = 1.0

const (
	epsilon  = 1e-6
	ratioCap = 10.0
)

// Options tunes the feedback calculation; the zero value uses DefaultSensitivity.
type Options struct {
	Sensitivity float64
}

func (o Options) sensitivity() float64 {
	if o.Sensitivity == 0 {
		return DefaultSensitivity
	}
	return o.Sensitivity
}

// Compute returns, for every balance item, the multiplicative factor a
// task under that root should apply to its priority score.
func Compute(data balance.Data, opts Options) map[tlmodel.TaskID]float64 {
	out := make(map[tlmodel.TaskID]float64, len(data.Items))
	sensitivity := opts.sensitivity()
	for _, item := range data.Items {
		out[item.RootID] = factorFor(item.TargetPercent, item.ActualPercent, sensitivity)
	}
	return out
}

func factorFor(target, actual, sensitivity float64) float64 {
	if target == 0 {
		return 1.0
	}
	a := actual
	if a < epsilon {
		a = epsilon
	}
	ratio := target / a
	if ratio > ratioCap {
		ratio = ratioCap
	}
	if ratio < 1/ratioCap {
		ratio = 1 / ratioCap
	}
	factor := math.Pow(ratio, sensitivity)
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 1.0
	}
	return factor
}
