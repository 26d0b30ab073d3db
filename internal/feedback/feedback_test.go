package feedback

import (
	"math"
	"testing"

	"github.com/tasklens/tasklens/internal/balance"
	"github.com/tasklens/tasklens/internal/tlmodel"
)

func TestCompute_NoTargetIsNeutral(t *testing.T) {
	t.Parallel()
	data := balance.Data{Items: []balance.Item{{RootID: "a", TargetPercent: 0, ActualPercent: 0.3}}}
	out := Compute(data, Options{})
	if out["a"] != 1.0 {
		t.Errorf("factor = %v, want 1.0", out["a"])
	}
}

func TestCompute_UnderservedBoosts(t *testing.T) {
	t.Parallel()
	data := balance.Data{Items: []balance.Item{{RootID: "a", TargetPercent: 0.8, ActualPercent: 0.2}}}
	out := Compute(data, Options{})
	if out["a"] <= 1.0 {
		t.Errorf("expected boost factor > 1.0 for underserved root, got %v", out["a"])
	}
}

func TestCompute_OverservedDampens(t *testing.T) {
	t.Parallel()
	data := balance.Data{Items: []balance.Item{{RootID: "a", TargetPercent: 0.2, ActualPercent: 0.8}}}
	out := Compute(data, Options{})
	if out["a"] >= 1.0 {
		t.Errorf("expected dampening factor < 1.0 for overserved root, got %v", out["a"])
	}
}

func TestCompute_CapsDeviationRatio(t *testing.T) {
	t.Parallel()
	data := balance.Data{Items: []balance.Item{{RootID: "a", TargetPercent: 1.0, ActualPercent: 0}}}
	out := Compute(data, Options{})
	if out["a"] > 10.0+1e-9 {
		t.Errorf("factor = %v, want capped at 10.0", out["a"])
	}
}

func TestCompute_SensitivityZeroUsesDefault(t *testing.T) {
	t.Parallel()
	data := balance.Data{Items: []balance.Item{{RootID: "a", TargetPercent: 0.8, ActualPercent: 0.2}}}
	out := Compute(data, Options{Sensitivity: 0.0})
	// Sensitivity 0 in Options means "use default" per the zero-value contract,
	// not "exponent 0" -- exercise that explicitly via the unexported path.
	if out["a"] == 1.0 {
		t.Fatalf("zero Options.Sensitivity should fall back to DefaultSensitivity, not neutralize")
	}
}

func TestFactorFor_ExponentZeroIsNeutral(t *testing.T) {
	t.Parallel()
	got := factorFor(0.8, 0.2, 0.0)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("factorFor with sensitivity=0 directly = %v, want 1.0", got)
	}
}

func TestFactorFor_NeverNaN(t *testing.T) {
	t.Parallel()
	got := factorFor(0.5, 0, 1.0)
	if math.IsNaN(got) {
		t.Errorf("factor is NaN")
	}
}
