package leadtime

import (
	"math"
	"testing"

	"github.com/tasklens/tasklens/internal/tltime"
)

func eptr(v tltime.EpochMillis) *tltime.EpochMillis { return &v }

func TestCompute_NoDueDate(t *testing.T) {
	t.Parallel()
	r := Compute(nil, 10_000, 0)
	if r.Factor != 0 {
		t.Errorf("factor = %v, want 0", r.Factor)
	}
}

// Scenario 5 from spec.md §8: due=100000, lead=10000, importance=1, feedback=1.
func TestCompute_Scenario5(t *testing.T) {
	t.Parallel()
	due := eptr(100_000)
	lead := tltime.EpochMillis(10_000)

	cases := []struct {
		now      tltime.EpochMillis
		want     float64
		stage    Stage
		priority float64
	}{
		{80_000, 0, StageTooEarly, 0},
		{95_000, 0.5, StageRamping, 0.5},
		{100_000, 1.0, StageReady, 1.0},
	}
	for _, c := range cases {
		r := Compute(due, lead, c.now)
		if math.Abs(r.Factor-c.want) > 1e-9 {
			t.Errorf("now=%d factor = %v, want %v", c.now, r.Factor, c.want)
		}
		if r.Stage != c.stage {
			t.Errorf("now=%d stage = %v, want %v", c.now, r.Stage, c.stage)
		}
	}

	// At now=110000, overdue by 10000ms == one full lead window -> bonus
	// saturates at 1.0, factor caps at 2.0.
	over := Compute(due, lead, 110_000)
	if over.Stage != StageOverdue {
		t.Errorf("stage = %v, want Overdue", over.Stage)
	}
	if over.Factor <= 1.0 {
		t.Errorf("overdue factor = %v, want > 1.0", over.Factor)
	}
	if over.Factor > 2.0+1e-9 {
		t.Errorf("overdue factor = %v, want <= 2.0", over.Factor)
	}
}

func TestCompute_OverdueMonotonic(t *testing.T) {
	t.Parallel()
	due := eptr(0)
	lead := tltime.EpochMillis(1000)

	prev := 0.0
	for _, now := range []tltime.EpochMillis{0, 200, 500, 800, 1000, 2000} {
		r := Compute(due, lead, now)
		if r.Factor < prev-1e-12 {
			t.Errorf("overdue bonus not monotonic: now=%d factor=%v < prev=%v", now, r.Factor, prev)
		}
		prev = r.Factor
	}
}

func TestCompute_ZeroLeadOverdueSaturates(t *testing.T) {
	t.Parallel()
	due := eptr(0)
	r := Compute(due, 0, 1)
	if r.Factor != 2.0 {
		t.Errorf("factor = %v, want 2.0 for zero-lead overdue", r.Factor)
	}
}

func TestCompute_NaNNeverProduced(t *testing.T) {
	t.Parallel()
	due := eptr(100)
	r := Compute(due, 0, 50)
	if math.IsNaN(r.Factor) {
		t.Errorf("factor is NaN")
	}
}
