package balance

import (
	"math"
	"testing"

	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
)

func root(id tlmodel.TaskID, desired, credits float64, ts tltime.EpochMillis) *tlmodel.Task {
	return &tlmodel.Task{
		ID:            id,
		Status:        tlmodel.StatusPending,
		DesiredCredit: desired,
		Credits:       credits,
		CreditsTS:     ts,
		Importance:    0.5,
	}
}

// Scenario 1 from spec.md §8: two balanced roots.
func TestCompute_Balanced(t *testing.T) {
	t.Parallel()
	d := tlmodel.NewDocumentState()
	d.Tasks["a"] = root("a", 50, 50, 0)
	d.Tasks["b"] = root("b", 50, 50, 0)
	d.RootTaskIDs = []tlmodel.TaskID{"a", "b"}

	data := Compute(d, 0)
	byID := indexItems(data)

	if math.Abs(byID["a"].TargetPercent-0.5) > 1e-9 || math.Abs(byID["a"].ActualPercent-0.5) > 1e-9 {
		t.Errorf("a = %+v", byID["a"])
	}
	if byID["a"].IsStarving || byID["b"].IsStarving {
		t.Errorf("neither should be starving: %+v %+v", byID["a"], byID["b"])
	}
	if math.Abs(data.TotalCredits-100) > 1e-9 {
		t.Errorf("TotalCredits = %v, want 100", data.TotalCredits)
	}
}

// Scenario 2 from spec.md §8: a starving root.
func TestCompute_Starving(t *testing.T) {
	t.Parallel()
	d := tlmodel.NewDocumentState()
	d.Tasks["a"] = root("a", 80, 20, 0)
	d.Tasks["b"] = root("b", 20, 80, 0)
	d.RootTaskIDs = []tlmodel.TaskID{"a", "b"}

	data := Compute(d, 0)
	byID := indexItems(data)

	if !byID["a"].IsStarving {
		t.Errorf("expected a starving, got %+v", byID["a"])
	}
	if byID["b"].IsStarving {
		t.Errorf("expected b not starving, got %+v", byID["b"])
	}
}

// Scenario 3 from spec.md §8: credit decay over 7 days.
func TestCompute_Decay(t *testing.T) {
	t.Parallel()
	d := tlmodel.NewDocumentState()
	d.Tasks["a"] = root("a", 0, 100, 0)
	d.RootTaskIDs = []tlmodel.TaskID{"a"}

	data := Compute(d, tltime.EpochMillis(604_800_000))
	got := data.Items[0].AggregatedCredit
	if math.Abs(got-50.0) > 0.01 {
		t.Errorf("effective credits = %v, want ~50.0", got)
	}
}

func TestCompute_InboxExcluded(t *testing.T) {
	t.Parallel()
	d := tlmodel.NewDocumentState()
	inbox := root("inbox", 100, 100, 0)
	inbox.Title = tlmodel.InboxTitle
	d.Tasks["inbox"] = inbox
	d.Tasks["a"] = root("a", 50, 50, 0)
	d.RootTaskIDs = []tlmodel.TaskID{"inbox", "a"}

	data := Compute(d, 0)
	if len(data.Items) != 1 || data.Items[0].RootID != "a" {
		t.Fatalf("expected only root a, got %+v", data.Items)
	}
}

func TestCompute_ChildrenAggregateToRoot(t *testing.T) {
	t.Parallel()
	d := tlmodel.NewDocumentState()
	r := root("root", 10, 10, 0)
	pid := tlmodel.TaskID("root")
	child := &tlmodel.Task{ID: "child", ParentID: &pid, Credits: 5, CreditsTS: 0}
	r.ChildTaskIDs = []tlmodel.TaskID{"child"}
	d.Tasks["root"] = r
	d.Tasks["child"] = child
	d.RootTaskIDs = []tlmodel.TaskID{"root"}

	data := Compute(d, 0)
	if math.Abs(data.Items[0].AggregatedCredit-15) > 1e-9 {
		t.Errorf("aggregated = %v, want 15 (10 root + 5 child)", data.Items[0].AggregatedCredit)
	}
}

func TestEffectiveCredits_Monotonic(t *testing.T) {
	t.Parallel()
	prev := EffectiveCredits(100, 0, 0, HalfLife)
	for _, now := range []tltime.EpochMillis{1000, 100_000, HalfLife, 2 * HalfLife} {
		cur := EffectiveCredits(100, 0, now, HalfLife)
		if cur > prev+1e-9 {
			t.Errorf("effective credits increased: now=%d cur=%v prev=%v", now, cur, prev)
		}
		prev = cur
	}
}

func indexItems(data Data) map[tlmodel.TaskID]Item {
	m := make(map[tlmodel.TaskID]Item, len(data.Items))
	for _, it := range data.Items {
		m[it.RootID] = it
	}
	return m
}
