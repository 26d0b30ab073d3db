// Package balance computes the balance projection described in spec.md
// §4.6 (C5): aggregated, exponentially-decayed per-root credits compared
// against desired credits. Grounded on the teacher's internal/api/stats.go
// (tree aggregation over issues) and the decay-math idiom of
// internal/cache/cache.go's TTL expiry.
package balance

import (
	"math"

	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
)

// HalfLife is the credit half-life used by the balance projection
// (7 days), per spec.md §6.
const HalfLife = tltime.EpochMillis(604_800_000)

// StarvingThreshold (epsilon) is the spec.md §6 engine-wide constant.
const StarvingThreshold = 1e-3

// EffectiveCredits decays T.credits from credits_timestamp to now with the
// given half-life, per spec.md §4.6 step 1 / §4.8 step 4.
func EffectiveCredits(credits float64, creditsTS, now tltime.EpochMillis, halfLife tltime.EpochMillis) float64 {
	elapsed := now.Sub(creditsTS)
	if elapsed <= 0 {
		return credits
	}
	if halfLife <= 0 {
		return credits
	}
	exponent := float64(elapsed) / float64(halfLife)
	return credits * math.Pow(0.5, exponent)
}

// Item is one root's entry in a BalanceData projection.
type Item struct {
	RootID           tlmodel.TaskID
	AggregatedCredit float64
	DesiredCredit    float64
	TargetPercent    float64
	ActualPercent    float64
	IsStarving       bool
}

// Data is the output of Compute: spec.md's BalanceData.
type Data struct {
	Items        []Item
	TotalCredits float64
}

// Compute runs spec.md §4.6 steps 1-5 against a snapshot at time now.
func Compute(d *tlmodel.DocumentState, now tltime.EpochMillis) Data {
	childrenOf := make(map[tlmodel.TaskID][]tlmodel.TaskID, len(d.Tasks))
	for id, t := range d.Tasks {
		if t.ParentID != nil {
			childrenOf[*t.ParentID] = append(childrenOf[*t.ParentID], id)
		}
	}

	memo := make(map[tlmodel.TaskID]float64, len(d.Tasks))
	visiting := make(map[tlmodel.TaskID]bool, len(d.Tasks))
	var aggregate func(id tlmodel.TaskID) float64
	aggregate = func(id tlmodel.TaskID) float64 {
		if v, ok := memo[id]; ok {
			return v
		}
		t, ok := d.Tasks[id]
		if !ok || visiting[id] {
			return 0
		}
		visiting[id] = true
		sum := EffectiveCredits(t.Credits, t.CreditsTS, now, HalfLife)
		for _, cid := range childrenOf[id] {
			sum += aggregate(cid)
		}
		visiting[id] = false
		memo[id] = sum
		return sum
	}

	var roots []tlmodel.TaskID
	for _, id := range d.RootTaskIDs {
		t, ok := d.Tasks[id]
		if !ok || tlmodel.IsInbox(t) {
			continue
		}
		roots = append(roots, id)
	}

	var totalDesired, totalEffective float64
	aggregated := make(map[tlmodel.TaskID]float64, len(roots))
	for _, id := range roots {
		t := d.Tasks[id]
		a := aggregate(id)
		aggregated[id] = a
		totalDesired += t.DesiredCredit
		totalEffective += a
	}

	items := make([]Item, 0, len(roots))
	for _, id := range roots {
		t := d.Tasks[id]
		a := aggregated[id]

		var target, actual float64
		if totalDesired > 0 {
			target = t.DesiredCredit / totalDesired
		}
		if totalEffective > 0 {
			actual = a / totalEffective
		}

		items = append(items, Item{
			RootID:           id,
			AggregatedCredit: a,
			DesiredCredit:    t.DesiredCredit,
			TargetPercent:    target,
			ActualPercent:    actual,
			IsStarving:       actual < target-StarvingThreshold,
		})
	}

	return Data{Items: items, TotalCredits: totalEffective}
}
