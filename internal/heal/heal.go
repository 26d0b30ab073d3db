// Package heal implements the post-merge reconciler (spec.md §4.2, C10)
// that restores structural invariants I1-I6 after concurrent edits or
// malformed scalar data. Deterministic and idempotent: Heal(Heal(doc)) ==
// Heal(doc) (spec.md §8 P4). Grounded on the teacher's internal/db/convert.go
// defensive-coercion style, generalized from field coercion to whole-tree
// structural healing.
package heal

import (
	"strings"

	"github.com/tasklens/tasklens/internal/tlmodel"
)

// Heal mutates d in place, running the six steps of spec.md §4.2 in order.
func Heal(d *tlmodel.DocumentState) {
	healScalars(d)
	dedupe(d)
	resolveMultiParent(d)
	dropDangling(d)
	promoteOrphans(d)
	breakCycles(d)
}

// healScalars coerces unknown enum values by longest known-variant prefix
// match, falling back to the field's default (spec.md §4.2 step 1).
func healScalars(d *tlmodel.DocumentState) {
	for _, t := range d.Tasks {
		t.Status = healEnum(string(t.Status), []string{string(tlmodel.StatusPending), string(tlmodel.StatusDone)}, string(tlmodel.StatusPending))
		t.Schedule.Type = tlmodel.ScheduleType(healEnum(string(t.Schedule.Type),
			[]string{string(tlmodel.ScheduleOnce), string(tlmodel.ScheduleRoutinely), string(tlmodel.ScheduleDueDate), string(tlmodel.ScheduleCalendar)},
			string(tlmodel.ScheduleOnce)))
		if t.Repeat != nil {
			t.Repeat.Frequency = tlmodel.Frequency(healEnum(string(t.Repeat.Frequency), []string{
				"Minutes", "Hours", "Daily", "Weekly", "Monthly", "Yearly",
			}, "Daily"))
		}
	}
}

// healEnum coerces value to the known variant it is a prefix-match
// concatenation of (e.g. "DoDonee" -> "Done"), or def if no variant matches.
func healEnum(value string, known []string, def string) string {
	for _, k := range known {
		if value == k {
			return k
		}
	}
	best := ""
	for _, k := range known {
		if strings.HasPrefix(value, k) && len(k) > len(best) {
			best = k
		}
	}
	if best != "" {
		return best
	}
	return def
}

func dedupe(d *tlmodel.DocumentState) {
	d.RootTaskIDs = dedupeIDs(d.RootTaskIDs)
	for _, t := range d.Tasks {
		t.ChildTaskIDs = dedupeIDs(t.ChildTaskIDs)
	}
}

func dedupeIDs(ids []tlmodel.TaskID) []tlmodel.TaskID {
	seen := make(map[tlmodel.TaskID]bool, len(ids))
	out := make([]tlmodel.TaskID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// resolveMultiParent retains a multiply-listed task only in the container
// reachable via its own parent_id (spec.md §4.2 step 3).
func resolveMultiParent(d *tlmodel.DocumentState) {
	count := make(map[tlmodel.TaskID]int, len(d.Tasks))
	for _, id := range d.RootTaskIDs {
		count[id]++
	}
	for _, t := range d.Tasks {
		for _, cid := range t.ChildTaskIDs {
			count[cid]++
		}
	}

	for id, n := range count {
		if n < 2 {
			continue
		}
		t, ok := d.Tasks[id]
		if !ok {
			continue
		}
		if t.ParentID == nil {
			// Keep in root_task_ids, remove from every child list.
			removeFromAllChildLists(d, id)
			ensureInRoots(d, id)
			continue
		}
		parent, ok := d.Tasks[*t.ParentID]
		if !ok {
			// Unreachable via parent_id: fix up in dropDangling; for now
			// just strip from every extra container and let the dangling
			// pass decide the final placement.
			removeFromAllChildLists(d, id)
			removeFromRoots(d, id)
			continue
		}
		// Keep only in parent.ChildTaskIDs; remove from root list and
		// from every other parent's child list.
		removeFromRoots(d, id)
		for otherID, other := range d.Tasks {
			if otherID == *t.ParentID {
				continue
			}
			other.ChildTaskIDs = removeID(other.ChildTaskIDs, id)
		}
		if !containsID(parent.ChildTaskIDs, id) {
			parent.ChildTaskIDs = append(parent.ChildTaskIDs, id)
		}
	}
}

func removeFromAllChildLists(d *tlmodel.DocumentState, id tlmodel.TaskID) {
	for _, t := range d.Tasks {
		t.ChildTaskIDs = removeID(t.ChildTaskIDs, id)
	}
}

func ensureInRoots(d *tlmodel.DocumentState, id tlmodel.TaskID) {
	if !containsID(d.RootTaskIDs, id) {
		d.RootTaskIDs = append(d.RootTaskIDs, id)
	}
}

func removeFromRoots(d *tlmodel.DocumentState, id tlmodel.TaskID) {
	d.RootTaskIDs = removeID(d.RootTaskIDs, id)
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

// dropDangling removes references to ids that no longer exist in Tasks
// (spec.md §4.2 step 4).
func dropDangling(d *tlmodel.DocumentState) {
	exists := func(id tlmodel.TaskID) bool { _, ok := d.Tasks[id]; return ok }

	for _, t := range d.Tasks {
		kept := t.ChildTaskIDs[:0:0]
		for _, cid := range t.ChildTaskIDs {
			if exists(cid) {
				kept = append(kept, cid)
			}
		}
		t.ChildTaskIDs = kept
	}

	kept := d.RootTaskIDs[:0:0]
	for _, id := range d.RootTaskIDs {
		if exists(id) {
			kept = append(kept, id)
		}
	}
	d.RootTaskIDs = kept

	for _, t := range d.Tasks {
		if t.ParentID != nil && !exists(*t.ParentID) {
			t.ParentID = nil
			ensureInRoots(d, t.ID)
		}
	}
}

// promoteOrphans appends every task absent from every container to
// root_task_ids (spec.md §4.2 step 5).
func promoteOrphans(d *tlmodel.DocumentState) {
	inContainer := make(map[tlmodel.TaskID]bool, len(d.Tasks))
	for _, id := range d.RootTaskIDs {
		inContainer[id] = true
	}
	for _, t := range d.Tasks {
		for _, cid := range t.ChildTaskIDs {
			inContainer[cid] = true
		}
	}
	for id, t := range d.Tasks {
		if !inContainer[id] {
			t.ParentID = nil
			d.RootTaskIDs = append(d.RootTaskIDs, id)
		}
	}
}

// breakCycles detects cycles by parent-chain walk and promotes the
// shallowest cycle member to root (spec.md §4.2 step 6).
func breakCycles(d *tlmodel.DocumentState) {
	state := make(map[tlmodel.TaskID]int, len(d.Tasks)) // 0 unvisited, 1 visiting, 2 done

	var chain []tlmodel.TaskID
	var visit func(id tlmodel.TaskID)
	visit = func(id tlmodel.TaskID) {
		if state[id] == 2 {
			return
		}
		if state[id] == 1 {
			// Found a cycle: chain contains the path from some ancestor to
			// id. The "shallowest" member is the first element of chain
			// that is part of the cycle (i.e. chain[idx] == id).
			idx := 0
			for i, cid := range chain {
				if cid == id {
					idx = i
					break
				}
			}
			victim := chain[idx]
			promoteToRoot(d, victim)
			return
		}
		state[id] = 1
		chain = append(chain, id)
		if t, ok := d.Tasks[id]; ok && t.ParentID != nil {
			visit(*t.ParentID)
		}
		chain = chain[:len(chain)-1]
		state[id] = 2
	}

	for id := range d.Tasks {
		if state[id] == 0 {
			visit(id)
		}
	}
}

func promoteToRoot(d *tlmodel.DocumentState, id tlmodel.TaskID) {
	t, ok := d.Tasks[id]
	if !ok {
		return
	}
	if t.ParentID != nil {
		if parent, ok := d.Tasks[*t.ParentID]; ok {
			parent.ChildTaskIDs = removeID(parent.ChildTaskIDs, id)
		}
	}
	t.ParentID = nil
	ensureInRoots(d, id)
}
