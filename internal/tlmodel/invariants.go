package tlmodel

import "fmt"

// Violation describes a single broken structural invariant (spec.md §3 I1-I8),
// used by tests exercising the testable properties in spec.md §8 (P1-P3).
type Violation struct {
	Invariant string
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Invariant, v.Detail)
}

// CheckInvariants validates I1-I5 and the I7 ranges of importance, credits
// and desired_credits against a document and returns every violation found
// (nil if none). I6 (scalar enum values) is not checked here. I8 (Inbox exclusion from balance) is a
// balance-package concern, not a structural one, and is not checked here.
func CheckInvariants(d *DocumentState) []Violation {
	var out []Violation

	seenInRoots := make(map[TaskID]bool, len(d.RootTaskIDs))
	for _, id := range d.RootTaskIDs {
		if seenInRoots[id] {
			out = append(out, Violation{"I5", fmt.Sprintf("duplicate root id %s", id)})
			continue
		}
		seenInRoots[id] = true
		t, ok := d.Tasks[id]
		if !ok {
			out = append(out, Violation{"I1", fmt.Sprintf("root id %s not in tasks", id)})
			continue
		}
		if t.ParentID != nil {
			out = append(out, Violation{"I1", fmt.Sprintf("root task %s has non-nil parent_id", id)})
		}
	}

	containerOf := make(map[TaskID]int, len(d.Tasks)) // count of containers referencing this id

	for id := range seenInRoots {
		containerOf[id]++
	}

	for pid, t := range d.Tasks {
		seenChild := make(map[TaskID]bool, len(t.ChildTaskIDs))
		for _, cid := range t.ChildTaskIDs {
			if seenChild[cid] {
				out = append(out, Violation{"I5", fmt.Sprintf("task %s has duplicate child %s", pid, cid)})
				continue
			}
			seenChild[cid] = true
			containerOf[cid]++

			child, ok := d.Tasks[cid]
			if !ok {
				out = append(out, Violation{"I2", fmt.Sprintf("task %s child %s missing from tasks", pid, cid)})
				continue
			}
			if child.ParentID == nil || *child.ParentID != pid {
				out = append(out, Violation{"I2", fmt.Sprintf("task %s lists child %s whose parent_id disagrees", pid, cid)})
			}
		}
	}

	for id, t := range d.Tasks {
		if t.ParentID != nil {
			parent, ok := d.Tasks[*t.ParentID]
			if !ok {
				out = append(out, Violation{"I2", fmt.Sprintf("task %s parent_id %s missing", id, *t.ParentID)})
				continue
			}
			found := false
			for _, cid := range parent.ChildTaskIDs {
				if cid == id {
					found = true
					break
				}
			}
			if !found {
				out = append(out, Violation{"I2", fmt.Sprintf("task %s parent_id %s does not list it as a child", id, *t.ParentID)})
			}
		}

		switch containerOf[id] {
		case 1:
			// exactly right
		case 0:
			out = append(out, Violation{"I3", fmt.Sprintf("task %s appears in no container", id)})
		default:
			out = append(out, Violation{"I3", fmt.Sprintf("task %s appears in %d containers", id, containerOf[id])})
		}

		if t.Importance < 0 || t.Importance > 1 {
			out = append(out, Violation{"I7", fmt.Sprintf("task %s importance %f out of [0,1]", id, t.Importance)})
		}
		if t.Credits < 0 {
			out = append(out, Violation{"I7", fmt.Sprintf("task %s credits %f < 0", id, t.Credits)})
		}
		if t.DesiredCredit < 0 {
			out = append(out, Violation{"I7", fmt.Sprintf("task %s desired_credits %f < 0", id, t.DesiredCredit)})
		}
	}

	if cyc := findCycle(d); cyc != "" {
		out = append(out, Violation{"I4", fmt.Sprintf("cycle reachable from task %s", cyc)})
	}

	return out
}

// findCycle walks the parent chain of every task; returns the id of a task
// whose chain revisits itself, or "" if the parent relation is a forest.
func findCycle(d *DocumentState) TaskID {
	state := make(map[TaskID]int, len(d.Tasks)) // 0=unvisited,1=visiting,2=done
	var visit func(id TaskID) bool
	visit = func(id TaskID) bool {
		switch state[id] {
		case 1:
			return true
		case 2:
			return false
		}
		state[id] = 1
		if t, ok := d.Tasks[id]; ok && t.ParentID != nil {
			if visit(*t.ParentID) {
				return true
			}
		}
		state[id] = 2
		return false
	}
	for id := range d.Tasks {
		if state[id] == 0 && visit(id) {
			return id
		}
	}
	return ""
}
