// Package priority implements the priority pipeline (spec.md §4.8, C7):
// the orchestrator that hydrates a document snapshot, resolves schedule
// inheritance and importance propagation across the task tree, folds in
// visibility and balance feedback, and projects a sorted, filtered list of
// ComputedTask. Grounded on the teacher's internal/fs/linearfs.go tree
// construction/traversal over issues and internal/fs/issues.go's
// outline-like child ordering for directory listings. Uses an explicit
// stack rather than recursion for DFS, per the engine's requirement to
// tolerate deeply nested forests without stack growth proportional to
// tree depth.
package priority

import (
	"math"
	"sort"

	"github.com/tasklens/tasklens/internal/balance"
	"github.com/tasklens/tasklens/internal/feedback"
	"github.com/tasklens/tasklens/internal/heal"
	"github.com/tasklens/tasklens/internal/leadtime"
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
	"github.com/tasklens/tasklens/internal/visibility"
)

// hShort is the credit half-life applied within the priority pipeline
// (4 hours), distinct from balance.HalfLife's 7-day window (spec.md §6).
const hShort = tltime.EpochMillis(14_400_000)

// MinPriority is the filter threshold below which a task is dropped
// outside PlanOutline mode / include_hidden (spec.md §6).
const MinPriority = 1e-3

// PriorityEpsilon is the tie tolerance used when sorting by priority
// (spec.md §6).
const PriorityEpsilon = 1e-6

// Mode selects which filtering rules apply in the final phase.
type Mode string

const (
	ModeDoList      Mode = "DoList"
	ModePlanOutline Mode = "PlanOutline"
)

// ScheduleSource records whether a task's effective due date/lead time is
// its own or inherited from an ancestor during tree evaluation.
type ScheduleSource string

const (
	ScheduleSourceSelf     ScheduleSource = "Self"
	ScheduleSourceAncestor ScheduleSource = "Ancestor"
)

// Context carries the place/time the pipeline evaluates visibility against.
type Context struct {
	CurrentPlaceID *tlmodel.PlaceID
	CurrentTime    tltime.EpochMillis // zero means "use Options.Now, or real now"
}

// Options tunes a Prioritize call (spec.md §4.8).
type Options struct {
	IncludeHidden       bool
	Mode                Mode
	Context             Context
	FeedbackSensitivity float64 // 0 means feedback.DefaultSensitivity
	// Now overrides Context.CurrentTime when non-zero and Context.CurrentTime
	// is zero; primarily for deterministic tests. A real host passes
	// Context.CurrentTime explicitly.
	Now tltime.EpochMillis
}

func (o Options) resolvedNow() tltime.EpochMillis {
	if o.Context.CurrentTime != 0 {
		return o.Context.CurrentTime
	}
	if o.Now != 0 {
		return o.Now
	}
	return tltime.Now()
}

// ComputedTask is the public projection: every persisted field plus the
// pipeline's derived ones (spec.md §4.8 phase 11).
type ComputedTask struct {
	ID            tlmodel.TaskID
	Title         string
	Notes         string
	ParentID      *tlmodel.TaskID
	ChildTaskIDs  []tlmodel.TaskID
	PlaceID       *tlmodel.PlaceID
	Status        tlmodel.Status
	Importance    float64
	CreditInc     float64
	Credits       float64
	DesiredCredit float64
	IsSequential  bool
	IsAcked       bool
	LastCompleted *tltime.EpochMillis

	NormalizedImportance float64
	Priority             float64
	OutlineIndex         int
	IsContainer          bool
	IsPending            bool
	IsReady              bool
	Visible              bool
	EffectiveDueDate      *tltime.EpochMillis
	EffectiveLeadTime     tltime.EpochMillis
	EffectiveScheduleSource ScheduleSource
}

// record is the pipeline's internal per-task working state, never exposed
// directly (ComputedTask and ScoreTrace are projected from it).
type record struct {
	task *tlmodel.Task

	effectiveDueDate      *tltime.EpochMillis
	effectiveLeadTime     tltime.EpochMillis
	effectiveScheduleSource ScheduleSource

	outlineIndex int

	effectiveCredits float64
	leadTimeFactor   float64
	leadTimeStage    leadtime.Stage

	rawVisibility visibility.Result
	visible       bool

	feedbackFactor float64

	normalizedImportance float64
	hasVisibleDescendant bool
	isContainer          bool
	priority             float64
}

// ScoreTrace is the diagnostic projection returned by Trace (SPEC_FULL.md
// §6, score_trace): every factor and intermediate value that fed a task's
// final priority, so a caller can explain a ranking without re-deriving it.
type ScoreTrace struct {
	TaskID                tlmodel.TaskID
	Priority              float64
	NormalizedImportance  float64
	ImportanceChain       []float64 // root-to-task normalized_importance values
	EffectiveCredits      float64
	FeedbackFactor        float64
	FeedbackTargetPercent float64
	FeedbackActualPercent float64
	LeadTimeFactor        float64
	LeadTimeStage         leadtime.Stage
	Visibility            visibility.Result
	IsContainer           bool
}

// Prioritize runs the full pipeline and returns a sorted, filtered
// projection (spec.md §4.8). It never errors: malformed input is coerced
// to safe defaults per spec.md §7.
func Prioritize(d *tlmodel.DocumentState, filter visibility.ViewFilter, opts Options) []ComputedTask {
	records, order, _ := computeAll(d, filter, opts)
	return sortAndFilter(records, order, opts)
}

// Trace re-runs the pipeline with full visibility (as if include_hidden and
// PlanOutline were set, so the diagnostic reflects the true computed state
// regardless of the caller's filtering intent) and projects the named
// task's ScoreTrace, or false if the task does not exist.
func Trace(d *tlmodel.DocumentState, taskID tlmodel.TaskID, filter visibility.ViewFilter, opts Options) (ScoreTrace, bool) {
	traceOpts := opts
	traceOpts.IncludeHidden = true
	traceOpts.Mode = ModePlanOutline
	records, _, balanceData := computeAll(d, filter, traceOpts)

	r, ok := records[taskID]
	if !ok {
		return ScoreTrace{}, false
	}

	chain := importanceChain(records, taskID)
	target, actual := feedbackInputsFor(records, balanceData, taskID)
	return ScoreTrace{
		TaskID:                taskID,
		Priority:              r.priority,
		NormalizedImportance:  r.normalizedImportance,
		ImportanceChain:       chain,
		EffectiveCredits:      r.effectiveCredits,
		FeedbackFactor:        r.feedbackFactor,
		FeedbackTargetPercent: target,
		FeedbackActualPercent: actual,
		LeadTimeFactor:        r.leadTimeFactor,
		LeadTimeStage:         r.leadTimeStage,
		Visibility:            r.rawVisibility,
		IsContainer:           r.isContainer,
	}, true
}

// feedbackInputsFor walks id's parent chain to its root and returns that
// root's target/actual balance percentages, the inputs score_trace exposes
// for the feedback factor (spec.md §6).
func feedbackInputsFor(records map[tlmodel.TaskID]*record, data balance.Data, id tlmodel.TaskID) (target, actual float64) {
	cur := id
	for {
		r, ok := records[cur]
		if !ok || r.task.ParentID == nil {
			break
		}
		cur = *r.task.ParentID
	}
	for _, item := range data.Items {
		if item.RootID == cur {
			return item.TargetPercent, item.ActualPercent
		}
	}
	return 0, 0
}

func importanceChain(records map[tlmodel.TaskID]*record, id tlmodel.TaskID) []float64 {
	var chain []float64
	for cur, ok := records[id], true; ok; {
		chain = append([]float64{cur.normalizedImportance}, chain...)
		if cur.task.ParentID == nil {
			break
		}
		cur, ok = records[*cur.task.ParentID]
	}
	return chain
}

// computeAll runs phases 1-8 of spec.md §4.8 and returns every task's
// record, the outline-ordered id sequence, and the balance snapshot used
// to derive per-root feedback (kept for Trace's diagnostic use).
func computeAll(d *tlmodel.DocumentState, filter visibility.ViewFilter, opts Options) (map[tlmodel.TaskID]*record, []tlmodel.TaskID, balance.Data) {
	healed := d.Clone()
	heal.Heal(healed)

	now := opts.resolvedNow()

	records := make(map[tlmodel.TaskID]*record, len(healed.Tasks))
	for id, t := range healed.Tasks {
		due, lead, source := resolveSchedule(t)
		records[id] = &record{
			task:                  t,
			effectiveDueDate:      due,
			effectiveLeadTime:     lead,
			effectiveScheduleSource: source,
		}
	}

	order := assignOutlineIndex(healed, records)

	for _, r := range records {
		r.effectiveCredits = balance.EffectiveCredits(r.task.Credits, r.task.CreditsTS, now, hShort)
		r.leadTimeFactor, r.leadTimeStage = computeLeadTime(r.effectiveDueDate, r.effectiveLeadTime, now)
	}

	for _, r := range records {
		r.rawVisibility = visibility.Evaluate(r.task.PlaceID, healed.Places, filter, now)
		r.visible = r.rawVisibility.Visible
	}

	balanceData := balance.Compute(healed, now)
	feedbackByRoot := feedback.Compute(balanceData, feedback.Options{Sensitivity: opts.FeedbackSensitivity})

	evaluateTree(healed, records, order, feedbackByRoot, now)

	for _, r := range records {
		r.priority = safeFloat(r.priority)
	}

	return records, order, balanceData
}

func resolveSchedule(t *tlmodel.Task) (*tltime.EpochMillis, tltime.EpochMillis, ScheduleSource) {
	if t.Schedule.Type == tlmodel.ScheduleRoutinely && t.Schedule.LastDone != nil && t.Repeat != nil {
		due := *t.Schedule.LastDone + tltime.IntervalMillis(*t.Repeat)
		return &due, t.Schedule.LeadTime, ScheduleSourceSelf
	}
	if (t.Schedule.Type == tlmodel.ScheduleDueDate || t.Schedule.Type == tlmodel.ScheduleCalendar) && t.Schedule.DueDate != nil {
		due := *t.Schedule.DueDate
		return &due, t.Schedule.LeadTime, ScheduleSourceSelf
	}
	return nil, t.Schedule.LeadTime, ScheduleSourceSelf
}

func computeLeadTime(due *tltime.EpochMillis, lead tltime.EpochMillis, now tltime.EpochMillis) (float64, leadtime.Stage) {
	res := leadtime.Compute(due, lead, now)
	factor := res.Factor
	if math.IsNaN(factor) {
		factor = 0
	}
	return factor, res.Stage
}

// assignOutlineIndex runs phases 2-3: an iterative pre-order DFS over
// root_task_ids and each task's child_task_ids (already deduplicated and
// ordered by the healer), assigning a monotonically increasing
// outline_index. Returns the ids in that same pre-order.
func assignOutlineIndex(d *tlmodel.DocumentState, records map[tlmodel.TaskID]*record) []tlmodel.TaskID {
	order := make([]tlmodel.TaskID, 0, len(d.Tasks))
	idx := 0

	type frame struct {
		ids []tlmodel.TaskID
		pos int
	}
	stack := []*frame{{ids: d.RootTaskIDs}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.pos >= len(top.ids) {
			stack = stack[:len(stack)-1]
			continue
		}
		id := top.ids[top.pos]
		top.pos++

		r, ok := records[id]
		if !ok {
			continue
		}
		r.outlineIndex = idx
		idx++
		order = append(order, id)

		if len(r.task.ChildTaskIDs) > 0 {
			stack = append(stack, &frame{ids: r.task.ChildTaskIDs})
		}
	}
	return order
}

// evaluateTree runs phase 7: schedule inheritance, importance propagation,
// and post-order container/priority aggregation. The ascending pass
// mirrors pre-order (every ancestor has a smaller outline_index than its
// descendants, by construction of assignOutlineIndex) and the descending
// pass mirrors post-order, so neither needs recursion.
func evaluateTree(d *tlmodel.DocumentState, records map[tlmodel.TaskID]*record, order []tlmodel.TaskID, feedbackByRoot map[tlmodel.TaskID]float64, now tltime.EpochMillis) {
	for _, rootID := range d.RootTaskIDs {
		r, ok := records[rootID]
		if !ok {
			continue
		}
		r.normalizedImportance = r.task.Importance
		r.feedbackFactor = rootFeedback(feedbackByRoot, rootID)
	}

	for _, id := range order {
		r := records[id]
		propagateToChildren(records, r, now)
	}

	for i := len(order) - 1; i >= 0; i-- {
		r := records[order[i]]
		finalizeNode(r, records)
	}
}

func rootFeedback(feedbackByRoot map[tlmodel.TaskID]float64, rootID tlmodel.TaskID) float64 {
	if f, ok := feedbackByRoot[rootID]; ok {
		return f
	}
	return 1.0 // Inbox and other excluded roots: neutral feedback.
}

func propagateToChildren(records map[tlmodel.TaskID]*record, parent *record, now tltime.EpochMillis) {
	children := parent.task.ChildTaskIDs
	if len(children) == 0 {
		return
	}

	for _, cid := range children {
		c, ok := records[cid]
		if !ok {
			continue
		}
		c.feedbackFactor = parent.feedbackFactor

		if c.effectiveDueDate == nil && parent.effectiveDueDate != nil {
			c.effectiveDueDate = parent.effectiveDueDate
			c.effectiveLeadTime = parent.effectiveLeadTime
			c.effectiveScheduleSource = ScheduleSourceAncestor
		}
	}

	for _, cid := range children {
		c, ok := records[cid]
		if !ok {
			continue
		}
		c.leadTimeFactor, c.leadTimeStage = computeLeadTime(c.effectiveDueDate, c.effectiveLeadTime, now)
	}

	// Sequential gating can override the freshly recomputed lead_time_factor
	// to 0 for blocked pending siblings; it runs after the recompute above
	// so the override sticks (spec.md §4.8 phase 7).
	if parent.task.IsSequential {
		assignSequentialImportance(records, parent, children)
	} else {
		assignParallelImportance(records, parent, children)
	}
}

func assignSequentialImportance(records map[tlmodel.TaskID]*record, parent *record, children []tlmodel.TaskID) {
	assigned := false
	for _, cid := range children {
		c, ok := records[cid]
		if !ok {
			continue
		}
		if c.task.Status != tlmodel.StatusPending {
			c.normalizedImportance = parent.normalizedImportance
			continue
		}
		if !assigned {
			c.normalizedImportance = parent.normalizedImportance
			assigned = true
		} else {
			c.normalizedImportance = 0
			c.leadTimeFactor = 0
		}
	}
}

func assignParallelImportance(records map[tlmodel.TaskID]*record, parent *record, children []tlmodel.TaskID) {
	var total float64
	for _, cid := range children {
		if c, ok := records[cid]; ok {
			total += c.task.Importance
		}
	}
	n := float64(len(children))
	for _, cid := range children {
		c, ok := records[cid]
		if !ok {
			continue
		}
		if total <= 0 {
			c.normalizedImportance = parent.normalizedImportance / n
			continue
		}
		c.normalizedImportance = (c.task.Importance / total) * parent.normalizedImportance
	}
}

func finalizeNode(r *record, records map[tlmodel.TaskID]*record) {
	var hasVisibleDescendant bool
	for _, cid := range r.task.ChildTaskIDs {
		c, ok := records[cid]
		if !ok {
			continue
		}
		if c.visible || c.hasVisibleDescendant {
			hasVisibleDescendant = true
		}
	}
	r.hasVisibleDescendant = hasVisibleDescendant

	if len(r.task.ChildTaskIDs) > 0 && hasVisibleDescendant {
		r.isContainer = true
		r.visible = false
		r.priority = 0
		return
	}

	vis := 0.0
	if r.visible {
		vis = 1.0
	}
	r.priority = safeFloat(vis * r.normalizedImportance * r.feedbackFactor * r.leadTimeFactor)
}

func safeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// sortAndFilter runs phases 8-11.
func sortAndFilter(records map[tlmodel.TaskID]*record, order []tlmodel.TaskID, opts Options) []ComputedTask {
	out := make([]ComputedTask, 0, len(order))
	for _, id := range order {
		r := records[id]
		isPending := r.task.Status == tlmodel.StatusPending
		out = append(out, ComputedTask{
			ID:                      r.task.ID,
			Title:                   r.task.Title,
			Notes:                   r.task.Notes,
			ParentID:                r.task.ParentID,
			ChildTaskIDs:            append([]tlmodel.TaskID(nil), r.task.ChildTaskIDs...),
			PlaceID:                 r.task.PlaceID,
			Status:                  r.task.Status,
			Importance:              r.task.Importance,
			CreditInc:               r.task.CreditInc,
			Credits:                 r.task.Credits,
			DesiredCredit:           r.task.DesiredCredit,
			IsSequential:            r.task.IsSequential,
			IsAcked:                 r.task.IsAcked,
			LastCompleted:           r.task.LastCompleted,
			NormalizedImportance:    r.normalizedImportance,
			Priority:                r.priority,
			OutlineIndex:            r.outlineIndex,
			IsContainer:             r.isContainer,
			IsPending:               isPending,
			IsReady:                 isPending && r.leadTimeFactor > 0,
			Visible:                 r.visible,
			EffectiveDueDate:        r.effectiveDueDate,
			EffectiveLeadTime:       r.effectiveLeadTime,
			EffectiveScheduleSource: r.effectiveScheduleSource,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if math.Abs(out[i].Priority-out[j].Priority) > PriorityEpsilon {
			return out[i].Priority > out[j].Priority
		}
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].OutlineIndex < out[j].OutlineIndex
	})

	planOutline := opts.Mode == ModePlanOutline

	filtered := out[:0]
	for _, ct := range out {
		if !ct.Visible && !opts.IncludeHidden {
			continue
		}
		if ct.Status == tlmodel.StatusDone && ct.IsAcked && !planOutline {
			continue
		}
		if ct.Priority <= MinPriority && !opts.IncludeHidden && !planOutline {
			continue
		}
		filtered = append(filtered, ct)
	}
	return filtered
}
