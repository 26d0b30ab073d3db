// Package wire implements the camelCase JSON codec for a DocumentState
// (spec.md §6). Grounded on the teacher's internal/marshal package: a
// typed marshal/unmarshal boundary between storage and domain types,
// generalized from frontmatter/issue conversion to a direct JSON wire
// shape. Unknown fields on a task are preserved verbatim through a
// two-pass known/unknown field split, the same idiom as
// internal/marshal/frontmatter.go's dynamic frontmatter map applied here
// to a strongly typed shadow struct instead.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
)

type scheduleWire struct {
	Type     string               `json:"type"`
	DueDate  *tltime.EpochMillis  `json:"dueDate,omitempty"`
	LeadTime tltime.EpochMillis   `json:"leadTime,omitempty"`
	LastDone *tltime.EpochMillis  `json:"lastDone,omitempty"`
}

type repeatConfigWire struct {
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
}

type taskWire struct {
	ID                tlmodel.TaskID      `json:"id"`
	Title             string              `json:"title"`
	Notes             string              `json:"notes,omitempty"`
	ParentID          *tlmodel.TaskID     `json:"parentId,omitempty"`
	ChildTaskIDs      []tlmodel.TaskID    `json:"childTaskIds,omitempty"`
	PlaceID           *tlmodel.PlaceID    `json:"placeId,omitempty"`
	Status            string              `json:"status"`
	Importance        float64             `json:"importance"`
	CreditIncrement   float64             `json:"creditIncrement"`
	Credits           float64             `json:"credits"`
	DesiredCredits    float64             `json:"desiredCredits"`
	CreditsTimestamp  tltime.EpochMillis  `json:"creditsTimestamp"`
	PriorityTimestamp tltime.EpochMillis  `json:"priorityTimestamp"`
	Schedule          scheduleWire        `json:"schedule"`
	RepeatConfig      *repeatConfigWire   `json:"repeatConfig,omitempty"`
	IsSequential      bool                `json:"isSequential,omitempty"`
	IsAcknowledged    bool                `json:"isAcknowledged,omitempty"`
	LastCompletedAt   *tltime.EpochMillis `json:"lastCompletedAt,omitempty"`
}

// taskKnownFields lists the JSON keys taskWire already decodes; anything
// else found on the raw object is preserved into Task.Extra verbatim.
var taskKnownFields = map[string]bool{
	"id": true, "title": true, "notes": true, "parentId": true,
	"childTaskIds": true, "placeId": true, "status": true, "importance": true,
	"creditIncrement": true, "credits": true, "desiredCredits": true,
	"creditsTimestamp": true, "priorityTimestamp": true, "schedule": true,
	"repeatConfig": true, "isSequential": true, "isAcknowledged": true,
	"lastCompletedAt": true,
}

type placeHoursWire struct {
	Mode     string                `json:"mode"`
	Schedule map[string][]string   `json:"schedule,omitempty"`
}

type placeWire struct {
	ID             tlmodel.PlaceID    `json:"id"`
	Name           string             `json:"name"`
	Hours          placeHoursWire     `json:"hours"`
	IncludedPlaces []tlmodel.PlaceID  `json:"includedPlaces,omitempty"`
}

type metadataWire struct {
	AutomergeURL *string `json:"automerge_url,omitempty"`
}

type documentWire struct {
	Tasks       map[tlmodel.TaskID]json.RawMessage `json:"tasks"`
	RootTaskIDs []tlmodel.TaskID                    `json:"rootTaskIds"`
	Places      map[tlmodel.PlaceID]placeWire       `json:"places"`
	Metadata    metadataWire                        `json:"metadata"`
}

// Marshal encodes a document into the camelCase wire format.
func Marshal(d *tlmodel.DocumentState) ([]byte, error) {
	tasks := make(map[tlmodel.TaskID]json.RawMessage, len(d.Tasks))
	for id, t := range d.Tasks {
		raw, err := marshalTask(t)
		if err != nil {
			return nil, fmt.Errorf("marshal task %s: %w", id, err)
		}
		tasks[id] = raw
	}

	places := make(map[tlmodel.PlaceID]placeWire, len(d.Places))
	for id, p := range d.Places {
		places[id] = placeToWire(p)
	}

	doc := documentWire{
		Tasks:       tasks,
		RootTaskIDs: d.RootTaskIDs,
		Places:      places,
		Metadata:    metadataWire{AutomergeURL: d.DocumentURL},
	}
	return json.Marshal(doc)
}

// Unmarshal decodes the camelCase wire format into a DocumentState. It
// never fails on an individual task's unknown enum values: those are left
// for the healer (internal/heal) to coerce on the next hydration pass.
// It does fail on structurally invalid JSON (spec.md §7 DecodeError).
func Unmarshal(data []byte) (*tlmodel.DocumentState, error) {
	var doc documentWire
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	out := tlmodel.NewDocumentState()
	out.RootTaskIDs = doc.RootTaskIDs
	out.DocumentURL = doc.Metadata.AutomergeURL

	for id, raw := range doc.Tasks {
		t, err := unmarshalTask(raw)
		if err != nil {
			return nil, fmt.Errorf("decode task %s: %w", id, err)
		}
		t.ID = id
		out.Tasks[id] = t
	}

	for id, pw := range doc.Places {
		p := placeFromWire(pw)
		p.ID = id
		out.Places[id] = &p
	}

	return out, nil
}

func marshalTask(t *tlmodel.Task) ([]byte, error) {
	tw := taskWire{
		ID:                t.ID,
		Title:             t.Title,
		Notes:             t.Notes,
		ParentID:          t.ParentID,
		ChildTaskIDs:      t.ChildTaskIDs,
		PlaceID:           t.PlaceID,
		Status:            string(t.Status),
		Importance:        t.Importance,
		CreditIncrement:   t.CreditInc,
		Credits:           t.Credits,
		DesiredCredits:    t.DesiredCredit,
		CreditsTimestamp:  t.CreditsTS,
		PriorityTimestamp: t.PriorityTS,
		Schedule: scheduleWire{
			Type:     string(t.Schedule.Type),
			DueDate:  t.Schedule.DueDate,
			LeadTime: t.Schedule.LeadTime,
			LastDone: t.Schedule.LastDone,
		},
		IsSequential:    t.IsSequential,
		IsAcknowledged:  t.IsAcked,
		LastCompletedAt: t.LastCompleted,
	}
	if t.Repeat != nil {
		tw.RepeatConfig = &repeatConfigWire{Frequency: string(t.Repeat.Frequency), Interval: t.Repeat.Interval}
	}

	known, err := json.Marshal(tw)
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(t.Extra)+16)
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	for k, v := range t.Extra {
		if !taskKnownFields[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// unmarshalTask runs the two-pass known/unknown field split: decode into
// the typed shadow struct for known fields, and separately into a raw map
// to capture everything else into Extra.
func unmarshalTask(raw json.RawMessage) (*tlmodel.Task, error) {
	var tw taskWire
	if err := json.Unmarshal(raw, &tw); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if taskKnownFields[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage, len(all))
		}
		extra[k] = v
	}

	t := &tlmodel.Task{
		ID:            tw.ID,
		Title:         tw.Title,
		Notes:         tw.Notes,
		ParentID:      tw.ParentID,
		ChildTaskIDs:  tw.ChildTaskIDs,
		PlaceID:       tw.PlaceID,
		Status:        tlmodel.Status(tw.Status),
		Importance:    tw.Importance,
		CreditInc:     tw.CreditIncrement,
		Credits:       tw.Credits,
		DesiredCredit: tw.DesiredCredits,
		CreditsTS:     tw.CreditsTimestamp,
		PriorityTS:    tw.PriorityTimestamp,
		Schedule: tlmodel.Schedule{
			Type:     tlmodel.ScheduleType(tw.Schedule.Type),
			DueDate:  tw.Schedule.DueDate,
			LeadTime: tw.Schedule.LeadTime,
			LastDone: tw.Schedule.LastDone,
		},
		IsSequential:  tw.IsSequential,
		IsAcked:       tw.IsAcknowledged,
		LastCompleted: tw.LastCompletedAt,
		Extra:         extra,
	}
	if tw.RepeatConfig != nil {
		t.Repeat = &tltime.RepeatConfig{
			Frequency: tltime.Frequency(tw.RepeatConfig.Frequency),
			Interval:  tw.RepeatConfig.Interval,
		}
	}
	return t, nil
}

func placeToWire(p *tlmodel.Place) placeWire {
	schedule := make(map[string][]string, len(p.Hours.Schedule))
	for day, ranges := range p.Hours.Schedule {
		rendered := make([]string, len(ranges))
		for i, r := range ranges {
			rendered[i] = fmt.Sprintf("%02d:%02d-%02d:%02d", r.StartMinute/60, r.StartMinute%60, r.EndMinute/60, r.EndMinute%60)
		}
		schedule[day] = rendered
	}
	return placeWire{
		ID:             p.ID,
		Name:           p.Name,
		Hours:          placeHoursWire{Mode: string(p.Hours.Mode), Schedule: schedule},
		IncludedPlaces: p.IncludedPlaces,
	}
}

func placeFromWire(pw placeWire) tlmodel.Place {
	schedule := make(map[string][]tlmodel.TimeRange, len(pw.Hours.Schedule))
	for day, ranges := range pw.Hours.Schedule {
		var parsed []tlmodel.TimeRange
		for _, r := range ranges {
			if tr, ok := parseTimeRange(r); ok {
				parsed = append(parsed, tr)
			}
		}
		schedule[day] = parsed
	}
	return tlmodel.Place{
		Name: pw.Name,
		Hours: tlmodel.OpenHours{
			Mode:     tlmodel.OpenHoursMode(pw.Hours.Mode),
			Schedule: schedule,
		},
		IncludedPlaces: pw.IncludedPlaces,
	}
}

func parseTimeRange(s string) (tlmodel.TimeRange, bool) {
	var sh, sm, eh, em int
	if _, err := fmt.Sscanf(s, "%02d:%02d-%02d:%02d", &sh, &sm, &eh, &em); err != nil {
		return tlmodel.TimeRange{}, false
	}
	return tlmodel.TimeRange{StartMinute: sh*60 + sm, EndMinute: eh*60 + em}, true
}
