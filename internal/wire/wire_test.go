package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
)

func TestMarshal_UsesCamelCaseKeys(t *testing.T) {
	t.Parallel()
	d := tlmodel.NewDocumentState()
	due := tltime.EpochMillis(1000)
	d.Tasks["a"] = &tlmodel.Task{
		ID: "a", Title: "x", Status: tlmodel.StatusPending,
		Schedule: tlmodel.Schedule{Type: tlmodel.ScheduleDueDate, DueDate: &due},
	}
	d.RootTaskIDs = []tlmodel.TaskID{"a"}

	out, err := Marshal(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(out)
	for _, key := range []string{`"rootTaskIds"`, `"creditIncrement"`, `"desiredCredits"`, `"dueDate"`} {
		if !strings.Contains(s, key) {
			t.Errorf("expected wire output to contain %s, got %s", key, s)
		}
	}
}

func TestRoundTrip_PreservesKnownFields(t *testing.T) {
	t.Parallel()
	due := tltime.EpochMillis(5000)
	parent := tlmodel.TaskID("p")
	place := tlmodel.PlaceID("home")

	d := tlmodel.NewDocumentState()
	d.Tasks["p"] = &tlmodel.Task{ID: "p", Title: "parent", Status: tlmodel.StatusPending, ChildTaskIDs: []tlmodel.TaskID{"a"}}
	d.Tasks["a"] = &tlmodel.Task{
		ID: "a", Title: "child", Notes: "some notes", ParentID: &parent, PlaceID: &place,
		Status: tlmodel.StatusPending, Importance: 0.75, CreditInc: 0.25, Credits: 1.5,
		DesiredCredit: 2.0, CreditsTS: 100, PriorityTS: 200,
		Schedule:     tlmodel.Schedule{Type: tlmodel.ScheduleDueDate, DueDate: &due, LeadTime: 3000},
		Repeat:       &tltime.RepeatConfig{Frequency: tltime.FrequencyWeekly, Interval: 2},
		IsSequential: true,
	}
	d.RootTaskIDs = []tlmodel.TaskID{"p"}
	d.Places["home"] = &tlmodel.Place{ID: "home", Name: "Home", Hours: tlmodel.OpenHours{Mode: tlmodel.OpenHoursAlwaysOpen}}

	raw, err := Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	a := got.Tasks["a"]
	if a == nil {
		t.Fatalf("task a missing after round trip")
	}
	if a.Title != "child" || a.Notes != "some notes" || a.Importance != 0.75 {
		t.Errorf("basic fields lost: %+v", a)
	}
	if a.ParentID == nil || *a.ParentID != "p" {
		t.Errorf("parent_id lost: %v", a.ParentID)
	}
	if a.PlaceID == nil || *a.PlaceID != "home" {
		t.Errorf("place_id lost: %v", a.PlaceID)
	}
	if a.Schedule.DueDate == nil || *a.Schedule.DueDate != due {
		t.Errorf("due_date lost: %v", a.Schedule.DueDate)
	}
	if a.Repeat == nil || a.Repeat.Frequency != tltime.FrequencyWeekly || a.Repeat.Interval != 2 {
		t.Errorf("repeat_config lost: %+v", a.Repeat)
	}
	if !a.IsSequential {
		t.Errorf("is_sequential lost")
	}
	if got.Places["home"].Name != "Home" {
		t.Errorf("place lost: %+v", got.Places["home"])
	}
	if !containsID(got.Tasks["p"].ChildTaskIDs, "a") {
		t.Errorf("child_task_ids lost: %v", got.Tasks["p"].ChildTaskIDs)
	}
}

// Unknown fields a future client writes into a task must survive a
// read-modify-write round trip untouched.
func TestRoundTrip_PreservesUnknownExtraFields(t *testing.T) {
	t.Parallel()
	raw := `{
		"tasks": {
			"a": {"id":"a","title":"x","status":"Pending","schedule":{"type":"Once"},"futureField":"keep-me","nested":{"x":1}}
		},
		"rootTaskIds": ["a"],
		"places": {},
		"metadata": {}
	}`
	d, err := Unmarshal([]byte(raw))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	extra := d.Tasks["a"].Extra
	if extra == nil || len(extra["futureField"]) == 0 {
		t.Fatalf("expected futureField preserved in Extra, got %v", extra)
	}

	out, err := Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	var tasks map[string]json.RawMessage
	if err := json.Unmarshal(decoded["tasks"], &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	var taskA map[string]json.RawMessage
	if err := json.Unmarshal(tasks["a"], &taskA); err != nil {
		t.Fatalf("decode task a: %v", err)
	}
	if string(taskA["futureField"]) != `"keep-me"` {
		t.Errorf("futureField = %s, want \"keep-me\"", taskA["futureField"])
	}
	if _, ok := taskA["nested"]; !ok {
		t.Errorf("nested extra field dropped")
	}
}

func TestUnmarshal_MalformedJSONFails(t *testing.T) {
	t.Parallel()
	_, err := Unmarshal([]byte(`{"tasks": [}`))
	if err == nil {
		t.Fatalf("expected error on malformed JSON")
	}
}

func containsID(ids []tlmodel.TaskID, target tlmodel.TaskID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
