// internal/types/models_test.go
package types

import (
	"testing"
	"time"
)

func TestNewSessionKey(t *testing.T) {
	key := NewSessionKey("telegram", "123", "456")
	if key != SessionKey("telegram:123:456") {
		t.Errorf("expected telegram:123:456, got %s", key)
	}
}

func TestNewActionIDShort(t *testing.T) {
	id := NewActionID()
	if len(string(id)) != 8 {
		t.Errorf("expected 8-char action ID, got %q", id)
	}
}

func TestPendingActionRecompute(t *testing.T) {
	a := NewPendingAction(KindCreateEvent)
	required := []string{"summary", "start", "end"}

	a.Recompute(required)
	if len(a.Missing) != 3 {
		t.Fatalf("expected 3 missing fields, got %v", a.Missing)
	}
	if a.NextMissing() != "summary" {
		t.Errorf("expected next missing summary, got %s", a.NextMissing())
	}

	a.Merge(map[string]string{"summary": "dentist"})
	a.Recompute(required)
	if a.NextMissing() != "start" {
		t.Errorf("expected next missing start, got %s", a.NextMissing())
	}

	a.Merge(map[string]string{"start": "2026-09-01T08:00:00Z", "end": "2026-09-01T09:00:00Z"})
	a.Recompute(required)
	if !a.Complete() {
		t.Errorf("expected complete, missing=%v", a.Missing)
	}
}

func TestPendingActionMergeLastWriteWins(t *testing.T) {
	a := NewPendingAction(KindCreateEvent)
	a.Merge(map[string]string{"time": "3pm"})
	a.Merge(map[string]string{"time": "4pm"})
	if a.Collected["time"] != "4pm" {
		t.Errorf("expected 4pm, got %s", a.Collected["time"])
	}
}

func TestPendingActionMergeIgnoresEmpty(t *testing.T) {
	a := NewPendingAction(KindCreateEvent)
	a.Merge(map[string]string{"summary": "exam"})
	a.Merge(map[string]string{"summary": ""})
	if a.Collected["summary"] != "exam" {
		t.Errorf("empty value should not erase earlier answer, got %q", a.Collected["summary"])
	}
}

func TestPendingActionMergeUpdatesTimestamp(t *testing.T) {
	a := NewPendingAction(KindCreateEvent)
	before := a.UpdatedAt
	time.Sleep(time.Millisecond)
	a.Merge(map[string]string{"summary": "exam"})
	if !a.UpdatedAt.After(before) {
		t.Error("expected UpdatedAt to advance on merge")
	}
}

func TestCallFieldNamesSorted(t *testing.T) {
	c := &Call{Kind: KindCreateEvent, Fields: map[string]string{"time": "8am", "date": "monday"}}
	names := c.FieldNames()
	if len(names) != 2 || names[0] != "date" || names[1] != "time" {
		t.Errorf("expected sorted [date time], got %v", names)
	}
}
