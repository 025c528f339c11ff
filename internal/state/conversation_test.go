// internal/state/conversation_test.go
package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/user/secretary/internal/types"
)

func TestConversationWindowOrder(t *testing.T) {
	conv := NewConversation("test:1", 50)
	conv.AppendUser("first")
	conv.AppendAssistant("second", nil)
	conv.AppendUser("third")

	window := conv.Window(2)
	if len(window) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(window))
	}
	if window[0].Text != "second" || window[1].Text != "third" {
		t.Errorf("expected oldest-first [second third], got [%s %s]", window[0].Text, window[1].Text)
	}
}

func TestConversationWindowClamped(t *testing.T) {
	conv := NewConversation("test:1", 50)
	conv.AppendUser("only")

	if got := conv.Window(10); len(got) != 1 {
		t.Errorf("oversized window should clamp to 1, got %d", len(got))
	}
	if got := conv.Window(-3); len(got) != 0 {
		t.Errorf("negative window should clamp to 0, got %d", len(got))
	}
}

func TestConversationEvictsOldestFirst(t *testing.T) {
	conv := NewConversation("test:1", 3)
	for i := 0; i < 5; i++ {
		conv.AppendUser(fmt.Sprintf("msg-%d", i))
	}

	window := conv.Window(10)
	if len(window) != 3 {
		t.Fatalf("expected history bounded at 3, got %d", len(window))
	}
	if window[0].Text != "msg-2" {
		t.Errorf("expected oldest retained message msg-2, got %s", window[0].Text)
	}
}

func TestConversationPendingOnePerKind(t *testing.T) {
	conv := NewConversation("test:1", 50)

	first := types.NewPendingAction(types.KindCreateEvent)
	conv.SetPending(first)

	second := types.NewPendingAction(types.KindCreateEvent)
	conv.SetPending(second)

	got := conv.Pending(types.KindCreateEvent)
	if got == nil || got.ID != second.ID {
		t.Error("setting a pending action of the same kind should replace the existing one")
	}

	search := types.NewPendingAction(types.KindSearchEvents)
	conv.SetPending(search)
	if conv.Stats().PendingActions != 2 {
		t.Errorf("different kinds may coexist, got %d pending", conv.Stats().PendingActions)
	}
}

func TestConversationPendingActionsNewestFirst(t *testing.T) {
	conv := NewConversation("test:1", 50)

	older := types.NewPendingAction(types.KindSearchEvents)
	older.UpdatedAt = time.Now().Add(-time.Minute)
	conv.SetPending(older)

	newer := types.NewPendingAction(types.KindCreateEvent)
	conv.SetPending(newer)

	got := conv.PendingActions()
	if len(got) != 2 {
		t.Fatalf("expected 2 pending actions, got %d", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Error("expected most recently touched action first")
	}
}

func TestConversationClear(t *testing.T) {
	conv := NewConversation("test:1", 50)
	conv.AppendUser("hello")
	conv.SetPending(types.NewPendingAction(types.KindCreateEvent))

	conv.Clear()

	if s := conv.Stats(); s.Messages != 0 || s.PendingActions != 0 {
		t.Errorf("clear should drop messages and pending actions, got %+v", s)
	}
}

func TestConversationSweepStale(t *testing.T) {
	conv := NewConversation("test:1", 50)

	stale := types.NewPendingAction(types.KindCreateEvent)
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	conv.SetPending(stale)

	fresh := types.NewPendingAction(types.KindSearchEvents)
	conv.SetPending(fresh)

	if removed := conv.SweepStale(30 * time.Minute); removed != 1 {
		t.Fatalf("expected 1 swept action, got %d", removed)
	}
	if conv.Pending(types.KindCreateEvent) != nil {
		t.Error("stale action should be gone")
	}
	if conv.Pending(types.KindSearchEvents) == nil {
		t.Error("fresh action should survive the sweep")
	}
}

func TestConversationStats(t *testing.T) {
	conv := NewConversation("test:1", 50)
	conv.AppendUser("hi")
	conv.AppendAssistant("hello", map[string]string{"tool": "create_event"})
	conv.AppendUser("bye")

	s := conv.Stats()
	if s.Messages != 3 || s.UserMessages != 2 || s.AssistantMessages != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestRegistryCreatesOnFirstContact(t *testing.T) {
	reg := NewRegistry(50)

	conv := reg.Get("telegram:1:1")
	if conv == nil {
		t.Fatal("expected conversation")
	}
	if again := reg.Get("telegram:1:1"); again != conv {
		t.Error("expected same conversation instance on second contact")
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 session, got %d", reg.Len())
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry(50)
	reg.Get("http:abc")
	reg.Remove("http:abc")

	if _, ok := reg.Lookup("http:abc"); ok {
		t.Error("expected session removed")
	}
}

func TestRegistryStatsAggregates(t *testing.T) {
	reg := NewRegistry(50)
	reg.Get("a:1").AppendUser("x")
	reg.Get("b:2").AppendUser("y")
	reg.Get("b:2").AppendAssistant("z", nil)

	s := reg.Stats()
	if s.Messages != 3 || s.UserMessages != 2 || s.AssistantMessages != 1 {
		t.Errorf("unexpected aggregate stats: %+v", s)
	}
}
