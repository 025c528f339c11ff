package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/types"
)

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestSplitMessageRuneBoundary(t *testing.T) {
	// Three-byte runes never divide 4096 evenly, so a byte-indexed split
	// would leave a broken character at the end of every part.
	long := strings.Repeat("€", 2000)
	parts := splitMessage(long)
	if len(parts) < 2 {
		t.Fatalf("expected multiple parts, got %d", len(parts))
	}
	for i, part := range parts {
		if !utf8.ValidString(part) {
			t.Errorf("part %d is not valid UTF-8", i)
		}
		if len(part) > maxTelegramMessage {
			t.Errorf("part %d exceeds limit: %d bytes", i, len(part))
		}
	}
	if strings.Join(parts, "") != long {
		t.Error("parts do not rejoin to the original message")
	}
}

func TestStatusDoesNotCreateSession(t *testing.T) {
	registry := state.NewRegistry(10)
	a := &Adapter{registry: registry, chats: make(map[int64]struct{})}

	text := a.statusText(buildSessionKey(1, 2))
	if !strings.Contains(text, "Messages: 0") {
		t.Errorf("expected zero counters for unknown session, got %q", text)
	}
	if registry.Len() != 0 {
		t.Errorf("status created a session: registry has %d", registry.Len())
	}
}

func TestStatusReminderCounters(t *testing.T) {
	registry := state.NewRegistry(10)
	a := &Adapter{registry: registry, chats: make(map[int64]struct{})}

	// Nil ledger and scheduler still render, with zeros.
	text := a.statusText(buildSessionKey(1, 2))
	if !strings.Contains(text, "Reminders sent: 0") || !strings.Contains(text, "Custom reminders pending: 0") {
		t.Errorf("expected zero reminder counters, got %q", text)
	}
}

func TestBuildSessionKey(t *testing.T) {
	key := buildSessionKey(12345, 67890)
	if string(key) != "telegram:12345:67890" {
		t.Errorf("expected 'telegram:12345:67890', got %q", key)
	}
}

func TestNotificationHandlerNoChats(t *testing.T) {
	a := &Adapter{chats: make(map[int64]struct{})}

	// No known chats: the push is a no-op, not an error, so the scheduler
	// does not retry forever. The notification stays in the poll queue.
	handler := a.NotificationHandler()
	if err := handler(&types.Notification{Text: "reminder"}); err != nil {
		t.Errorf("expected nil with no chats, got %v", err)
	}
}
