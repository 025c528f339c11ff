package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/secretary/internal/dispatch"
	"github.com/user/secretary/internal/resolver"
	"github.com/user/secretary/internal/scheduler"
	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/turn"
	"github.com/user/secretary/internal/types"
)

// echoExtractor replies with the text, never calling tools.
type echoExtractor struct{}

func (echoExtractor) Extract(ctx context.Context, history []types.Message, pending []*types.PendingAction, text string) (*types.Call, string, error) {
	return nil, "echo: " + text, nil
}

type nopGateway struct{}

func (nopGateway) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*types.Event, error) {
	return nil, nil
}
func (nopGateway) CreateEvent(ctx context.Context, create *types.EventCreate) (*types.Event, error) {
	return nil, nil
}
func (nopGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, update *types.EventUpdate) (*types.Event, error) {
	return nil, nil
}
func (nopGateway) SearchEvents(ctx context.Context, calendarID, query string) ([]*types.Event, error) {
	return nil, nil
}
func (nopGateway) FreeBusy(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (*types.FreeBusy, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *state.Registry, *dispatch.Queue) {
	t.Helper()

	registry := state.NewRegistry(50)
	res := resolver.New(nopGateway{}, nil, "primary", 30*time.Minute)
	engine := turn.NewEngine(registry, echoExtractor{}, res, 10)

	turns := turn.NewQueue(2)
	turns.Start(context.Background())
	t.Cleanup(turns.Stop)
	turns.SetProcessor(engine.Process)

	notices := dispatch.NewQueue(100)
	return NewServer(registry, engine, turns, notices, nil, nil), registry, notices
}

func TestChatRoundTrip(t *testing.T) {
	server, registry, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "hello"}`))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["response"] != "echo: hello" {
		t.Errorf("unexpected response %q", resp["response"])
	}
	if resp["session_key"] != defaultSessionKey {
		t.Errorf("expected default session key, got %q", resp["session_key"])
	}

	stats := registry.Get(defaultSessionKey).Stats()
	if stats.UserMessages != 1 || stats.AssistantMessages != 1 {
		t.Errorf("expected recorded exchange, got %+v", stats)
	}
}

func TestChatValidation(t *testing.T) {
	server, _, _ := newTestServer(t)

	for _, body := range []string{`{`, `{"message": ""}`} {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestConversationClear(t *testing.T) {
	server, registry, _ := newTestServer(t)

	conv := registry.Get(defaultSessionKey)
	conv.AppendUser("hello")
	action := types.NewPendingAction(types.KindCreateEvent)
	conv.SetPending(action)

	req := httptest.NewRequest(http.MethodPost, "/conversation/clear", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	stats := conv.Stats()
	if stats.Messages != 0 || stats.PendingActions != 0 {
		t.Errorf("expected cleared conversation, got %+v", stats)
	}
}

func TestNotificationsPeekAndFlush(t *testing.T) {
	server, _, notices := newTestServer(t)

	for i := 0; i < 3; i++ {
		notices.Enqueue(&types.Notification{ID: types.NewNoticeID(), Summary: "event", Text: "reminder", At: time.Now()})
	}

	// Default read does not consume.
	req := httptest.NewRequest(http.MethodGet, "/notifications?limit=2", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	var resp struct {
		Notifications []*types.Notification `json:"notifications"`
		Remaining     int                   `json:"remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notifications) != 2 || resp.Remaining != 3 {
		t.Errorf("peek: got %d items, %d remaining", len(resp.Notifications), resp.Remaining)
	}

	// Flush consumes.
	req = httptest.NewRequest(http.MethodGet, "/notifications?flush=true", nil)
	w = httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notifications) != 3 || resp.Remaining != 0 {
		t.Errorf("flush: got %d items, %d remaining", len(resp.Notifications), resp.Remaining)
	}
}

func TestNotificationsBadLimit(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/notifications?limit=nope", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	server, registry, notices := newTestServer(t)

	conv := registry.Get("http:alice")
	conv.AppendUser("hi")
	conv.AppendAssistant("hello", nil)
	notices.Enqueue(&types.Notification{ID: types.NewNoticeID(), Text: "r"})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["sessions"] != 1 || resp["messages"] != 2 {
		t.Errorf("unexpected counters %v", resp)
	}
	if resp["user_messages"] != 1 || resp["assistant_messages"] != 1 {
		t.Errorf("unexpected message split %v", resp)
	}
	if resp["notifications_queued"] != 1 {
		t.Errorf("expected queued notification counted, got %v", resp)
	}
	// Without a ledger or scheduler the reminder counters report zero.
	if resp["sent_reminders"] != 0 || resp["custom_reminders_pending"] != 0 {
		t.Errorf("expected zero reminder counters, got %v", resp)
	}
}

func TestStatsReminderCounters(t *testing.T) {
	registry := state.NewRegistry(50)
	res := resolver.New(nopGateway{}, nil, "primary", 30*time.Minute)
	engine := turn.NewEngine(registry, echoExtractor{}, res, 10)

	turns := turn.NewQueue(2)
	turns.Start(context.Background())
	t.Cleanup(turns.Stop)
	turns.SetProcessor(engine.Process)

	notices := dispatch.NewQueue(100)
	dispatcher := dispatch.NewDispatcher(notices, dispatch.NewRegistry(), nil)

	ledger, err := state.NewLedger(filepath.Join(t.TempDir(), "sent.json"))
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now().Add(2 * time.Hour)
	if err := ledger.Record(state.ReminderKey("evt-1", start, 60), start.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	sched := scheduler.New(nopGateway{}, ledger, dispatcher, "primary", nil, time.Minute)
	sched.AddCustom("call mom", time.Now().Add(time.Hour))
	sched.AddCustom("stretch", time.Now().Add(2*time.Hour))

	server := NewServer(registry, engine, turns, notices, ledger, sched)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["sent_reminders"] != 1 {
		t.Errorf("expected 1 sent reminder, got %v", resp)
	}
	if resp["custom_reminders_pending"] != 2 {
		t.Errorf("expected 2 pending custom reminders, got %v", resp)
	}
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}
