// internal/httpapi/server.go
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/user/secretary/internal/dispatch"
	"github.com/user/secretary/internal/scheduler"
	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/turn"
	"github.com/user/secretary/internal/types"
)

// defaultSessionKey serves clients that do not manage their own sessions.
const defaultSessionKey = "http:default"

// replyTimeout bounds how long a chat request waits for its turn to be
// processed before giving up.
const replyTimeout = 60 * time.Second

// Server exposes the conversational API and the notification poll surface.
type Server struct {
	registry *state.Registry
	engine   *turn.Engine
	turns    *turn.Queue
	notices  *dispatch.Queue
	ledger   *state.Ledger
	sched    *scheduler.Scheduler
	mux      *http.ServeMux
}

// NewServer creates the HTTP API server. ledger and sched may be nil when
// reminders are disabled; their counters then report zero.
func NewServer(registry *state.Registry, engine *turn.Engine, turns *turn.Queue, notices *dispatch.Queue, ledger *state.Ledger, sched *scheduler.Scheduler) *Server {
	s := &Server{
		registry: registry,
		engine:   engine,
		turns:    turns,
		notices:  notices,
		ledger:   ledger,
		sched:    sched,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /conversation/clear", s.handleClear)
	s.mux.HandleFunc("GET /notifications", s.handleNotifications)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	Message    string `json:"message"`
	SessionKey string `json:"session_key"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}
	if req.SessionKey == "" {
		req.SessionKey = defaultSessionKey
	}

	inbound := &types.InboundTurn{
		Source:     "http",
		SessionKey: types.SessionKey(req.SessionKey),
		Text:       req.Message,
	}

	replies := make(chan string, 1)
	err := s.engine.Handle(s.turns, inbound, func(response string) {
		replies <- response
	})
	if err != nil {
		slog.Error("chat enqueue failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	select {
	case response := <-replies:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"response":    response,
			"session_key": req.SessionKey,
		})
	case <-time.After(replyTimeout):
		http.Error(w, `{"error":"timed out waiting for reply"}`, http.StatusGatewayTimeout)
	case <-r.Context().Done():
	}
}

// clearRequest is the JSON body for POST /conversation/clear.
type clearRequest struct {
	SessionKey string `json:"session_key"`
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	// An empty body clears the default session.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.SessionKey == "" {
		req.SessionKey = defaultSessionKey
	}

	if conv, ok := s.registry.Lookup(types.SessionKey(req.SessionKey)); ok {
		conv.Clear()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":      "cleared",
		"session_key": req.SessionKey,
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, `{"error":"limit must be a non-negative integer"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}
	flush := r.URL.Query().Get("flush") == "true"

	var items []*types.Notification
	if flush {
		items = s.notices.Drain(limit)
	} else {
		items = s.notices.Peek(limit)
	}
	if items == nil {
		items = []*types.Notification{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notifications": items,
		"remaining":     s.notices.Depth(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	agg := s.registry.Stats()
	sent, pendingCustom := 0, 0
	if s.ledger != nil {
		sent = s.ledger.Count()
	}
	if s.sched != nil {
		pendingCustom = s.sched.PendingCustom()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sessions":                 s.registry.Len(),
		"messages":                 agg.Messages,
		"user_messages":            agg.UserMessages,
		"assistant_messages":       agg.AssistantMessages,
		"pending_actions":          agg.PendingActions,
		"notifications_queued":     s.notices.Depth(),
		"sent_reminders":           sent,
		"custom_reminders_pending": pendingCustom,
	})
}
