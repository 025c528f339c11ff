// internal/state/conversation.go
package state

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/user/secretary/internal/types"
)

// ConversationStats is the exact counter surface exposed for /stats.
type ConversationStats struct {
	Messages          int `json:"messages"`
	UserMessages      int `json:"user_messages"`
	AssistantMessages int `json:"assistant_messages"`
	PendingActions    int `json:"pending_actions"`
}

// Conversation holds one session's message history and in-progress pending
// actions. History is bounded: once maxHistory is exceeded the oldest
// messages are evicted first. At most one pending action exists per kind.
type Conversation struct {
	mu         sync.Mutex
	key        types.SessionKey
	maxHistory int
	messages   []types.Message
	pending    map[types.ActionKind]*types.PendingAction
}

// NewConversation creates an empty conversation for the given session key.
func NewConversation(key types.SessionKey, maxHistory int) *Conversation {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &Conversation{
		key:        key,
		maxHistory: maxHistory,
		pending:    make(map[types.ActionKind]*types.PendingAction),
	}
}

// Key returns the session key this conversation belongs to.
func (c *Conversation) Key() types.SessionKey { return c.key }

// AppendUser appends a user message.
func (c *Conversation) AppendUser(text string) {
	c.append(types.Message{Role: "user", Text: text, At: time.Now()})
}

// AppendAssistant appends an assistant message with optional metadata
// (e.g. which tool kinds were invoked during the turn).
func (c *Conversation) AppendAssistant(text string, metadata map[string]string) {
	c.append(types.Message{Role: "assistant", Text: text, At: time.Now(), Metadata: metadata})
}

func (c *Conversation) append(msg types.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)
	if len(c.messages) > c.maxHistory {
		trimmed := len(c.messages) - c.maxHistory
		c.messages = c.messages[trimmed:]
		slog.Debug("trimmed conversation history", "session_key", string(c.key), "removed", trimmed)
	}
}

// Window returns the most recent size messages, oldest first. An
// out-of-range size is clamped to the available length, never an error.
func (c *Conversation) Window(size int) []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size < 0 {
		size = 0
	}
	if size > len(c.messages) {
		size = len(c.messages)
	}
	out := make([]types.Message, size)
	copy(out, c.messages[len(c.messages)-size:])
	return out
}

// Pending returns the open pending action of the given kind, or nil.
func (c *Conversation) Pending(kind types.ActionKind) *types.PendingAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[kind]
}

// SetPending stores an action, replacing any existing one of the same kind.
func (c *Conversation) SetPending(action *types.PendingAction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[action.Kind] = action
}

// PendingActions returns all open pending actions, most recently updated
// first.
func (c *Conversation) PendingActions() []*types.PendingAction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*types.PendingAction, 0, len(c.pending))
	for _, action := range c.pending {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// RemovePending drops the pending action of the given kind, if present.
func (c *Conversation) RemovePending(kind types.ActionKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, kind)
}

// SweepStale discards pending actions with no progress since the timeout.
// Returns the number of actions removed.
func (c *Conversation) SweepStale(timeout time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	removed := 0
	for kind, action := range c.pending {
		if action.UpdatedAt.Before(cutoff) {
			delete(c.pending, kind)
			removed++
			slog.Info("swept stale pending action",
				"session_key", string(c.key), "action_id", string(action.ID), "kind", string(kind))
		}
	}
	return removed
}

// Clear atomically drops all messages and all pending actions. Used for
// session reset; reminder state is untouched.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.pending = make(map[types.ActionKind]*types.PendingAction)
	slog.Info("conversation cleared", "session_key", string(c.key))
}

// Stats returns exact message and pending-action counts.
func (c *Conversation) Stats() ConversationStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := ConversationStats{
		Messages:       len(c.messages),
		PendingActions: len(c.pending),
	}
	for _, m := range c.messages {
		if m.Role == "user" {
			s.UserMessages++
		} else {
			s.AssistantMessages++
		}
	}
	return s
}
