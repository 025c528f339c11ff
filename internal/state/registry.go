// internal/state/registry.go
package state

import (
	"sync"

	"github.com/user/secretary/internal/types"
)

// Registry maps session keys to their conversations. Conversations are
// created on first contact and torn down explicitly; there is no ambient
// global state.
type Registry struct {
	mu         sync.RWMutex
	maxHistory int
	sessions   map[types.SessionKey]*Conversation
}

// NewRegistry creates an empty session registry. maxHistory is applied to
// every conversation it constructs.
func NewRegistry(maxHistory int) *Registry {
	return &Registry{
		maxHistory: maxHistory,
		sessions:   make(map[types.SessionKey]*Conversation),
	}
}

// Get returns the conversation for the key, creating it on first contact.
func (r *Registry) Get(key types.SessionKey) *Conversation {
	r.mu.RLock()
	conv, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return conv
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.sessions[key]; ok {
		return conv
	}
	conv = NewConversation(key, r.maxHistory)
	r.sessions[key] = conv
	return conv
}

// Lookup returns the conversation for the key without creating one.
func (r *Registry) Lookup(key types.SessionKey) (*Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.sessions[key]
	return conv, ok
}

// Remove tears down the session for the key.
func (r *Registry) Remove(key types.SessionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Keys returns all registered session keys.
func (r *Registry) Keys() []types.SessionKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]types.SessionKey, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	return keys
}

// Stats aggregates exact counters across all sessions.
func (r *Registry) Stats() ConversationStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total ConversationStats
	for _, conv := range r.sessions {
		s := conv.Stats()
		total.Messages += s.Messages
		total.UserMessages += s.UserMessages
		total.AssistantMessages += s.AssistantMessages
		total.PendingActions += s.PendingActions
	}
	return total
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
