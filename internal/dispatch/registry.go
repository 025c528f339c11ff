// internal/dispatch/registry.go
package dispatch

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/user/secretary/internal/types"
)

// Handler pushes a rendered notification to one transport.
type Handler func(n *types.Notification) error

// Registry routes notifications to push transports by destination prefix
// (e.g. "telegram:"). Transports that poll instead (HTTP API, terminal)
// read from the Queue directly and do not register here.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty push registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a push handler for destinations starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver pushes a notification to the handler whose prefix matches the
// destination. Returns a DispatchError when no handler matches or the
// handler fails, so the caller can retry.
func (r *Registry) Deliver(destination string, n *types.Notification) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for prefix, handler := range r.handlers {
		if strings.HasPrefix(destination, prefix) {
			if err := handler(n); err != nil {
				return &types.DispatchError{Reason: "push failed: " + err.Error()}
			}
			return nil
		}
	}
	return &types.DispatchError{Reason: "no handler for destination " + destination}
}

// Dispatcher fans reminders out to the poll queue and every registered
// push destination.
type Dispatcher struct {
	queue        *Queue
	registry     *Registry
	destinations []string
}

// NewDispatcher wires a queue and registry together. destinations lists
// the push targets every notification goes to (may be empty).
func NewDispatcher(queue *Queue, registry *Registry, destinations []string) *Dispatcher {
	return &Dispatcher{queue: queue, registry: registry, destinations: destinations}
}

// Queue exposes the poll queue for transports that pull.
func (d *Dispatcher) Queue() *Queue { return d.queue }

// Dispatch enqueues the notification and pushes it to each destination.
// The enqueue always happens; a push failure is returned so the scheduler
// can leave the reminder due and retry on the next tick.
func (d *Dispatcher) Dispatch(n *types.Notification) error {
	d.queue.Enqueue(n)

	var firstErr error
	for _, dest := range d.destinations {
		if err := d.registry.Deliver(dest, n); err != nil {
			slog.Warn("notification push failed", "destination", dest, "notification_id", string(n.ID), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
