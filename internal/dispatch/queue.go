// internal/dispatch/queue.go
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/user/secretary/internal/types"
)

// Queue is a capped FIFO of pending notifications. When full, the oldest
// notification is dropped to make room for the newest.
type Queue struct {
	mu    sync.Mutex
	cap   int
	items []*types.Notification
}

// NewQueue creates a queue holding at most cap notifications.
func NewQueue(cap int) *Queue {
	if cap <= 0 {
		cap = 1000
	}
	return &Queue{cap: cap}
}

// Enqueue appends a notification, evicting the oldest entry if the queue
// is at capacity.
func (q *Queue) Enqueue(n *types.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.cap {
		dropped := q.items[0]
		q.items = q.items[1:]
		slog.Warn("notification queue full, dropped oldest",
			"dropped_id", string(dropped.ID), "event_id", dropped.EventID)
	}
	q.items = append(q.items, n)
}

// Drain removes and returns up to limit notifications, oldest first.
// limit <= 0 drains everything.
func (q *Queue) Drain(limit int) []*types.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*types.Notification, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	return out
}

// Peek returns up to limit notifications, oldest first, without removing
// them. limit <= 0 returns all.
func (q *Queue) Peek(limit int) []*types.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*types.Notification, n)
	copy(out, q.items[:n])
	return out
}

// Depth returns the number of queued notifications.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
