// internal/state/ledger.go
package state

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SentRecord marks one delivered reminder. Records are never mutated; a
// record becomes prunable once the event's end has passed.
type SentRecord struct {
	SentAt   time.Time `json:"sent_at"`
	EventEnd time.Time `json:"event_end"`
}

// Ledger is the file-backed sent-reminder record store. It is the sole
// idempotency guard against duplicate reminder delivery: at most one
// record exists per (event, start-time hash, offset) key. Keying on the
// start-time hash means a rescheduled event is treated as fresh, so its
// rules re-fire relative to the new time.
type Ledger struct {
	path    string
	mu      sync.Mutex
	records map[string]SentRecord
}

// NewLedger loads (or initializes) a ledger at the given file path.
func NewLedger(path string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		records: make(map[string]SentRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read reminder ledger: %w", err)
	}
	if err := json.Unmarshal(data, &l.records); err != nil {
		return nil, fmt.Errorf("unmarshal reminder ledger: %w", err)
	}
	return l, nil
}

// ReminderKey builds the composite ledger key for an (event, rule) pair.
func ReminderKey(eventID string, start time.Time, offsetMinutes int) string {
	h := fnv.New32a()
	h.Write([]byte(start.UTC().Format(time.RFC3339)))
	return fmt.Sprintf("%s|%08x|%d", eventID, h.Sum32(), offsetMinutes)
}

// Seen reports whether a reminder with this key was already sent.
func (l *Ledger) Seen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[key]
	return ok
}

// Record writes the sent record for the key and persists the ledger.
func (l *Ledger) Record(key string, eventEnd time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[key]; ok {
		return nil
	}
	l.records[key] = SentRecord{SentAt: time.Now(), EventEnd: eventEnd}
	return l.save()
}

// Prune drops records for events that ended before now. Returns the
// number of records removed.
func (l *Ledger) Prune(now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, rec := range l.records {
		if rec.EventEnd.Before(now) {
			delete(l.records, key)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, l.save()
}

// Count returns the number of retained sent records.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// save marshals with indentation and writes atomically. Caller must hold l.mu.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reminder ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp ledger: %w", err)
	}
	return nil
}
