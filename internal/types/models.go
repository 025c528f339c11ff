// internal/types/models.go
package types

import (
	"sort"
	"time"
)

// Message is a single conversation entry. Messages are immutable once
// appended; ordering is insertion order.
type Message struct {
	Role     string            `json:"role"` // "user" or "assistant"
	Text     string            `json:"text"`
	At       time.Time         `json:"at"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ActionKind identifies the calendar operation a pending action resolves to.
type ActionKind string

const (
	KindCreateEvent    ActionKind = "create_event"
	KindUpdateEvent    ActionKind = "update_event"
	KindSearchEvents   ActionKind = "search_events"
	KindListEvents     ActionKind = "list_events"
	KindCreateReminder ActionKind = "create_reminder"
	KindCancel         ActionKind = "cancel"
)

// PendingAction is a not-yet-complete user intent awaiting required fields.
type PendingAction struct {
	ID        ActionID          `json:"id"`
	Kind      ActionKind        `json:"kind"`
	Collected map[string]string `json:"collected"`
	Missing   []string          `json:"missing"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Attempts  int               `json:"attempts"`
}

// NewPendingAction creates an empty action of the given kind.
func NewPendingAction(kind ActionKind) *PendingAction {
	now := time.Now()
	return &PendingAction{
		ID:        NewActionID(),
		Kind:      kind,
		Collected: make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Merge copies fields into the collected map, last write wins per field.
// Empty values are ignored so a vague follow-up cannot erase earlier answers.
func (a *PendingAction) Merge(fields map[string]string) {
	for k, v := range fields {
		if v == "" {
			continue
		}
		a.Collected[k] = v
	}
	a.UpdatedAt = time.Now()
}

// Recompute rebuilds Missing as required minus collected, preserving the
// order of the required list so the next-question order stays stable.
func (a *PendingAction) Recompute(required []string) {
	missing := make([]string, 0, len(required))
	for _, f := range required {
		if a.Collected[f] == "" {
			missing = append(missing, f)
		}
	}
	a.Missing = missing
}

// Complete reports whether every required field has been collected.
func (a *PendingAction) Complete() bool {
	return len(a.Missing) == 0
}

// NextMissing returns the single field to ask the user for next.
func (a *PendingAction) NextMissing() string {
	if len(a.Missing) == 0 {
		return ""
	}
	return a.Missing[0]
}

// MaxReminderOffsetMinutes caps how far ahead of an event any reminder
// rule may fire, default or per-event override. The scheduler's poll
// lookahead relies on this bound to keep every due pair inside its
// fetch window.
const MaxReminderOffsetMinutes = 7 * 24 * 60

// ReminderRule is a configured offset-before-start plus message template.
type ReminderRule struct {
	OffsetMinutes int    `json:"offset_minutes"`
	Template      string `json:"template,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// Event is a calendar event as returned by the gateway. The core never
// persists events; the gateway is the source of truth.
type Event struct {
	ID          string         `json:"id"`
	CalendarID  string         `json:"calendar_id"`
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Location    string         `json:"location,omitempty"`
	Attendees   []string       `json:"attendees,omitempty"`
	Status      string         `json:"status"`
	Overrides   []ReminderRule `json:"overrides,omitempty"`
}

// EventCreate carries the fields for a new event.
type EventCreate struct {
	CalendarID  string    `json:"calendar_id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// EventUpdate carries a partial update; nil fields are left unchanged.
type EventUpdate struct {
	Summary     *string    `json:"summary,omitempty"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Status      *string    `json:"status,omitempty"`
}

// BusyPeriod is a single busy interval from a free/busy query.
type BusyPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FreeBusy maps calendar ID to its busy intervals within the queried range.
type FreeBusy struct {
	TimeMin time.Time               `json:"time_min"`
	TimeMax time.Time               `json:"time_max"`
	Busy    map[string][]BusyPeriod `json:"busy"`
}

// Notification is a rendered reminder awaiting delivery. Ownership passes
// to the consumer on drain.
type Notification struct {
	ID      NoticeID  `json:"id"`
	EventID string    `json:"event_id,omitempty"`
	Summary string    `json:"summary"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Call is a structured tool invocation produced by the intent extractor.
type Call struct {
	Kind   ActionKind        `json:"kind"`
	Fields map[string]string `json:"fields"`
}

// FieldNames returns the call's field names in sorted order.
func (c *Call) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
