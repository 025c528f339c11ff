package calendar

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/user/secretary/internal/types"
)

// Store is a SQLite-backed calendar gateway. It is the source of truth for
// event state; the conversation core and the reminder scheduler only ever
// see events through the Gateway interface it implements.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	calendar_id TEXT NOT NULL,
	summary TEXT NOT NULL,
	description TEXT DEFAULT '',
	start_at INTEGER NOT NULL,
	end_at INTEGER NOT NULL,
	location TEXT DEFAULT '',
	attendees TEXT DEFAULT '[]',
	status TEXT DEFAULT 'confirmed',
	overrides TEXT DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_calendar_start ON events(calendar_id, start_at);
`

// NewStore opens (creating if needed) the calendar database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create calendar db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open calendar db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init calendar schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func gatewayErr(op, reason string, err error) error {
	return &types.GatewayError{Op: op, Reason: reason, Err: err}
}

// ListEvents returns events on the calendar starting within [timeMin, timeMax),
// ordered by start time.
func (s *Store) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, calendar_id, summary, description, start_at, end_at, location, attendees, status, overrides
		FROM events
		WHERE calendar_id = ? AND start_at >= ? AND start_at < ? AND status != 'cancelled'
		ORDER BY start_at
	`, calendarID, timeMin.Unix(), timeMax.Unix())
	if err != nil {
		return nil, gatewayErr("list_events", "query failed", err)
	}
	defer rows.Close()

	return scanEvents(rows, "list_events")
}

// CreateEvent inserts a new event and returns it.
func (s *Store) CreateEvent(ctx context.Context, create *types.EventCreate) (*types.Event, error) {
	if create.Summary == "" {
		return nil, gatewayErr("create_event", "summary is required", nil)
	}
	if !create.End.After(create.Start) {
		return nil, gatewayErr("create_event", "end must be after start", nil)
	}

	event := &types.Event{
		ID:          uuid.New().String(),
		CalendarID:  create.CalendarID,
		Summary:     create.Summary,
		Description: create.Description,
		Start:       create.Start,
		End:         create.End,
		Location:    create.Location,
		Attendees:   create.Attendees,
		Status:      "confirmed",
	}
	if event.CalendarID == "" {
		event.CalendarID = "primary"
	}

	attendees, _ := json.Marshal(event.Attendees)
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, calendar_id, summary, description, start_at, end_at, location, attendees, status, overrides, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?)
	`, event.ID, event.CalendarID, event.Summary, event.Description,
		event.Start.Unix(), event.End.Unix(), event.Location, string(attendees), event.Status, now, now)
	if err != nil {
		return nil, gatewayErr("create_event", "insert failed", err)
	}
	return event, nil
}

// UpdateEvent applies a partial update and returns the updated event.
func (s *Store) UpdateEvent(ctx context.Context, calendarID, eventID string, update *types.EventUpdate) (*types.Event, error) {
	event, err := s.getEvent(ctx, calendarID, eventID)
	if err != nil {
		return nil, err
	}

	if update.Summary != nil {
		event.Summary = *update.Summary
	}
	if update.Description != nil {
		event.Description = *update.Description
	}
	if update.Start != nil {
		event.Start = *update.Start
	}
	if update.End != nil {
		event.End = *update.End
	}
	if update.Location != nil {
		event.Location = *update.Location
	}
	if update.Status != nil {
		event.Status = *update.Status
	}
	if !event.End.After(event.Start) {
		return nil, gatewayErr("update_event", "end must be after start", nil)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE events SET summary = ?, description = ?, start_at = ?, end_at = ?, location = ?, status = ?, updated_at = ?
		WHERE calendar_id = ? AND id = ?
	`, event.Summary, event.Description, event.Start.Unix(), event.End.Unix(),
		event.Location, event.Status, time.Now().Unix(), calendarID, eventID)
	if err != nil {
		return nil, gatewayErr("update_event", "update failed", err)
	}
	return event, nil
}

// SearchEvents finds events whose summary, description or location match
// the query text, most recent start first capped at 50.
func (s *Store) SearchEvents(ctx context.Context, calendarID, query string) ([]*types.Event, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, calendar_id, summary, description, start_at, end_at, location, attendees, status, overrides
		FROM events
		WHERE calendar_id = ? AND status != 'cancelled'
		  AND (summary LIKE ? OR description LIKE ? OR location LIKE ?)
		ORDER BY start_at DESC
		LIMIT 50
	`, calendarID, pattern, pattern, pattern)
	if err != nil {
		return nil, gatewayErr("search_events", "query failed", err)
	}
	defer rows.Close()

	return scanEvents(rows, "search_events")
}

// FreeBusy returns busy intervals per calendar within the range.
func (s *Store) FreeBusy(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (*types.FreeBusy, error) {
	fb := &types.FreeBusy{
		TimeMin: timeMin,
		TimeMax: timeMax,
		Busy:    make(map[string][]types.BusyPeriod),
	}

	for _, calID := range calendarIDs {
		rows, err := s.db.QueryContext(ctx, `
			SELECT start_at, end_at FROM events
			WHERE calendar_id = ? AND status != 'cancelled' AND start_at < ? AND end_at > ?
			ORDER BY start_at
		`, calID, timeMax.Unix(), timeMin.Unix())
		if err != nil {
			return nil, gatewayErr("free_busy", "query failed", err)
		}

		periods := []types.BusyPeriod{}
		for rows.Next() {
			var startAt, endAt int64
			if err := rows.Scan(&startAt, &endAt); err != nil {
				rows.Close()
				return nil, gatewayErr("free_busy", "scan failed", err)
			}
			periods = append(periods, types.BusyPeriod{
				Start: time.Unix(startAt, 0),
				End:   time.Unix(endAt, 0),
			})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, gatewayErr("free_busy", "scan failed", err)
		}
		rows.Close()
		fb.Busy[calID] = periods
	}
	return fb, nil
}

func (s *Store) getEvent(ctx context.Context, calendarID, eventID string) (*types.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, calendar_id, summary, description, start_at, end_at, location, attendees, status, overrides
		FROM events WHERE calendar_id = ? AND id = ?
	`, calendarID, eventID)

	event, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, gatewayErr("get_event", fmt.Sprintf("event not found: %s", eventID), nil)
	}
	if err != nil {
		return nil, gatewayErr("get_event", "scan failed", err)
	}
	return event, nil
}

func scanEvent(scan func(dest ...any) error) (*types.Event, error) {
	var (
		event            types.Event
		startAt, endAt   int64
		attendees, rules string
	)
	if err := scan(&event.ID, &event.CalendarID, &event.Summary, &event.Description,
		&startAt, &endAt, &event.Location, &attendees, &event.Status, &rules); err != nil {
		return nil, err
	}
	event.Start = time.Unix(startAt, 0)
	event.End = time.Unix(endAt, 0)
	if attendees != "" {
		json.Unmarshal([]byte(attendees), &event.Attendees)
	}
	if rules != "" {
		json.Unmarshal([]byte(rules), &event.Overrides)
	}
	return &event, nil
}

func scanEvents(rows *sql.Rows, op string) ([]*types.Event, error) {
	var events []*types.Event
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, gatewayErr(op, "scan failed", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, gatewayErr(op, "scan failed", err)
	}
	return events, nil
}

// SetOverrides stores per-event reminder rule overrides. Offsets beyond
// MaxReminderOffsetMinutes are rejected; the scheduler's lookahead window
// only reaches that far.
func (s *Store) SetOverrides(ctx context.Context, calendarID, eventID string, rules []types.ReminderRule) error {
	for _, r := range rules {
		if r.OffsetMinutes < 0 || r.OffsetMinutes > types.MaxReminderOffsetMinutes {
			return gatewayErr("set_overrides",
				fmt.Sprintf("offset must be between 0 and %d minutes, got %d", types.MaxReminderOffsetMinutes, r.OffsetMinutes), nil)
		}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return gatewayErr("set_overrides", "marshal failed", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET overrides = ?, updated_at = ? WHERE calendar_id = ? AND id = ?
	`, string(data), time.Now().Unix(), calendarID, eventID)
	if err != nil {
		return gatewayErr("set_overrides", "update failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return gatewayErr("set_overrides", fmt.Sprintf("event not found: %s", eventID), nil)
	}
	return nil
}
