// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/secretary/internal/dispatch"
	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/types"
)

// customReminder is a one-shot reminder created in conversation
// ("remind me in 10 minutes"). Not tied to a calendar event.
type customReminder struct {
	summary string
	at      time.Time
}

// Scheduler polls the calendar on a fixed interval and dispatches due
// reminders exactly once per (event, start, offset). Reminders fire never
// early and at most one poll interval late.
type Scheduler struct {
	gateway    types.Gateway
	ledger     *state.Ledger
	dispatcher *dispatch.Dispatcher
	calendarID string
	rules      []types.ReminderRule
	interval   time.Duration
	cron       *cron.Cron

	tickMu sync.Mutex // serializes ticks; a slow tick delays, never overlaps

	mu     sync.Mutex
	custom []customReminder
}

// New creates a Scheduler. rules are the default reminder offsets applied
// to every event unless an event carries overrides.
func New(gateway types.Gateway, ledger *state.Ledger, dispatcher *dispatch.Dispatcher, calendarID string, rules []types.ReminderRule, interval time.Duration) *Scheduler {
	if calendarID == "" {
		calendarID = "primary"
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		gateway:    gateway,
		ledger:     ledger,
		dispatcher: dispatcher,
		calendarID: calendarID,
		rules:      rules,
		interval:   interval,
		cron:       cron.New(),
	}
}

// Start registers the poll tick and starts the cron ticker.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Tick(context.Background(), time.Now())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("reminder scheduler started", "interval", s.interval, "rules", len(s.rules))
	return nil
}

// Stop stops the cron ticker. In-flight ticks finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// AddCustom schedules a one-shot reminder at the given moment.
func (s *Scheduler) AddCustom(summary string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = append(s.custom, customReminder{summary: summary, at: at})
	slog.Info("custom reminder added", "summary", summary, "at", at)
}

// PendingCustom reports how many one-shot reminders have not fired yet.
func (s *Scheduler) PendingCustom() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.custom)
}

// Tick runs one poll pass: fire due custom reminders, then scan the
// calendar lookahead window and dispatch any (event, offset) pair that has
// crossed its threshold and is not yet in the ledger. A dispatch failure
// leaves the pair due so the next tick retries it; the ledger record is
// written only after a successful hand-off.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.fireCustom(now)

	lookahead := s.lookahead()
	events, err := s.gateway.ListEvents(ctx, s.calendarID, now, now.Add(lookahead))
	if err != nil {
		slog.Error("reminder poll failed", "error", err)
		return
	}

	for _, event := range events {
		for _, rule := range applicableRules(s.rules, event.Overrides) {
			s.maybeFire(event, rule, now)
		}
	}

	if pruned, err := s.ledger.Prune(now); err != nil {
		slog.Warn("ledger prune failed", "error", err)
	} else if pruned > 0 {
		slog.Debug("pruned sent-reminder records", "count", pruned)
	}
}

func (s *Scheduler) fireCustom(now time.Time) {
	s.mu.Lock()
	due := s.custom[:0:0]
	remaining := s.custom[:0]
	for _, c := range s.custom {
		if !c.at.After(now) {
			due = append(due, c)
		} else {
			remaining = append(remaining, c)
		}
	}
	s.custom = remaining
	s.mu.Unlock()

	for _, c := range due {
		n := &types.Notification{
			ID:      types.NewNoticeID(),
			Summary: c.summary,
			Text:    "⏰ Reminder: " + c.summary,
			At:      now,
		}
		if err := s.dispatcher.Dispatch(n); err != nil {
			slog.Warn("custom reminder dispatch failed, requeued", "summary", c.summary, "error", err)
			s.mu.Lock()
			s.custom = append(s.custom, c)
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) maybeFire(event *types.Event, rule types.ReminderRule, now time.Time) {
	offset := time.Duration(rule.OffsetMinutes) * time.Minute
	threshold := event.Start.Add(-offset)
	if now.Before(threshold) {
		return
	}
	if !event.End.IsZero() && now.After(event.End) {
		return
	}

	key := state.ReminderKey(event.ID, event.Start, rule.OffsetMinutes)
	if s.ledger.Seen(key) {
		return
	}

	n := &types.Notification{
		ID:      types.NewNoticeID(),
		EventID: event.ID,
		Summary: event.Summary,
		Text:    Render(event, rule),
		At:      now,
	}
	if err := s.dispatcher.Dispatch(n); err != nil {
		slog.Warn("reminder dispatch failed, will retry",
			"event_id", event.ID, "offset_minutes", rule.OffsetMinutes, "error", err)
		return
	}

	end := event.End
	if end.IsZero() {
		end = event.Start.Add(24 * time.Hour)
	}
	if err := s.ledger.Record(key, end); err != nil {
		slog.Error("ledger write failed", "key", key, "error", err)
	}
	slog.Info("reminder dispatched",
		"event_id", event.ID, "summary", event.Summary, "offset_minutes", rule.OffsetMinutes)
}

// lookahead covers the largest offset any rule can carry plus one interval
// of slack, so a pair is always visible for at least one tick before its
// threshold passes. Per-event overrides only surface on fetched events, so
// the window must reach the override cap, not just the enabled defaults.
func (s *Scheduler) lookahead() time.Duration {
	max := types.MaxReminderOffsetMinutes
	for _, r := range s.rules {
		if r.Enabled && r.OffsetMinutes > max {
			max = r.OffsetMinutes
		}
	}
	return time.Duration(max)*time.Minute + s.interval
}

// applicableRules merges per-event overrides into the defaults. An
// override replaces the default at the same offset, which also lets an
// event disable a default by overriding it with Enabled false.
func applicableRules(defaults []types.ReminderRule, overrides []types.ReminderRule) []types.ReminderRule {
	merged := make(map[int]types.ReminderRule, len(defaults)+len(overrides))
	for _, r := range defaults {
		merged[r.OffsetMinutes] = r
	}
	for _, r := range overrides {
		merged[r.OffsetMinutes] = r
	}

	out := make([]types.ReminderRule, 0, len(merged))
	for _, r := range merged {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OffsetMinutes > out[j].OffsetMinutes })
	return out
}
