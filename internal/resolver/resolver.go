package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/types"
)

// State tags a resolver outcome.
type State string

const (
	StateNeedsInfo State = "needs_info"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Outcome is the result of resolving one extracted call against a session.
type Outcome struct {
	State   State
	Action  *types.PendingAction
	Missing []string // ordered; callers ask for Ask only, one question per turn
	Ask     string
	Event   *types.Event   // set on Completed create/update
	Events  []*types.Event // set on Completed search
	At      time.Time      // set on Completed create_reminder
	Err     error
}

// ReminderSink accepts custom one-shot reminders ("remind me in 10 minutes").
type ReminderSink interface {
	AddCustom(summary string, at time.Time)
}

// Resolver merges extracted calls into pending actions and executes the
// matching gateway operation once an action is complete.
type Resolver struct {
	gateway    types.Gateway
	reminders  ReminderSink
	calendarID string
	staleAfter time.Duration
}

// New creates a Resolver. reminders may be nil when custom reminders are
// disabled; create_reminder calls then fail cleanly.
func New(gateway types.Gateway, reminders ReminderSink, calendarID string, staleAfter time.Duration) *Resolver {
	if calendarID == "" {
		calendarID = "primary"
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &Resolver{
		gateway:    gateway,
		reminders:  reminders,
		calendarID: calendarID,
		staleAfter: staleAfter,
	}
}

// requiredFields returns the ordered ask-list for an action kind given
// what has been collected so far. Date and time are only required until a
// concrete start exists; end is always derivable (explicit end, duration,
// or the default duration).
func requiredFields(kind types.ActionKind, collected map[string]string) []string {
	switch kind {
	case types.KindCreateEvent:
		req := []string{"summary"}
		if collected["start"] == "" {
			req = append(req, "date", "time")
		}
		return req
	case types.KindUpdateEvent:
		return []string{"event_id"}
	case types.KindSearchEvents:
		return []string{"query"}
	case types.KindListEvents:
		return nil // date defaults to today
	case types.KindCreateReminder:
		return []string{"summary", "remind_at"}
	default:
		return nil
	}
}

// HandleCall merges the call into the session's pending action of the same
// kind (creating one if absent), recomputes missing fields, and either
// asks for more information or executes the calendar operation.
func (r *Resolver) HandleCall(ctx context.Context, conv *state.Conversation, call *types.Call) Outcome {
	conv.SweepStale(r.staleAfter)

	if call.Kind == types.KindCancel {
		return r.cancel(conv, call)
	}

	action := conv.Pending(call.Kind)
	if action == nil {
		action = types.NewPendingAction(call.Kind)
		slog.Debug("created pending action", "action_id", string(action.ID), "kind", string(call.Kind))
	}
	action.Merge(call.Fields)

	vErr := r.normalize(action)
	action.Recompute(requiredFields(call.Kind, action.Collected))
	conv.SetPending(action)

	if vErr != nil || !action.Complete() {
		action.Attempts++
		missing := append([]string(nil), action.Missing...)
		ask := action.NextMissing()
		// An invalid optional field (a bad duration, say) leaves nothing
		// required missing. Re-ask for that field rather than executing
		// with its value silently dropped.
		var fieldErr *types.ValidationError
		if ask == "" && errors.As(vErr, &fieldErr) {
			missing = []string{fieldErr.Field}
			ask = fieldErr.Field
		}
		return Outcome{
			State:   StateNeedsInfo,
			Action:  action,
			Missing: missing,
			Ask:     ask,
			Err:     vErr,
		}
	}

	outcome := r.execute(ctx, action)
	if outcome.State == StateCompleted {
		// Destroyed only on success; a gateway failure retains the action
		// so the user can retry without re-supplying fields.
		conv.RemovePending(call.Kind)
	}
	outcome.Action = action
	return outcome
}

func (r *Resolver) cancel(conv *state.Conversation, call *types.Call) Outcome {
	target := types.ActionKind(call.Fields["target"])
	if target != "" {
		if action := conv.Pending(target); action != nil {
			conv.RemovePending(target)
			return Outcome{State: StateCancelled, Action: action}
		}
		return Outcome{State: StateCancelled}
	}

	// No explicit target: drop the most recently touched action.
	var latest *types.PendingAction
	if open := conv.PendingActions(); len(open) > 0 {
		latest = open[0]
		conv.RemovePending(latest.Kind)
	}
	return Outcome{State: StateCancelled, Action: latest}
}

func (r *Resolver) normalize(action *types.PendingAction) error {
	now := time.Now()
	switch action.Kind {
	case types.KindCreateEvent:
		return normalizeEvent(action.Collected, now, true)
	case types.KindUpdateEvent:
		return normalizeEvent(action.Collected, now, false)
	case types.KindCreateReminder:
		return normalizeReminder(action.Collected, now)
	}
	return nil
}

// execute performs exactly one gateway call for a complete action.
func (r *Resolver) execute(ctx context.Context, action *types.PendingAction) Outcome {
	switch action.Kind {
	case types.KindCreateEvent:
		return r.executeCreate(ctx, action)
	case types.KindUpdateEvent:
		return r.executeUpdate(ctx, action)
	case types.KindSearchEvents:
		return r.executeSearch(ctx, action)
	case types.KindListEvents:
		return r.executeList(ctx, action)
	case types.KindCreateReminder:
		return r.executeReminder(action)
	default:
		return Outcome{State: StateFailed, Err: fmt.Errorf("unsupported action kind %q", action.Kind)}
	}
}

func (r *Resolver) executeCreate(ctx context.Context, action *types.PendingAction) Outcome {
	c := action.Collected
	start, _ := time.Parse(time.RFC3339, c["start"])
	end, _ := time.Parse(time.RFC3339, c["end"])

	create := &types.EventCreate{
		CalendarID:  r.calendarIDFor(c),
		Summary:     c["summary"],
		Description: c["description"],
		Start:       start,
		End:         end,
		Location:    c["location"],
	}
	if v := c["attendees"]; v != "" {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				create.Attendees = append(create.Attendees, a)
			}
		}
	}

	event, err := r.gateway.CreateEvent(ctx, create)
	if err != nil {
		slog.Warn("create event failed", "action_id", string(action.ID), "error", err)
		return Outcome{State: StateFailed, Err: err}
	}
	slog.Info("event created", "event_id", event.ID, "summary", event.Summary, "start", event.Start)
	return Outcome{State: StateCompleted, Event: event}
}

func (r *Resolver) executeUpdate(ctx context.Context, action *types.PendingAction) Outcome {
	c := action.Collected
	update := &types.EventUpdate{}

	if v, ok := c["summary"]; ok {
		update.Summary = &v
	}
	if v, ok := c["description"]; ok {
		update.Description = &v
	}
	if v, ok := c["location"]; ok {
		update.Location = &v
	}
	if v, ok := c["status"]; ok {
		update.Status = &v
	}
	if v := c["start"]; v != "" {
		t, _ := time.Parse(time.RFC3339, v)
		update.Start = &t
	}
	if v := c["end"]; v != "" {
		t, _ := time.Parse(time.RFC3339, v)
		update.End = &t
	}

	event, err := r.gateway.UpdateEvent(ctx, r.calendarIDFor(c), c["event_id"], update)
	if err != nil {
		slog.Warn("update event failed", "action_id", string(action.ID), "error", err)
		return Outcome{State: StateFailed, Err: err}
	}
	slog.Info("event updated", "event_id", event.ID, "summary", event.Summary)
	return Outcome{State: StateCompleted, Event: event}
}

func (r *Resolver) executeSearch(ctx context.Context, action *types.PendingAction) Outcome {
	c := action.Collected
	events, err := r.gateway.SearchEvents(ctx, r.calendarIDFor(c), c["query"])
	if err != nil {
		slog.Warn("search events failed", "action_id", string(action.ID), "error", err)
		return Outcome{State: StateFailed, Err: err}
	}
	return Outcome{State: StateCompleted, Events: events}
}

// executeList answers "what do I have on X": the window is the named day,
// today when absent, stretched by an optional day count.
func (r *Resolver) executeList(ctx context.Context, action *types.PendingAction) Outcome {
	c := action.Collected
	now := time.Now()

	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if v := c["date"]; v != "" {
		parsed, err := ParseDate(v, now)
		if err == nil {
			from = parsed
		}
	}
	days := 1
	if v := c["days"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	events, err := r.gateway.ListEvents(ctx, r.calendarIDFor(c), from, from.AddDate(0, 0, days))
	if err != nil {
		slog.Warn("list events failed", "action_id", string(action.ID), "error", err)
		return Outcome{State: StateFailed, Err: err}
	}
	return Outcome{State: StateCompleted, Events: events}
}

func (r *Resolver) executeReminder(action *types.PendingAction) Outcome {
	if r.reminders == nil {
		return Outcome{State: StateFailed, Err: fmt.Errorf("reminders are disabled")}
	}
	c := action.Collected
	at, _ := time.Parse(time.RFC3339, c["remind_at"])
	r.reminders.AddCustom(c["summary"], at)
	slog.Info("custom reminder scheduled", "summary", c["summary"], "at", at)
	return Outcome{State: StateCompleted, At: at}
}

func (r *Resolver) calendarIDFor(collected map[string]string) string {
	if v := collected["calendar_id"]; v != "" {
		return v
	}
	return r.calendarID
}
