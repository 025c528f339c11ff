package turn

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/secretary/internal/resolver"
	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/types"
)

const fallbackReply = "Sorry, I didn't catch that. Could you rephrase?"

// Engine processes one turn at a time per session: extract intent, resolve
// it against the session's pending actions, and compose the reply.
type Engine struct {
	registry  *state.Registry
	extractor types.Extractor
	resolver  *resolver.Resolver
	window    int
}

// NewEngine creates a turn engine. window is how many recent messages are
// offered to the extractor.
func NewEngine(registry *state.Registry, extractor types.Extractor, res *resolver.Resolver, window int) *Engine {
	if window <= 0 {
		window = 10
	}
	return &Engine{
		registry:  registry,
		extractor: extractor,
		resolver:  res,
		window:    window,
	}
}

// Handle wraps an inbound message in a Turn and enqueues it.
func (e *Engine) Handle(queue *Queue, inbound *types.InboundTurn, onReply func(string)) error {
	t := NewTurn(inbound)
	t.OnReply = onReply
	return queue.Enqueue(t)
}

// Process runs one turn to completion. The user message is recorded first;
// an extraction failure then leaves history intact and pending actions
// untouched, so the user can simply try again.
func (e *Engine) Process(t *Turn) error {
	t.Status = StatusRunning
	started := time.Now()

	conv := e.registry.Get(t.SessionKey)
	history := conv.Window(e.window)
	pending := conv.PendingActions()
	conv.AppendUser(t.Inbound.Text)

	call, reply, err := e.extractor.Extract(t.Ctx, history, pending, t.Inbound.Text)
	if err != nil {
		var exErr *types.ExtractionError
		if !errors.As(err, &exErr) {
			t.Status = StatusFailed
			return err
		}
		slog.Warn("extraction failed", "turn_id", string(t.ID), "error", err)
		e.reply(t, conv, fallbackReply, nil)
		t.Status = StatusComplete
		return nil
	}

	if call == nil {
		if reply == "" {
			reply = fallbackReply
		}
		e.reply(t, conv, reply, nil)
		t.Status = StatusComplete
		return nil
	}

	outcome := e.resolver.HandleCall(t.Ctx, conv, call)
	response := composeReply(call.Kind, outcome)
	if response == "" {
		response = reply
	}
	e.reply(t, conv, response, map[string]string{"tool": string(call.Kind), "state": string(outcome.State)})

	t.Status = StatusComplete
	slog.Info("turn processed",
		"turn_id", string(t.ID), "session_key", string(t.SessionKey),
		"tool", string(call.Kind), "state", string(outcome.State),
		"duration_ms", time.Since(started).Milliseconds())
	return nil
}

func (e *Engine) reply(t *Turn, conv *state.Conversation, text string, metadata map[string]string) {
	conv.AppendAssistant(text, metadata)
	if t.OnReply != nil {
		t.OnReply(text)
	}
}

// questions maps a missing field to the follow-up asked for it. One
// question per turn, always for the first missing field.
var questions = map[string]string{
	"summary":          "What should I call it?",
	"date":             "What day is that?",
	"time":             "What time?",
	"event_id":         "Which event do you mean? Try asking me to find it first.",
	"query":            "What should I look for?",
	"remind_at":        "When should I remind you?",
	"minutes_from_now": "When should I remind you?",
}

func composeReply(kind types.ActionKind, outcome resolver.Outcome) string {
	switch outcome.State {
	case resolver.StateNeedsInfo:
		q, ok := questions[outcome.Ask]
		if !ok {
			q = fmt.Sprintf("Could you tell me the %s?", strings.ReplaceAll(outcome.Ask, "_", " "))
		}
		var vErr *types.ValidationError
		if errors.As(outcome.Err, &vErr) {
			return fmt.Sprintf("I couldn't make sense of the %s. %s", strings.ReplaceAll(vErr.Field, "_", " "), q)
		}
		return q

	case resolver.StateCompleted:
		return completedReply(kind, outcome)

	case resolver.StateCancelled:
		if outcome.Action != nil {
			return "Okay, never mind. I've dropped that."
		}
		return "Nothing in progress to cancel."

	case resolver.StateFailed:
		return "Sorry, I couldn't reach the calendar just now. I've kept your details, ask me again in a moment."
	}
	return ""
}

func completedReply(kind types.ActionKind, outcome resolver.Outcome) string {
	switch kind {
	case types.KindCreateEvent:
		e := outcome.Event
		return fmt.Sprintf("Scheduled %q for %s. I'll remind you before it starts.",
			e.Summary, e.Start.Format("Monday, Jan 2 at 3:04 PM"))

	case types.KindUpdateEvent:
		e := outcome.Event
		if e.Status == "cancelled" {
			return fmt.Sprintf("Cancelled %q.", e.Summary)
		}
		return fmt.Sprintf("Updated %q, now %s.", e.Summary, e.Start.Format("Monday, Jan 2 at 3:04 PM"))

	case types.KindSearchEvents, types.KindListEvents:
		if len(outcome.Events) == 0 {
			return "I didn't find anything matching that."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d:\n", len(outcome.Events))
		for _, e := range outcome.Events {
			fmt.Fprintf(&b, "• %s — %s (id %s)\n", e.Summary, e.Start.Format("Mon Jan 2, 3:04 PM"), e.ID)
		}
		return strings.TrimRight(b.String(), "\n")

	case types.KindCreateReminder:
		return fmt.Sprintf("Okay, I'll remind you at %s.", outcome.At.Format("3:04 PM"))
	}
	return "Done."
}
