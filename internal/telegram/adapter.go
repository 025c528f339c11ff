package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/secretary/internal/scheduler"
	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/turn"
	"github.com/user/secretary/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram chats to the turn engine and receives reminder
// notifications for push delivery.
type Adapter struct {
	bot      *tgbotapi.BotAPI
	engine   *turn.Engine
	queue    *turn.Queue
	registry *state.Registry
	ledger   *state.Ledger
	sched    *scheduler.Scheduler

	mu    sync.Mutex
	chats map[int64]struct{} // chats seen this run; reminder push targets
}

// New creates a Telegram adapter. ledger and sched feed the /status
// counters and may be nil when reminders are disabled.
func New(token string, engine *turn.Engine, queue *turn.Queue, registry *state.Registry, ledger *state.Ledger, sched *scheduler.Scheduler) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:      bot,
		engine:   engine,
		queue:    queue,
		registry: registry,
		ledger:   ledger,
		sched:    sched,
		chats:    make(map[int64]struct{}),
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// NotificationHandler returns the push handler registered with the
// dispatch registry. Notifications are sent to every chat seen this run;
// with none known yet they stay available in the poll queue.
func (a *Adapter) NotificationHandler() func(n *types.Notification) error {
	return func(n *types.Notification) error {
		a.mu.Lock()
		chats := make([]int64, 0, len(a.chats))
		for id := range a.chats {
			chats = append(chats, id)
		}
		a.mu.Unlock()

		if len(chats) == 0 {
			slog.Debug("no telegram chats known, skipping push", "notification_id", string(n.ID))
			return nil
		}
		var firstErr error
		for _, chatID := range chats {
			if err := a.send(chatID, n.Text); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}

func (a *Adapter) trackChat(chatID int64) {
	a.mu.Lock()
	a.chats[chatID] = struct{}{}
	a.mu.Unlock()
}

func (a *Adapter) handleMessage(msg *tgbotapi.Message) {
	a.trackChat(msg.Chat.ID)

	if msg.IsCommand() {
		a.handleCommand(msg)
		return
	}

	chatID := msg.Chat.ID
	inbound := &types.InboundTurn{
		Source:     "telegram",
		SessionKey: buildSessionKey(msg.From.ID, msg.Chat.ID),
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		Text:       msg.Text,
	}

	err := a.engine.Handle(a.queue, inbound, func(response string) {
		a.sendResponse(chatID, response)
	})
	if err != nil {
		slog.Error("enqueue telegram turn failed", "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	key := buildSessionKey(msg.From.ID, msg.Chat.ID)

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm your secretary. Tell me about an appointment and I'll schedule it, remind you before it, and answer questions about your calendar.")

	case "clear":
		if conv, ok := a.registry.Lookup(key); ok {
			conv.Clear()
		}
		a.sendResponse(chatID, "Conversation cleared. Your events and reminders are untouched.")

	case "status":
		a.sendResponse(chatID, a.statusText(key))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /clear, /status")
	}
}

// statusText reports session and reminder counters without creating a
// session for chats that have none yet.
func (a *Adapter) statusText(key types.SessionKey) string {
	var stats state.ConversationStats
	if conv, ok := a.registry.Lookup(key); ok {
		stats = conv.Stats()
	}
	sent, pending := 0, 0
	if a.ledger != nil {
		sent = a.ledger.Count()
	}
	if a.sched != nil {
		pending = a.sched.PendingCustom()
	}
	return fmt.Sprintf(
		"Messages: %d (you: %d, me: %d)\nIn-progress requests: %d\nReminders sent: %d\nCustom reminders pending: %d",
		stats.Messages, stats.UserMessages, stats.AssistantMessages, stats.PendingActions, sent, pending)
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("telegram send failed", "error", err)
			}
		}
	}
}

func (a *Adapter) send(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		} else {
			// Back off to a rune boundary so a multi-byte character is
			// never cut in half at the limit.
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}
