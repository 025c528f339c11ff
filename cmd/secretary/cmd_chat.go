package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/secretary/internal/calendar"
	ctxengine "github.com/user/secretary/internal/context"
	"github.com/user/secretary/internal/dispatch"
	"github.com/user/secretary/internal/extract"
	"github.com/user/secretary/internal/resolver"
	"github.com/user/secretary/internal/scheduler"
	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/turn"
	"github.com/user/secretary/internal/types"
	"github.com/user/secretary/pkg/llm"
	"github.com/user/secretary/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the secretary in the terminal",
	RunE:  runChat,
}

const chatSessionKey = types.SessionKey("terminal:local")

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := calendar.NewStore(cfg.Calendar.DBPath)
	if err != nil {
		return fmt.Errorf("open calendar store: %w", err)
	}
	defer store.Close()
	gateway := turn.WithRetry(store, nil)

	ledger, err := state.NewLedger(filepath.Join(cfg.DataDir, "sent_reminders.json"))
	if err != nil {
		return fmt.Errorf("open reminder ledger: %w", err)
	}

	notices := dispatch.NewQueue(cfg.Reminders.QueueCap)
	dispatcher := dispatch.NewDispatcher(notices, dispatch.NewRegistry(), nil)

	var sink resolver.ReminderSink
	var sched *scheduler.Scheduler
	if cfg.Reminders.Enabled {
		sched = scheduler.New(gateway, ledger, dispatcher, cfg.Calendar.PrimaryID, cfg.Reminders.Rules, cfg.PollInterval())
		sink = sched
	}

	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	promptEngine, err := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create context engine: %w", err)
	}
	extractor := extract.New(provider, promptEngine)

	registry := state.NewRegistry(cfg.Conversation.MaxHistory)
	res := resolver.New(gateway, sink, cfg.Calendar.PrimaryID, cfg.StaleActionTimeout())
	engine := turn.NewEngine(registry, extractor, res, cfg.Conversation.ContextWindow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	turns := turn.NewQueue(1)
	turns.SetProcessor(engine.Process)
	turns.Start(ctx)
	defer turns.Stop()

	if sched != nil {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// Print reminders between prompts as they fire.
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, n := range notices.Drain(0) {
					fmt.Printf("\n%s\n> ", n.Text)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Println("Secretary ready. Commands: /clear, /stats, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			registry.Get(chatSessionKey).Clear()
			fmt.Println("Conversation cleared.")
			continue
		case "/stats":
			stats := registry.Get(chatSessionKey).Stats()
			pendingCustom := 0
			if sched != nil {
				pendingCustom = sched.PendingCustom()
			}
			fmt.Printf("Messages: %d (you: %d, me: %d), in progress: %d, reminders queued: %d, sent: %d, custom pending: %d\n",
				stats.Messages, stats.UserMessages, stats.AssistantMessages,
				stats.PendingActions, notices.Depth(), ledger.Count(), pendingCustom)
			continue
		}

		replies := make(chan string, 1)
		err := engine.Handle(turns, &types.InboundTurn{
			Source:     "terminal",
			SessionKey: chatSessionKey,
			Text:       line,
		}, func(response string) {
			replies <- response
		})
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(<-replies)
	}
}
