package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/secretary/internal/calendar"
	ctxengine "github.com/user/secretary/internal/context"
	"github.com/user/secretary/internal/dispatch"
	"github.com/user/secretary/internal/extract"
	"github.com/user/secretary/internal/httpapi"
	"github.com/user/secretary/internal/resolver"
	"github.com/user/secretary/internal/scheduler"
	"github.com/user/secretary/internal/state"
	"github.com/user/secretary/internal/telegram"
	"github.com/user/secretary/internal/turn"
	"github.com/user/secretary/pkg/llm"
	"github.com/user/secretary/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the secretary daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "secretary.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Calendar store, with transient failures retried before the resolver
	// sees them.
	store, err := calendar.NewStore(cfg.Calendar.DBPath)
	if err != nil {
		return fmt.Errorf("open calendar store: %w", err)
	}
	defer store.Close()
	gateway := turn.WithRetry(store, nil)

	// Sent-reminder ledger
	ledger, err := state.NewLedger(filepath.Join(cfg.DataDir, "sent_reminders.json"))
	if err != nil {
		return fmt.Errorf("open reminder ledger: %w", err)
	}

	// Notification fan-out
	notices := dispatch.NewQueue(cfg.Reminders.QueueCap)
	pushReg := dispatch.NewRegistry()
	var destinations []string
	if cfg.Telegram.Token != "" {
		destinations = append(destinations, "telegram:broadcast")
	}
	dispatcher := dispatch.NewDispatcher(notices, pushReg, destinations)

	// Reminder scheduler
	var sched *scheduler.Scheduler
	var sink resolver.ReminderSink
	if cfg.Reminders.Enabled {
		sched = scheduler.New(gateway, ledger, dispatcher, cfg.Calendar.PrimaryID, cfg.Reminders.Rules, cfg.PollInterval())
		sink = sched
	}

	// LLM provider and prompt engine
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

	// Conversation state and turn processing
	registry := state.NewRegistry(cfg.Conversation.MaxHistory)
	res := resolver.New(gateway, sink, cfg.Calendar.PrimaryID, cfg.StaleActionTimeout())
	engine := turn.NewEngine(registry, extractor, res, cfg.Conversation.ContextWindow)

	turns := turn.NewQueue(int64(cfg.MaxConcurrent))
	turns.SetProcessor(engine.Process)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	turns.Start(ctx)
	defer turns.Stop()

	if sched != nil {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	slog.Info("secretary started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"reminders_enabled", cfg.Reminders.Enabled,
		"pid_file", pidPath,
	)

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, engine, turns, registry, ledger, sched)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		pushReg.Register("telegram:", adapter.NotificationHandler())
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// HTTP API
	if cfg.HTTP.Addr != "" {
		api := httpapi.NewServer(registry, engine, turns, notices, ledger, sched)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: api,
		}
		go func() {
			slog.Info("http api started", "listen", cfg.HTTP.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
