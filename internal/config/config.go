package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/user/secretary/internal/types"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	LLM           struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	HTTP struct {
		Addr string `json:"addr"`
	} `json:"http"`
	Calendar struct {
		DBPath    string `json:"db_path"`
		PrimaryID string `json:"primary_id"`
	} `json:"calendar"`
	Conversation struct {
		MaxHistory         int `json:"max_history"`
		ContextWindow      int `json:"context_window"`
		StaleActionMinutes int `json:"stale_action_minutes"`
	} `json:"conversation"`
	Reminders struct {
		Enabled             bool                 `json:"enabled"`
		PollIntervalSeconds int                  `json:"poll_interval_seconds"`
		QueueCap            int                  `json:"queue_cap"`
		Rules               []types.ReminderRule `json:"rules"`
	} `json:"reminders"`
}

// PollInterval returns the reminder poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Reminders.PollIntervalSeconds) * time.Second
}

// StaleActionTimeout returns how long a pending action may sit without
// progress before it is swept.
func (c *Config) StaleActionTimeout() time.Duration {
	return time.Duration(c.Conversation.StaleActionMinutes) * time.Minute
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".secretary"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.3
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.HTTP.Addr = "127.0.0.1:8089"
	cfg.Calendar.DBPath = "" // defaults to <data_dir>/calendar.db
	cfg.Calendar.PrimaryID = "primary"
	cfg.Conversation.MaxHistory = 50
	cfg.Conversation.ContextWindow = 10
	cfg.Conversation.StaleActionMinutes = 30
	cfg.Reminders.Enabled = true
	cfg.Reminders.PollIntervalSeconds = 300
	cfg.Reminders.QueueCap = 1000
	cfg.Reminders.Rules = []types.ReminderRule{
		{OffsetMinutes: 1440, Enabled: true},
		{OffsetMinutes: 60, Enabled: true},
		{OffsetMinutes: 15, Enabled: true},
	}

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	if cfg.Calendar.DBPath == "" {
		cfg.Calendar.DBPath = filepath.Join(cfg.DataDir, "calendar.db")
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
