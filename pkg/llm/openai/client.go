// Package openai talks to OpenAI-compatible chat completion endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/secretary/pkg/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	requestTimeout = 60 * time.Second
)

// Client implements llm.Provider over the /chat/completions endpoint.
type Client struct {
	cfg  *llm.Config
	http *http.Client
}

func New(cfg *llm.Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
	}
}

// payload is the request body for /chat/completions.
type payload struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Tools       []llm.Tool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type completion struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []llm.ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage llm.Usage `json:"usage"`
}

// apiError is a non-200 response from the endpoint.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.status, e.body)
}

func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	p := payload{
		Model:     c.cfg.Model,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: c.cfg.MaxTokens,
	}
	if c.cfg.Temperature != 0 {
		t := c.cfg.Temperature
		p.Temperature = &t
	}

	raw, err := c.post(ctx, "/chat/completions", p)
	if err != nil {
		return nil, err
	}

	var out completion
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	msg := out.Choices[0].Message
	return &llm.Response{
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
		Usage:     out.Usage,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	base := c.cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	url := strings.TrimSuffix(base, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
