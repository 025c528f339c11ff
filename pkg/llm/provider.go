// Package llm defines the provider-agnostic chat completion surface used
// by the intent extractor.
package llm

import "context"

// Provider is a chat completion backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

// Config holds the connection settings shared by provider implementations.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
