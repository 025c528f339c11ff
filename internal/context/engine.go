// internal/context/engine.go
package context

import (
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/secretary/internal/types"
	"github.com/user/secretary/pkg/llm"
)

// Engine assembles token-budgeted prompts for the intent extractor.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// New creates a context engine with the specified token budget.
// model selects the tokenizer (e.g. "gpt-4o-mini"). maxTokens is the
// model's context window; reserve is held back for the response.
func New(model string, maxTokens, reserve int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// BuildPrompt assembles the completion messages: a system prompt carrying
// the current time and pending-action progress, then as many of the most
// recent history messages as the budget allows. Dropping happens from the
// oldest end so the newest exchange always survives.
func (e *Engine) BuildPrompt(now time.Time, pending []*types.PendingAction, history []types.Message) []llm.Message {
	inputBudget := e.maxTokens - e.reserve

	sysPrompt := buildSystemPrompt(now, pending)
	remaining := inputBudget - e.countTokens(sysPrompt)

	// Walk history newest-first so the budget trims the oldest messages.
	var kept []types.Message
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		msgTokens := e.countTokens(history[i].Text) + 4 // role framing overhead
		if used+msgTokens > remaining {
			break
		}
		kept = append(kept, history[i])
		used += msgTokens
	}

	messages := make([]llm.Message, 0, 1+len(kept))
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sysPrompt})
	for i := len(kept) - 1; i >= 0; i-- {
		messages = append(messages, llm.Message{Role: llm.Role(kept[i].Role), Content: kept[i].Text})
	}
	return messages
}
