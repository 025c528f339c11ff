package extract

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/user/secretary/internal/context"
	"github.com/user/secretary/internal/types"
	"github.com/user/secretary/pkg/llm"
)

// knownKinds maps tool names to action kinds. A hallucinated tool name
// falls through to an ExtractionError.
var knownKinds = map[string]types.ActionKind{
	"create_event":    types.KindCreateEvent,
	"update_event":    types.KindUpdateEvent,
	"search_events":   types.KindSearchEvents,
	"list_events":     types.KindListEvents,
	"create_reminder": types.KindCreateReminder,
	"cancel":          types.KindCancel,
}

// Extractor turns user text into structured calendar calls via an LLM
// with function calling.
type Extractor struct {
	provider llm.Provider
	engine   *context.Engine
}

// New creates an Extractor on top of a completion provider and a prompt
// engine.
func New(provider llm.Provider, engine *context.Engine) *Extractor {
	return &Extractor{provider: provider, engine: engine}
}

// Extract sends the budgeted conversation context plus the new message to
// the model. A tool call in the response becomes a *types.Call; plain text
// becomes the reply. Transport and parse failures wrap into
// *types.ExtractionError so callers can answer gracefully without touching
// session state.
func (e *Extractor) Extract(ctx stdctx.Context, history []types.Message, pending []*types.PendingAction, text string) (*types.Call, string, error) {
	messages := e.engine.BuildPrompt(time.Now(), pending, history)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	resp, err := e.provider.Complete(ctx, messages, calendarTools)
	if err != nil {
		return nil, "", &types.ExtractionError{Err: fmt.Errorf("completion: %w", err)}
	}

	if len(resp.ToolCalls) == 0 {
		return nil, resp.Content, nil
	}

	// One call per turn; extra calls are logged and dropped.
	if len(resp.ToolCalls) > 1 {
		slog.Debug("model returned multiple tool calls, using first", "count", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]

	kind, ok := knownKinds[tc.Function.Name]
	if !ok {
		return nil, "", &types.ExtractionError{Err: fmt.Errorf("unknown tool %q", tc.Function.Name)}
	}

	fields, err := decodeFields(tc.Function.Args)
	if err != nil {
		return nil, "", &types.ExtractionError{Err: fmt.Errorf("tool %s arguments: %w", tc.Function.Name, err)}
	}

	slog.Debug("extracted call", "kind", string(kind), "fields", len(fields))
	return &types.Call{Kind: kind, Fields: fields}, resp.Content, nil
}

// decodeFields flattens tool arguments to strings. Models occasionally
// emit numbers or booleans despite string schemas; those are stringified
// rather than rejected.
func decodeFields(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(loose))
	for k, v := range loose {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(val)
		case nil:
			// skip
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			fields[k] = string(b)
		}
	}
	return fields, nil
}
