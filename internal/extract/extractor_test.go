package extract

import (
	stdctx "context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/user/secretary/internal/context"
	"github.com/user/secretary/internal/types"
	"github.com/user/secretary/pkg/llm"
)

type fakeProvider struct {
	resp     *llm.Response
	err      error
	messages []llm.Message
	tools    []llm.Tool
}

func (f *fakeProvider) Complete(ctx stdctx.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	f.messages = messages
	f.tools = tools
	return f.resp, f.err
}

func newTestExtractor(t *testing.T, provider llm.Provider) *Extractor {
	t.Helper()
	engine, err := context.New("gpt-4o-mini", 8000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	return New(provider, engine)
}

func TestExtractToolCall(t *testing.T) {
	provider := &fakeProvider{resp: &llm.Response{
		ToolCalls: []llm.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: llm.Invocation{
				Name:      "create_event",
				Args: json.RawMessage(`{"summary": "test", "date": "monday"}`),
			},
		}},
	}}
	e := newTestExtractor(t, provider)

	call, reply, err := e.Extract(stdctx.Background(), nil, nil, "I have a test on monday")
	if err != nil {
		t.Fatal(err)
	}
	if call == nil || call.Kind != types.KindCreateEvent {
		t.Fatalf("expected create_event call, got %+v", call)
	}
	if call.Fields["summary"] != "test" || call.Fields["date"] != "monday" {
		t.Errorf("unexpected fields %v", call.Fields)
	}
	if reply != "" {
		t.Errorf("expected no text reply alongside the call, got %q", reply)
	}

	if len(provider.tools) != len(calendarTools) {
		t.Errorf("expected all calendar tools offered, got %d", len(provider.tools))
	}
	if last := provider.messages[len(provider.messages)-1]; last.Role != "user" || last.Content != "I have a test on monday" {
		t.Errorf("user text must be the final message, got %+v", last)
	}
}

func TestExtractPlainReply(t *testing.T) {
	provider := &fakeProvider{resp: &llm.Response{Content: "You're welcome!"}}
	e := newTestExtractor(t, provider)

	call, reply, err := e.Extract(stdctx.Background(), nil, nil, "thanks")
	if err != nil {
		t.Fatal(err)
	}
	if call != nil {
		t.Errorf("expected no call, got %+v", call)
	}
	if reply != "You're welcome!" {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestExtractProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	e := newTestExtractor(t, provider)

	_, _, err := e.Extract(stdctx.Background(), nil, nil, "hi")
	var exErr *types.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtractUnknownTool(t *testing.T) {
	provider := &fakeProvider{resp: &llm.Response{
		ToolCalls: []llm.ToolCall{{
			Function: llm.Invocation{Name: "send_email", Args: json.RawMessage(`{}`)},
		}},
	}}
	e := newTestExtractor(t, provider)

	_, _, err := e.Extract(stdctx.Background(), nil, nil, "email bob")
	var exErr *types.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractionError for hallucinated tool, got %v", err)
	}
}

func TestDecodeFieldsStringifiesLooseTypes(t *testing.T) {
	fields, err := decodeFields(json.RawMessage(`{"summary": "call mom", "minutes_from_now": 20, "urgent": true, "skip": null}`))
	if err != nil {
		t.Fatal(err)
	}
	if fields["minutes_from_now"] != "20" {
		t.Errorf("numbers must stringify, got %q", fields["minutes_from_now"])
	}
	if fields["urgent"] != "true" {
		t.Errorf("bools must stringify, got %q", fields["urgent"])
	}
	if _, ok := fields["skip"]; ok {
		t.Error("null values must be dropped")
	}
}

func TestDecodeFieldsMalformed(t *testing.T) {
	if _, err := decodeFields(json.RawMessage(`{"summary": `)); err == nil {
		t.Error("expected error for malformed arguments")
	}
}
