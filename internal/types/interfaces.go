// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// Gateway is the external calendar backend. Every operation may fail with
// a *GatewayError; callers surface the failure and never crash on it.
type Gateway interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*Event, error)
	CreateEvent(ctx context.Context, create *EventCreate) (*Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, update *EventUpdate) (*Event, error)
	SearchEvents(ctx context.Context, calendarID, query string) ([]*Event, error)
	FreeBusy(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (*FreeBusy, error)
}

// Extractor turns free text plus conversation context into either a
// structured call (call != nil) or a plain reply. Failures are reported
// as *ExtractionError and leave turn state unchanged.
type Extractor interface {
	Extract(ctx context.Context, history []Message, pending []*PendingAction, text string) (call *Call, reply string, err error)
}

// InboundTurn is one user message arriving from any transport.
type InboundTurn struct {
	Source     string     `json:"source"`
	SessionKey SessionKey `json:"session_key"`
	UserID     string     `json:"user_id"`
	Text       string     `json:"text"`
}
