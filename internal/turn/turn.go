package turn

import (
	"context"
	"time"

	"github.com/user/secretary/internal/types"
)

// Status represents the lifecycle state of a Turn.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Turn tracks a single inbound message being processed against a session.
type Turn struct {
	ID         types.TurnID
	SessionKey types.SessionKey
	Inbound    *types.InboundTurn
	Status     Status
	CreatedAt  time.Time
	Ctx        context.Context
	OnReply    func(response string)
}

// NewTurn creates a Turn in the Queued state for the given inbound message.
func NewTurn(inbound *types.InboundTurn) *Turn {
	return &Turn{
		ID:         types.NewTurnID(),
		SessionKey: inbound.SessionKey,
		Inbound:    inbound,
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
	}
}
