// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type SessionKey string
type TurnID string
type ActionID string
type NoticeID string

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewActionID() ActionID {
	// Short form keeps log lines readable; scope is a single session.
	return ActionID(uuid.New().String()[:8])
}

func NewNoticeID() NoticeID {
	return NoticeID(uuid.New().String())
}

func NewSessionKey(parts ...string) SessionKey {
	return SessionKey(strings.Join(parts, ":"))
}
