package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is one committed conversational message. Turns are immutable once
// stored; Order is assigned by the turn store and is strictly increasing
// within a session.
type Turn struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Order     int            `json:"order"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewTurn builds an uncommitted turn with a fresh id. Order is left at zero
// until the store assigns it.
func NewTurn(sessionID string, role Role, content string) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// StreamingTurn is the working, not-yet-committed assistant response. At most
// one exists per session; it is replaced wholesale by a committed Turn on
// completion and discarded on error or cancel.
type StreamingTurn struct {
	ID              string
	SessionID       string
	AccumulatedText string
	Complete        bool
}

// CheckpointSection is an ephemeral summary blob built from insight subsets
// every N completed cycles. It is held by the orchestrator only.
type CheckpointSection struct {
	Name         string  `json:"name"`
	Summary      string  `json:"summary"`
	QualityScore float64 `json:"quality_score"`
}
