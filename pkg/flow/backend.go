package flow

import (
	"context"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/stream"
)

// Backend is the external collaborator that persists turns and tracks
// discovery bookkeeping. It is implemented by the product backend in the
// real system; tests use stubs.
type Backend interface {
	// SendUserTurn persists a user turn and returns it with assigned id.
	SendUserTurn(ctx context.Context, sessionID, content string) (*chat.Turn, error)
	// PersistAssistantTurn persists a finalized assistant reply.
	PersistAssistantTurn(ctx context.Context, sessionID, content string) (*chat.Turn, error)
	// DiscoveryProgress returns backend-side progress bookkeeping.
	DiscoveryProgress(ctx context.Context, sessionID string) (map[string]any, error)
	// StoreValidationFeedback records a checkpoint section result. Callers
	// treat it as fire-and-forget.
	StoreValidationFeedback(ctx context.Context, sessionID, section, status string, score float64) error
}

// Streamer opens assistant-response streams. *stream.Session satisfies it.
type Streamer interface {
	Open(ctx context.Context, req stream.Request) (*stream.Handle, error)
}
