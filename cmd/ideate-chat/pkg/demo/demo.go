// Package demo provides an offline backend and a scripted generation engine
// so the full streaming pipeline can run end-to-end without a real model.
package demo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/events"
	"github.com/prodkit/ideate/pkg/stream"
)

// Backend is an in-process stand-in for the product backend.
type Backend struct {
	mu        sync.Mutex
	turnCount map[string]int
}

func NewBackend() *Backend {
	return &Backend{turnCount: map[string]int{}}
}

func (b *Backend) SendUserTurn(_ context.Context, sessionID, content string) (*chat.Turn, error) {
	b.bump(sessionID)
	return chat.NewTurn(sessionID, chat.RoleUser, content), nil
}

func (b *Backend) PersistAssistantTurn(_ context.Context, sessionID, content string) (*chat.Turn, error) {
	b.bump(sessionID)
	return chat.NewTurn(sessionID, chat.RoleAssistant, content), nil
}

func (b *Backend) DiscoveryProgress(_ context.Context, sessionID string) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]any{"turns": b.turnCount[sessionID]}, nil
}

func (b *Backend) StoreValidationFeedback(_ context.Context, sessionID, section, status string, score float64) error {
	log.Debug().Str("component", "demo").Str("session_id", sessionID).
		Str("section", section).Str("status", status).Float64("score", score).
		Msg("validation feedback recorded")
	return nil
}

func (b *Backend) bump(sessionID string) {
	b.mu.Lock()
	b.turnCount[sessionID]++
	b.mu.Unlock()
}

// Engine streams a canned discovery-coach reply word by word over the
// transport, imitating a model backend.
type Engine struct {
	publisher message.Publisher
	delay     time.Duration
}

func NewEngine(publisher message.Publisher, delay time.Duration) *Engine {
	if delay <= 0 {
		delay = 30 * time.Millisecond
	}
	return &Engine{publisher: publisher, delay: delay}
}

var _ stream.Starter = &Engine{}

func (e *Engine) Start(_ context.Context, req stream.Request) error {
	reply := e.compose(req)
	go func() {
		for _, word := range strings.SplitAfter(reply, " ") {
			if err := events.Publish(e.publisher, events.NewStreamDelta(req.SessionID, req.StreamID, word)); err != nil {
				log.Warn().Err(err).Str("component", "demo").Msg("failed to publish delta")
				return
			}
			time.Sleep(e.delay)
		}
		if err := events.Publish(e.publisher, events.NewStreamFinal(req.SessionID, req.StreamID, "")); err != nil {
			log.Warn().Err(err).Str("component", "demo").Msg("failed to publish final")
		}
	}()
	return nil
}

func (e *Engine) compose(req stream.Request) string {
	n := len(req.PriorTurns)
	switch {
	case n <= 1:
		return fmt.Sprintf("Interesting — %q. What problem does this solve, and who are the users that feel it most?", req.Prompt)
	case n <= 3:
		return "Good. Which features are essential for a first version, and what technical constraints (budget, stack, deadline) should I know about?"
	default:
		return "Let's talk risks and success: what could make this fail, and what metric would tell you it worked?"
	}
}

// Extractor produces naive keyword insights from the latest turns, standing
// in for the reasoning call.
func Extractor() func(ctx context.Context, sessionID string, turns []chat.Turn) ([]chat.Insight, error) {
	return func(_ context.Context, sessionID string, turns []chat.Turn) ([]chat.Insight, error) {
		var out []chat.Insight
		for _, t := range turns {
			if t.Role != chat.RoleUser {
				continue
			}
			lower := strings.ToLower(t.Content)
			if strings.Contains(lower, "must") || strings.Contains(lower, "need") {
				confidence := 0.6
				out = append(out, chat.Insight{
					SessionID:     sessionID,
					Type:          chat.InsightRequirement,
					Text:          t.Content,
					Confidence:    &confidence,
					SourceTurnIDs: []string{t.ID},
				})
			}
		}
		return out, nil
	}
}
