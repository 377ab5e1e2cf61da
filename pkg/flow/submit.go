package flow

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/events"
	"github.com/prodkit/ideate/pkg/quality"
	"github.com/prodkit/ideate/pkg/stream"
)

// Submit runs one full orchestration cycle: commit the user turn, stream the
// assistant reply, persist it, then fire the insight side-channel without
// blocking the return. Valid only from Idle; a submit while a stream is
// active fails with chat.ErrBusy.
//
// A stream failure leaves the store with exactly the user turn. A persist
// failure returns chat.PersistError carrying the full generated text so the
// caller can retry without losing content.
func (f *Flow) Submit(ctx context.Context, userText string) (*chat.Turn, error) {
	if f == nil {
		return nil, errors.New("flow is not initialized")
	}
	if ctx == nil {
		ctx = f.baseCtx
	}
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, errors.New("flow: empty prompt")
	}

	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return nil, chat.ErrBusy
	}
	f.state = StateAwaitingUserCommit
	f.mu.Unlock()

	userTurn, err := f.commitUserTurn(ctx, text)
	if err != nil {
		f.toIdle()
		return nil, err
	}

	prior, err := f.turns.List(ctx, f.sessionID)
	if err != nil {
		f.toIdle()
		return nil, errors.Wrap(err, "flow: list prior turns")
	}

	handle, err := f.streamer.Open(ctx, stream.Request{
		SessionID:  f.sessionID,
		StreamID:   uuid.NewString(),
		Prompt:     text,
		PriorTurns: prior,
		Provider:   f.provider,
		Model:      f.model,
	})
	if err != nil {
		f.toIdle()
		return nil, err
	}

	f.mu.Lock()
	f.state = StateStreaming
	f.handle = handle
	f.mu.Unlock()

	for d := range handle.Deltas() {
		if f.onDelta != nil {
			f.onDelta(d)
		}
	}
	res, err := handle.Wait(ctx)
	if err != nil {
		// stream failed or was cancelled: the in-flight turn is discarded,
		// the store keeps exactly the user turn
		handle.Cancel()
		f.logger.Warn().Err(err).Str("user_turn_id", userTurn.ID).Msg("stream did not complete")
		f.toIdle()
		return nil, err
	}

	f.mu.Lock()
	f.state = StatePersisting
	f.mu.Unlock()

	assistantTurn, err := f.commitAssistantTurn(ctx, res.FullText)
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to persist assistant turn")
		f.toIdle()
		return nil, &chat.PersistError{SessionID: f.sessionID, Text: res.FullText, Err: err}
	}

	f.afterCommit(assistantTurn)
	return assistantTurn, nil
}

func (f *Flow) commitUserTurn(ctx context.Context, text string) (*chat.Turn, error) {
	sent, err := f.backend.SendUserTurn(ctx, f.sessionID, text)
	if err != nil {
		return nil, errors.Wrap(err, "flow: send user turn")
	}
	turn := sent
	if turn == nil {
		turn = chat.NewTurn(f.sessionID, chat.RoleUser, text)
	}
	if turn.SessionID == "" {
		turn.SessionID = f.sessionID
	}
	if err := f.turns.Append(ctx, turn); err != nil {
		return nil, errors.Wrap(err, "flow: append user turn")
	}
	f.logger.Debug().Str("turn_id", turn.ID).Int("order", turn.Order).Msg("user turn committed")
	return turn, nil
}

func (f *Flow) commitAssistantTurn(ctx context.Context, fullText string) (*chat.Turn, error) {
	persisted, err := f.backend.PersistAssistantTurn(ctx, f.sessionID, fullText)
	if err != nil {
		return nil, err
	}
	turn := persisted
	if turn == nil {
		turn = chat.NewTurn(f.sessionID, chat.RoleAssistant, fullText)
	}
	if turn.SessionID == "" {
		turn.SessionID = f.sessionID
	}
	if err := f.turns.Append(ctx, turn); err != nil {
		return nil, err
	}
	f.logger.Debug().Str("turn_id", turn.ID).Int("order", turn.Order).Msg("assistant turn committed")
	return turn, nil
}

// afterCommit runs the post-persist tail of a cycle. The side-channel is
// launched in the background; the flow returns to Idle without waiting for
// it, and its failures never surface.
func (f *Flow) afterCommit(assistant *chat.Turn) {
	turns, err := f.turns.List(f.baseCtx, f.sessionID)
	if err != nil {
		f.logger.Warn().Err(err).Msg("failed to reload turns after commit")
		turns = []chat.Turn{*assistant}
	}

	f.mu.Lock()
	f.state = StateExtracting
	f.handle = nil
	f.cycleCount++
	cycle := f.cycleCount
	checkpointDue := cycle >= f.checkpointEvery
	if checkpointDue {
		f.cycleCount = 0
	}
	f.mu.Unlock()

	history := make([]chat.Turn, len(turns))
	copy(history, turns)
	f.wg.Add(1)
	go f.extractAndReload(history)

	f.publishEvent(events.NewTurnCommitted(f.sessionID, len(turns)))
	f.recomputeMetrics(turns)

	if checkpointDue {
		f.buildCheckpoint()
	}

	f.mu.Lock()
	f.state = StateIdle
	f.mu.Unlock()
}

// extractAndReload is the fire-and-forget side channel: extraction, insight
// reload and progress reload all log and continue on failure.
func (f *Flow) extractAndReload(turns []chat.Turn) {
	defer f.wg.Done()
	ctx := f.baseCtx

	if f.runner != nil {
		if _, err := f.runner.Run(ctx, f.sessionID, turns); err != nil {
			f.logger.Warn().Err(err).Msg("insight extraction failed; continuing")
		}
	}
	f.recomputeMetrics(turns)

	if _, err := f.backend.DiscoveryProgress(ctx, f.sessionID); err != nil {
		f.logger.Warn().Err(err).Msg("discovery progress reload failed; continuing")
	}
}

// recomputeMetrics rebuilds quality metrics from scratch. Insight load
// failures degrade to turn-only coverage.
func (f *Flow) recomputeMetrics(turns []chat.Turn) {
	var insights []chat.Insight
	if f.insights != nil {
		got, err := f.insights.List(f.baseCtx, f.sessionID)
		if err != nil {
			f.logger.Warn().Err(err).Msg("insight reload failed; computing metrics from turns only")
		} else {
			insights = got
		}
	}
	m := quality.Compute(turns, insights)
	f.mu.Lock()
	f.metrics = m
	f.mu.Unlock()
}

func (f *Flow) publishEvent(ev events.Envelope) {
	if f.publisher == nil {
		return
	}
	if err := events.Publish(f.publisher, ev); err != nil {
		f.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("failed to publish event")
	}
}
