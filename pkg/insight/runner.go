// Package insight implements the best-effort extraction side-channel. It is
// invoked after each committed assistant turn and must never block or fail
// the primary turn flow: every error is logged and swallowed.
package insight

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/persistence/insightstore"
)

// Extractor is the external reasoning call that turns a conversation history
// into zero or more insights in a single batched request.
type Extractor interface {
	Extract(ctx context.Context, sessionID string, turns []chat.Turn) ([]chat.Insight, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, sessionID string, turns []chat.Turn) ([]chat.Insight, error)

func (f ExtractorFunc) Extract(ctx context.Context, sessionID string, turns []chat.Turn) ([]chat.Insight, error) {
	return f(ctx, sessionID, turns)
}

// Runner drives one extraction pass and persists the results item by item,
// so one failing insertion does not block the others.
type Runner struct {
	extractor Extractor
	store     insightstore.Store
	logger    zerolog.Logger
}

func NewRunner(extractor Extractor, store insightstore.Store) *Runner {
	return &Runner{
		extractor: extractor,
		store:     store,
		logger:    log.With().Str("component", "insight").Logger(),
	}
}

// Run extracts and persists insights for the given history. It returns the
// number of insights persisted; the error return exists for tests and logs,
// callers in the primary flow ignore it.
func (r *Runner) Run(ctx context.Context, sessionID string, turns []chat.Turn) (int, error) {
	if r == nil || r.extractor == nil {
		return 0, nil
	}
	runLog := r.logger.With().Str("session_id", sessionID).Logger()

	hasAssistant := false
	var committedIDs map[string]struct{}
	for _, t := range turns {
		if t.Role == chat.RoleAssistant {
			hasAssistant = true
		}
		if committedIDs == nil {
			committedIDs = map[string]struct{}{}
		}
		committedIDs[t.ID] = struct{}{}
	}
	if !hasAssistant {
		runLog.Debug().Msg("skipping extraction: no assistant turn yet")
		return 0, nil
	}

	extracted, err := r.extractor.Extract(ctx, sessionID, turns)
	if err != nil {
		runLog.Warn().Err(err).Msg("insight extraction failed")
		return 0, err
	}

	persisted := 0
	var lastErr error
	for i := range extracted {
		in := extracted[i]
		if in.ID == "" {
			in.ID = uuid.NewString()
		}
		if in.SessionID == "" {
			in.SessionID = sessionID
		}
		if in.CreatedAt.IsZero() {
			in.CreatedAt = time.Now()
		}
		if err := validateSources(&in, committedIDs); err != nil {
			runLog.Warn().Err(err).Str("insight_id", in.ID).Msg("dropping insight")
			lastErr = err
			continue
		}
		if r.store != nil {
			if err := r.store.Add(ctx, &in); err != nil {
				runLog.Warn().Err(err).Str("insight_id", in.ID).Msg("failed to persist insight")
				lastErr = err
				continue
			}
		}
		persisted++
	}
	runLog.Info().Int("extracted", len(extracted)).Int("persisted", persisted).Msg("insight extraction finished")
	return persisted, lastErr
}

func validateSources(in *chat.Insight, committed map[string]struct{}) error {
	if err := in.Validate(); err != nil {
		return err
	}
	for _, id := range in.SourceTurnIDs {
		if _, ok := committed[id]; !ok {
			return errors.Errorf("insight references unknown turn %q", id)
		}
	}
	return nil
}
