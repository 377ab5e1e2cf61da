// Package flow sequences one discovery-chat session: commit user turn, open
// the assistant stream, persist the reply, then kick off the best-effort
// insight side-channel and checkpoint bookkeeping. One Flow instance owns one
// session; there is no shared state between sessions.
package flow

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/insight"
	"github.com/prodkit/ideate/pkg/persistence/insightstore"
	"github.com/prodkit/ideate/pkg/persistence/turnstore"
	"github.com/prodkit/ideate/pkg/stream"
)

// State is the orchestrator's explicit state value. It is a tagged value
// owned by one Flow instance, never a shared boolean.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingUserCommit State = "awaiting_user_commit"
	StateStreaming          State = "streaming"
	StatePersisting         State = "persisting"
	StateExtracting         State = "extracting_insights"
)

// DefaultCheckpointEvery is how many completed cycles trigger one
// checkpoint-section build.
const DefaultCheckpointEvery = 5

// Config wires a Flow's collaborators.
type Config struct {
	SessionID string
	Backend   Backend
	Streamer  Streamer
	Turns     turnstore.Store
	Insights  insightstore.Store
	Runner    *insight.Runner

	// Publisher receives turn.committed and checkpoint.built envelopes.
	// Optional.
	Publisher message.Publisher

	// BaseCtx bounds background work (extraction, checkpoint feedback) that
	// outlives a Submit call. Defaults to context.Background().
	BaseCtx context.Context

	CheckpointEvery int
	// SurfaceCheckpoints publishes built sections on the event stream. Off
	// by default: checkpoints are tracking-only.
	SurfaceCheckpoints bool

	Provider string
	Model    string

	// OnDelta is invoked for each incremental fragment while streaming.
	OnDelta func(stream.Delta)
}

// Flow is the per-session turn orchestrator.
type Flow struct {
	sessionID string
	backend   Backend
	streamer  Streamer
	turns     turnstore.Store
	insights  insightstore.Store
	runner    *insight.Runner
	publisher message.Publisher
	baseCtx   context.Context

	checkpointEvery    int
	surfaceCheckpoints bool
	provider           string
	model              string
	onDelta            func(stream.Delta)

	logger zerolog.Logger

	mu           sync.Mutex
	state        State
	handle       *stream.Handle
	cycleCount   int
	metrics      chat.QualityMetrics
	lastSections []chat.CheckpointSection

	wg sync.WaitGroup
}

func New(cfg Config) (*Flow, error) {
	if cfg.Backend == nil {
		return nil, errors.New("flow: backend is nil")
	}
	if cfg.Streamer == nil {
		return nil, errors.New("flow: streamer is nil")
	}
	if cfg.Turns == nil {
		return nil, errors.New("flow: turn store is nil")
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	baseCtx := cfg.BaseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	checkpointEvery := cfg.CheckpointEvery
	if checkpointEvery <= 0 {
		checkpointEvery = DefaultCheckpointEvery
	}
	return &Flow{
		sessionID:          sessionID,
		backend:            cfg.Backend,
		streamer:           cfg.Streamer,
		turns:              cfg.Turns,
		insights:           cfg.Insights,
		runner:             cfg.Runner,
		publisher:          cfg.Publisher,
		baseCtx:            baseCtx,
		checkpointEvery:    checkpointEvery,
		surfaceCheckpoints: cfg.SurfaceCheckpoints,
		provider:           cfg.Provider,
		model:              cfg.Model,
		onDelta:            cfg.OnDelta,
		logger:             log.With().Str("component", "flow").Str("session_id", sessionID).Logger(),
		state:              StateIdle,
	}, nil
}

func (f *Flow) SessionID() string { return f.sessionID }

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Metrics returns the last computed quality metrics.
func (f *Flow) Metrics() chat.QualityMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

// LastCheckpoint returns the sections built by the most recent checkpoint
// pass, if any.
func (f *Flow) LastCheckpoint() []chat.CheckpointSection {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chat.CheckpointSection, len(f.lastSections))
	copy(out, f.lastSections)
	return out
}

func (f *Flow) Turns(ctx context.Context) ([]chat.Turn, error) {
	return f.turns.List(ctx, f.sessionID)
}

func (f *Flow) Insights(ctx context.Context) ([]chat.Insight, error) {
	if f.insights == nil {
		return nil, nil
	}
	return f.insights.List(ctx, f.sessionID)
}

// Cancel aborts the active stream, if any. Safe from any state and
// idempotent.
func (f *Flow) Cancel() {
	f.mu.Lock()
	h := f.handle
	f.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// Reanalyze re-runs insight extraction over the full committed history. This
// is the manual affordance; extraction failures are never retried
// automatically.
func (f *Flow) Reanalyze(ctx context.Context) (int, error) {
	if f.runner == nil {
		return 0, nil
	}
	turns, err := f.turns.List(ctx, f.sessionID)
	if err != nil {
		return 0, errors.Wrap(err, "flow: list turns")
	}
	return f.runner.Run(ctx, f.sessionID, turns)
}

// Close cancels in-flight work and waits for background extraction to drain.
func (f *Flow) Close() {
	f.Cancel()
	f.wg.Wait()
}

func (f *Flow) toIdle() {
	f.mu.Lock()
	f.state = StateIdle
	f.handle = nil
	f.mu.Unlock()
}
