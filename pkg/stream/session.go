// Package stream manages a single outstanding assistant-response stream: it
// subscribes to the session's event topic, accumulates text deltas in arrival
// order, and resolves to a final full-text value or an error. A failed or
// cancelled stream never commits anything; the orchestrator owns persistence.
package stream

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/events"
)

// DefaultIdleTimeout is how long a stream may stay silent before it fails
// with chat.ErrStreamTimeout.
const DefaultIdleTimeout = 60 * time.Second

// Request describes one assistant-response stream to open.
type Request struct {
	SessionID  string
	StreamID   string
	Prompt     string
	PriorTurns []chat.Turn
	Provider   string
	Model      string
}

// Starter triggers assistant generation on the backend. Deltas for the
// request arrive on the session topic, tagged with the request's StreamID.
type Starter interface {
	Start(ctx context.Context, req Request) error
}

// StarterFunc adapts a function to the Starter interface.
type StarterFunc func(ctx context.Context, req Request) error

func (f StarterFunc) Start(ctx context.Context, req Request) error { return f(ctx, req) }

// Session opens assistant-response streams over a watermill subscriber.
type Session struct {
	subscriber  message.Subscriber
	starter     Starter
	idleTimeout time.Duration
	logger      zerolog.Logger
}

type Option func(*Session)

func WithIdleTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func NewSession(subscriber message.Subscriber, starter Starter, opts ...Option) *Session {
	s := &Session{
		subscriber:  subscriber,
		starter:     starter,
		idleTimeout: DefaultIdleTimeout,
		logger:      log.With().Str("component", "stream").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open subscribes to the session topic, triggers generation and returns a
// handle for the in-flight stream. The subscription is released on every
// exit path: final, error, timeout, and explicit cancel.
func (s *Session) Open(ctx context.Context, req Request) (*Handle, error) {
	if s == nil || s.subscriber == nil {
		return nil, errors.New("stream session is not initialized")
	}
	if req.SessionID == "" {
		return nil, errors.New("stream request missing session id")
	}
	if req.StreamID == "" {
		req.StreamID = uuid.NewString()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	ch, err := s.subscriber.Subscribe(runCtx, events.Topic(req.SessionID))
	if err != nil {
		cancel()
		return nil, &chat.TransportError{SessionID: req.SessionID, Err: err}
	}

	h := &Handle{
		sessionID: req.SessionID,
		streamID:  req.StreamID,
		deltas:    make(chan Delta, 64),
		done:      make(chan struct{}),
		cancelCtx: cancel,
		logger:    s.logger.With().Str("session_id", req.SessionID).Str("stream_id", req.StreamID).Logger(),
	}
	go h.consume(runCtx, ch, s.idleTimeout)

	if s.starter != nil {
		if err := s.starter.Start(ctx, req); err != nil {
			h.Cancel()
			return nil, &chat.TransportError{SessionID: req.SessionID, Err: errors.Wrap(err, "start generation")}
		}
	}
	return h, nil
}
