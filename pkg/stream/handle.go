package stream

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/events"
)

// Delta is one incremental text fragment, numbered in arrival order.
type Delta struct {
	Text string
	Seq  uint64
}

// Result is the resolved value of a completed stream.
type Result struct {
	FullText string
}

// Handle tracks one in-flight assistant stream.
type Handle struct {
	sessionID string
	streamID  string

	deltas    chan Delta
	done      chan struct{}
	cancelCtx context.CancelFunc
	seq       atomic.Uint64
	logger    zerolog.Logger

	mu        sync.Mutex
	text      strings.Builder
	complete  bool
	cancelled bool
	result    Result
	err       error
}

func (h *Handle) StreamID() string { return h.streamID }

// Deltas yields fragments in the exact order the backend emitted them. The
// channel closes when the stream resolves, fails, or is cancelled.
func (h *Handle) Deltas() <-chan Delta { return h.deltas }

// Accumulated returns the text received so far. It grows monotonically.
func (h *Handle) Accumulated() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text.String()
}

// IsComplete reports whether the stream has resolved (successfully or not).
func (h *Handle) IsComplete() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.complete
}

// Cancel stops consuming the transport. It is idempotent; Wait returns
// chat.ErrStreamAborted unless the stream already resolved.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	h.mu.Unlock()
	h.cancelCtx()
}

// Wait blocks until the stream resolves or ctx expires.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (h *Handle) finish(res Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.complete {
		return
	}
	h.complete = true
	h.result = res
	h.err = err
	close(h.done)
}

func (h *Handle) consume(ctx context.Context, ch <-chan *message.Message, idle time.Duration) {
	defer h.cancelCtx()
	defer close(h.deltas)

	timer := time.NewTimer(idle)
	defer timer.Stop()
	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(idle)
	}

	for {
		select {
		case <-ctx.Done():
			h.finish(Result{}, chat.ErrStreamAborted)
			return
		case <-timer.C:
			h.logger.Warn().Dur("idle", idle).Msg("stream idle timeout")
			h.finish(Result{}, chat.ErrStreamTimeout)
			return
		case msg, ok := <-ch:
			if !ok {
				h.finish(Result{}, &chat.TransportError{SessionID: h.sessionID, Err: errors.New("event channel closed before completion")})
				return
			}
			ev, err := events.FromMessage(msg)
			msg.Ack()
			if err != nil {
				h.logger.Warn().Err(err).Msg("failed to decode stream event")
				continue
			}
			if ev.StreamID != "" && ev.StreamID != h.streamID {
				continue
			}
			switch ev.Kind {
			case events.KindStreamStart:
				resetTimer()
			case events.KindStreamDelta:
				resetTimer()
				h.mu.Lock()
				h.text.WriteString(ev.Delta)
				h.mu.Unlock()
				d := Delta{Text: ev.Delta, Seq: h.seq.Add(1)}
				select {
				case h.deltas <- d:
				case <-ctx.Done():
					h.finish(Result{}, chat.ErrStreamAborted)
					return
				}
			case events.KindStreamFinal:
				text := ev.Text
				if text == "" {
					h.mu.Lock()
					text = h.text.String()
					h.mu.Unlock()
				}
				h.finish(Result{FullText: text}, nil)
				return
			case events.KindStreamError:
				h.finish(Result{}, &chat.TransportError{SessionID: h.sessionID, Err: errors.New(ev.Error)})
				return
			}
		}
	}
}
