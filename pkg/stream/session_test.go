package stream

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/events"
)

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func publish(t *testing.T, pub message.Publisher, ev events.Envelope) {
	t.Helper()
	require.NoError(t, events.Publish(pub, ev))
}

func TestStreamDeliversDeltasInOrderAndResolves(t *testing.T) {
	ps := newPubSub(t)
	session := NewSession(ps, nil)

	h, err := session.Open(context.Background(), Request{SessionID: "s1", StreamID: "st1"})
	require.NoError(t, err)

	go func() {
		for _, d := range []string{"I'll ", "help ", "you."} {
			publish(t, ps, events.NewStreamDelta("s1", "st1", d))
		}
		publish(t, ps, events.NewStreamFinal("s1", "st1", ""))
	}()

	var got []string
	for d := range h.Deltas() {
		got = append(got, d.Text)
	}
	require.Equal(t, []string{"I'll ", "help ", "you."}, got)

	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "I'll help you.", res.FullText)
	require.True(t, h.IsComplete())
	require.Equal(t, "I'll help you.", h.Accumulated())
}

func TestStreamFinalTextWinsOverAccumulation(t *testing.T) {
	ps := newPubSub(t)
	session := NewSession(ps, nil)

	h, err := session.Open(context.Background(), Request{SessionID: "s1", StreamID: "st1"})
	require.NoError(t, err)

	publish(t, ps, events.NewStreamDelta("s1", "st1", "partial"))
	publish(t, ps, events.NewStreamFinal("s1", "st1", "authoritative full text"))

	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "authoritative full text", res.FullText)
}

func TestStreamTimesOutWhenSilent(t *testing.T) {
	ps := newPubSub(t)
	session := NewSession(ps, nil, WithIdleTimeout(50*time.Millisecond))

	h, err := session.Open(context.Background(), Request{SessionID: "s1", StreamID: "st1"})
	require.NoError(t, err)

	publish(t, ps, events.NewStreamDelta("s1", "st1", "I'll "))

	_, err = h.Wait(context.Background())
	require.ErrorIs(t, err, chat.ErrStreamTimeout)
	require.Equal(t, "I'll ", h.Accumulated())
}

func TestCancelIsIdempotent(t *testing.T) {
	ps := newPubSub(t)
	session := NewSession(ps, nil)

	h, err := session.Open(context.Background(), Request{SessionID: "s1", StreamID: "st1"})
	require.NoError(t, err)

	h.Cancel()
	_, errOnce := h.Wait(context.Background())
	require.ErrorIs(t, errOnce, chat.ErrStreamAborted)

	h.Cancel()
	_, errTwice := h.Wait(context.Background())
	require.ErrorIs(t, errTwice, chat.ErrStreamAborted)
	require.True(t, h.IsComplete())
}

func TestStreamErrorEventFailsTheStream(t *testing.T) {
	ps := newPubSub(t)
	session := NewSession(ps, nil)

	h, err := session.Open(context.Background(), Request{SessionID: "s1", StreamID: "st1"})
	require.NoError(t, err)

	publish(t, ps, events.NewStreamError("s1", "st1", "backend exploded"))

	_, err = h.Wait(context.Background())
	var terr *chat.TransportError
	require.ErrorAs(t, err, &terr)
	require.Contains(t, terr.Error(), "backend exploded")
}

func TestStreamIgnoresOtherStreamIDs(t *testing.T) {
	ps := newPubSub(t)
	session := NewSession(ps, nil)

	h, err := session.Open(context.Background(), Request{SessionID: "s1", StreamID: "st1"})
	require.NoError(t, err)

	publish(t, ps, events.NewStreamDelta("s1", "other", "noise "))
	publish(t, ps, events.NewStreamDelta("s1", "st1", "signal"))
	publish(t, ps, events.NewStreamFinal("s1", "st1", ""))

	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "signal", res.FullText)
}

func TestOpenFailsWhenStarterFails(t *testing.T) {
	ps := newPubSub(t)
	session := NewSession(ps, StarterFunc(func(context.Context, Request) error {
		return errors.New("no backend")
	}))

	_, err := session.Open(context.Background(), Request{SessionID: "s1"})
	var terr *chat.TransportError
	require.ErrorAs(t, err, &terr)
}
