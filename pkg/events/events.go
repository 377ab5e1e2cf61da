package events

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// Kind discriminates the event envelope payload.
type Kind string

const (
	KindStreamStart     Kind = "stream.start"
	KindStreamDelta     Kind = "stream.delta"
	KindStreamFinal     Kind = "stream.final"
	KindStreamError     Kind = "stream.error"
	KindTurnCommitted   Kind = "turn.committed"
	KindCheckpointBuilt Kind = "checkpoint.built"
)

// Envelope is the single wire format used on session topics. Delta, Text,
// Error, TurnCount and Sections are populated depending on Kind.
type Envelope struct {
	Kind      Kind   `json:"kind"`
	SessionID string `json:"session_id"`
	StreamID  string `json:"stream_id,omitempty"`
	Delta     string `json:"delta,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	TurnCount int    `json:"turn_count,omitempty"`
	Sections  []byte `json:"sections,omitempty"`
	AtMs      int64  `json:"at_ms"`
}

// Topic computes the per-session event topic.
func Topic(sessionID string) string { return "ideate:" + sessionID }

func now() int64 { return time.Now().UnixMilli() }

func NewStreamStart(sessionID, streamID string) Envelope {
	return Envelope{Kind: KindStreamStart, SessionID: sessionID, StreamID: streamID, AtMs: now()}
}

func NewStreamDelta(sessionID, streamID, delta string) Envelope {
	return Envelope{Kind: KindStreamDelta, SessionID: sessionID, StreamID: streamID, Delta: delta, AtMs: now()}
}

func NewStreamFinal(sessionID, streamID, text string) Envelope {
	return Envelope{Kind: KindStreamFinal, SessionID: sessionID, StreamID: streamID, Text: text, AtMs: now()}
}

func NewStreamError(sessionID, streamID, msg string) Envelope {
	return Envelope{Kind: KindStreamError, SessionID: sessionID, StreamID: streamID, Error: msg, AtMs: now()}
}

func NewTurnCommitted(sessionID string, turnCount int) Envelope {
	return Envelope{Kind: KindTurnCommitted, SessionID: sessionID, TurnCount: turnCount, AtMs: now()}
}

func NewCheckpointBuilt(sessionID string, sections []byte) Envelope {
	return Envelope{Kind: KindCheckpointBuilt, SessionID: sessionID, Sections: sections, AtMs: now()}
}

// ToMessage serializes an envelope into a watermill message.
func ToMessage(ev Envelope) (*message.Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event envelope")
	}
	return message.NewMessage(watermill.NewUUID(), b), nil
}

// FromMessage decodes an envelope from a watermill message payload.
func FromMessage(msg *message.Message) (Envelope, error) {
	if msg == nil {
		return Envelope{}, errors.New("nil message")
	}
	return FromJSON(msg.Payload)
}

func FromJSON(payload []byte) (Envelope, error) {
	var ev Envelope
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Envelope{}, errors.Wrap(err, "decode event envelope")
	}
	if ev.Kind == "" {
		return Envelope{}, errors.New("event envelope missing kind")
	}
	return ev, nil
}

// Publish is a small helper that marshals and publishes an envelope on its
// session topic.
func Publish(pub message.Publisher, ev Envelope) error {
	if pub == nil {
		return errors.New("nil publisher")
	}
	msg, err := ToMessage(ev)
	if err != nil {
		return err
	}
	return pub.Publish(Topic(ev.SessionID), msg)
}
