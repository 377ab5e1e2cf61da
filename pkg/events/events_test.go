package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	require.Equal(t, "ideate:s1", Topic("s1"))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	ev := NewStreamDelta("s1", "st-1", "hello ")
	msg, err := ToMessage(ev)
	require.NoError(t, err)

	got, err := FromMessage(msg)
	require.NoError(t, err)
	require.Equal(t, KindStreamDelta, got.Kind)
	require.Equal(t, "s1", got.SessionID)
	require.Equal(t, "st-1", got.StreamID)
	require.Equal(t, "hello ", got.Delta)
}

func TestFromJSONRejectsMissingKind(t *testing.T) {
	_, err := FromJSON([]byte(`{"session_id":"s1"}`))
	require.Error(t, err)

	_, err = FromJSON([]byte(`not json`))
	require.Error(t, err)
}
