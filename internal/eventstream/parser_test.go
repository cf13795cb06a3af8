// ABOUTME: Tests for the SSE block parser: completeness, heartbeats, and multi-line data.
// ABOUTME: A delivered block always has both a non-empty type and payload.

package eventstream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/opencode-client/internal/api"
)

// drain reads all events until EOF.
func drain(t *testing.T, input string) []api.Event {
	t.Helper()
	p := newParser(strings.NewReader(input))
	var events []api.Event
	for {
		ev, err := p.next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestParser_SingleBlock(t *testing.T) {
	events := drain(t, "event: session.idle\ndata: {\"sessionID\":\"ses_1\"}\n\n")

	require.Len(t, events, 1)
	assert.Equal(t, "session.idle", events[0].Type)
	assert.JSONEq(t, `{"sessionID":"ses_1"}`, string(events[0].Properties))
}

func TestParser_MultipleBlocksInOrder(t *testing.T) {
	input := "event: a\ndata: {\"n\":1}\n\n" +
		"event: b\ndata: {\"n\":2}\n\n" +
		"event: c\ndata: {\"n\":3}\n\n"
	events := drain(t, input)

	require.Len(t, events, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{events[0].Type, events[1].Type, events[2].Type})
}

func TestParser_MultiLineDataConcatenated(t *testing.T) {
	events := drain(t, "event: big\ndata: {\"text\":\ndata: \"x\"}\n\n")

	require.Len(t, events, 1)
	assert.JSONEq(t, `{"text":"x"}`, string(events[0].Properties))
}

func TestParser_HeartbeatsNeverSurface(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"type without data", "event: ping\n\n"},
		{"data without type", "data: {}\n\n"},
		{"empty block", "\n\n"},
		{"comment line", ":keepalive\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, drain(t, tt.input))
		})
	}
}

func TestParser_HeartbeatBetweenRealBlocks(t *testing.T) {
	input := "event: a\ndata: {}\n\n" +
		"event: ping\n\n" +
		"event: b\ndata: {}\n\n"
	events := drain(t, input)

	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Type)
	assert.Equal(t, "b", events[1].Type)
}

func TestParser_CompleteBlockPendingAtEOF(t *testing.T) {
	events := drain(t, "event: last\ndata: {\"n\":9}")

	require.Len(t, events, 1)
	assert.Equal(t, "last", events[0].Type)
}

func TestParser_IncompleteBlockAtEOFDropped(t *testing.T) {
	assert.Empty(t, drain(t, "event: dangling"))
}

func TestParser_TrimsOneLeadingSpace(t *testing.T) {
	events := drain(t, "event: x\ndata: {\"a\":1}\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, `{"a":1}`, string(events[0].Properties))
}
