// ABOUTME: Tests for stream-event reconciliation: deltas, part updates, end-of-turn.
// ABOUTME: Uses the fake server's pushable SSE feed from service_test.go.

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/opencode-client/internal/api"
)

// connectAndPrompt establishes a session and drained history so event
// tests have an active conversation to reconcile into.
func connectAndPrompt(t *testing.T, f *fakeServer, svc *Service) string {
	t.Helper()
	require.NoError(t, svc.Connect(context.Background()))
	_, err := svc.SubmitPrompt(context.Background(), []api.PromptPart{api.TextPart("hi")}, "")
	require.NoError(t, err)
	sid := svc.ActiveSessionID()
	require.NotEmpty(t, sid)
	return sid
}

// startBlockedPrompt submits a prompt whose HTTP call stalls until the
// returned release func runs, leaving the processing flag observable.
func startBlockedPrompt(t *testing.T, f *fakeServer, svc *Service) (release func(), done chan error) {
	t.Helper()
	gate := make(chan struct{})
	f.setPromptGate(gate)

	done = make(chan error, 1)
	go func() {
		_, err := svc.SubmitPrompt(context.Background(), []api.PromptPart{api.TextPart("slow")}, "")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return svc.Processing() && svc.ActiveSessionID() != ""
	}, 2*time.Second, 5*time.Millisecond)

	var released bool
	return func() {
		if !released {
			released = true
			f.setPromptGate(nil)
			close(gate)
		}
	}, done
}

func TestPartDelta_AccumulatesStreamingText(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	sid := connectAndPrompt(t, f, svc)

	// A delta for some other session is stale cross-talk.
	f.emit(api.EventPartDelta, api.PartDeltaEvent{
		SessionID: "ses_other", MessageID: "msg_x", PartID: "prt_x", Text: "IGNORED",
	})
	f.emit(api.EventPartDelta, api.PartDeltaEvent{
		SessionID: sid, MessageID: "msg_a", PartID: "prt_a", Text: "Hel",
	})
	f.emit(api.EventPartDelta, api.PartDeltaEvent{
		SessionID: sid, MessageID: "msg_a", PartID: "prt_a", Text: "lo",
	})

	require.Eventually(t, func() bool {
		return svc.StreamingText() == "Hello"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPartDelta_PatchesPartUnderKnownMessage(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	sid := connectAndPrompt(t, f, svc)

	// Seed a message via the stream, then grow one of its parts.
	f.emit(api.EventMessageUpdated, api.MessageUpdatedEvent{
		Info: api.Message{ID: "msg_a", SessionID: sid, Role: api.RoleAssistant},
	})
	f.emit(api.EventPartDelta, api.PartDeltaEvent{
		SessionID: sid, MessageID: "msg_a", PartID: "prt_a", Text: "one",
	})
	f.emit(api.EventPartDelta, api.PartDeltaEvent{
		SessionID: sid, MessageID: "msg_a", PartID: "prt_a", Text: " two",
	})

	require.Eventually(t, func() bool {
		for _, m := range svc.History() {
			if m.Info.ID == "msg_a" {
				return len(m.Parts) == 1 && m.Parts[0].Text == "one two"
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPartUpdated_ReplacesInPlaceNeverDuplicates(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	sid := connectAndPrompt(t, f, svc)

	f.emit(api.EventMessageUpdated, api.MessageUpdatedEvent{
		Info: api.Message{ID: "msg_a", SessionID: sid, Role: api.RoleAssistant},
	})
	f.emit(api.EventPartUpdated, api.PartUpdatedEvent{Part: api.Part{
		ID: "prt_a", MessageID: "msg_a", SessionID: sid,
		Type: api.PartTypeTool, Tool: "bash",
		State: &api.ToolState{Status: "running"},
	}})
	// Same part id again with updated state: replace, not append.
	f.emit(api.EventPartUpdated, api.PartUpdatedEvent{Part: api.Part{
		ID: "prt_a", MessageID: "msg_a", SessionID: sid,
		Type: api.PartTypeTool, Tool: "bash",
		State: &api.ToolState{Status: "completed", Output: "ok"},
	}})
	f.emit(api.EventPartUpdated, api.PartUpdatedEvent{Part: api.Part{
		ID: "prt_b", MessageID: "msg_a", SessionID: sid,
		Type: api.PartTypeText, Text: "done",
	}})

	require.Eventually(t, func() bool {
		for _, m := range svc.History() {
			if m.Info.ID != "msg_a" {
				continue
			}
			if len(m.Parts) != 2 {
				return false
			}
			return m.Parts[0].ID == "prt_a" &&
				m.Parts[0].State != nil &&
				m.Parts[0].State.Status == "completed" &&
				m.Parts[1].ID == "prt_b"
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMessageFinish_ClearsProcessingAndRefetches(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	require.NoError(t, svc.Connect(context.Background()))

	release, done := startBlockedPrompt(t, f, svc)
	defer release()
	sid := svc.ActiveSessionID()
	refetchPath := "GET /session/" + sid + "/message"
	before := f.count(refetchPath)

	finish := "stop"
	f.emit(api.EventMessageUpdated, api.MessageUpdatedEvent{
		Info: api.Message{ID: "msg_a", SessionID: sid, Role: api.RoleAssistant, Finish: &finish},
	})

	require.Eventually(t, func() bool {
		return !svc.Processing()
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return f.count(refetchPath) == before+1
	}, 2*time.Second, 5*time.Millisecond)

	release()
	require.NoError(t, <-done)
}

func TestSessionIdle_SecondSignalIsNoOp(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	require.NoError(t, svc.Connect(context.Background()))

	release, done := startBlockedPrompt(t, f, svc)
	defer release()
	sid := svc.ActiveSessionID()
	refetchPath := "GET /session/" + sid + "/message"
	before := f.count(refetchPath)

	// All three end-of-turn signals race in practice; here idle arrives
	// twice and only the first may act.
	f.emit(api.EventSessionIdle, api.SessionIdleEvent{SessionID: sid})
	f.emit(api.EventSessionStatus, api.SessionStatusEvent{SessionID: sid, Status: api.SessionStatusIdle})
	f.emit(api.EventSessionIdle, api.SessionIdleEvent{SessionID: sid})

	require.Eventually(t, func() bool {
		return !svc.Processing()
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return f.count(refetchPath) == before+1
	}, 2*time.Second, 5*time.Millisecond)

	// Give the duplicate signals time to (incorrectly) trigger more.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before+1, f.count(refetchPath))

	release()
	require.NoError(t, <-done)
}

func TestSessionIdle_OtherSessionIgnored(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	require.NoError(t, svc.Connect(context.Background()))

	release, done := startBlockedPrompt(t, f, svc)
	defer release()

	f.emit(api.EventSessionIdle, api.SessionIdleEvent{SessionID: "ses_other"})

	time.Sleep(50 * time.Millisecond)
	assert.True(t, svc.Processing())

	release()
	require.NoError(t, <-done)
}

func TestSessionError_SurfacesFailureKeepsHistory(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	sid := connectAndPrompt(t, f, svc)

	f.emit(api.EventMessageUpdated, api.MessageUpdatedEvent{
		Info: api.Message{ID: "msg_a", SessionID: sid, Role: api.RoleAssistant},
	})
	require.Eventually(t, func() bool {
		return len(svc.History()) > 0
	}, 2*time.Second, 5*time.Millisecond)
	historyLen := len(svc.History())

	f.emit(api.EventSessionError, api.SessionErrorEvent{
		SessionID: sid, Error: "provider rate limited",
	})

	require.Eventually(t, func() bool {
		return svc.LastFailure() == "provider rate limited"
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, svc.Processing())
	assert.Len(t, svc.History(), historyLen)
}

func TestStreamExhaustion_SetsErrorState(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	require.NoError(t, svc.Connect(context.Background()))

	f.dropStream()

	require.Eventually(t, func() bool {
		state, _ := svc.State()
		return state == StateError
	}, 2*time.Second, 5*time.Millisecond)

	_, reason := svc.State()
	assert.NotEmpty(t, reason)
}

func TestNotifier_PublishesProcessingTransitions(t *testing.T) {
	f := newFakeServer(t)
	svc := newTestService(t, f, nil)
	require.NoError(t, svc.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, _ := svc.Notifier().Subscribe(ctx)

	_, err := svc.SubmitPrompt(context.Background(), []api.PromptPart{api.TextPart("hi")}, "")
	require.NoError(t, err)

	seen := map[ChangeKind]bool{}
	deadline := time.After(2 * time.Second)
	for !(seen[ChangeProcessing] && seen[ChangeHistory]) {
		select {
		case c := <-changes:
			seen[c.Kind] = true
		case <-deadline:
			t.Fatalf("missing change notifications, saw %v", seen)
		}
	}
}
