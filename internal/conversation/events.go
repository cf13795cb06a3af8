// ABOUTME: Reconciliation of stream events into history, streaming buffer, and flags.
// ABOUTME: Runs on the single event-loop goroutine; deltas for other sessions are noise.

package conversation

import (
	"context"
	"encoding/json"

	"github.com/2389/opencode-client/internal/api"
	"github.com/2389/opencode-client/internal/apierr"
	"github.com/2389/opencode-client/internal/eventstream"
)

// eventLoop drains the subscription channel for the lifetime of one
// connection. It is the only caller of handleEvent, which keeps event
// application serialized and in wire order.
func (s *Service) eventLoop(ch <-chan eventstream.Message) {
	for msg := range ch {
		if msg.Err != nil {
			s.handleStreamExhausted(msg.Err)
			continue
		}
		s.handleEvent(msg.Event)
	}
}

// handleStreamExhausted surfaces the terminal disconnect as an Error
// state; the caller must explicitly reconnect.
func (s *Service) handleStreamExhausted(err error) {
	reason := err.Error()
	var cerr *apierr.Error
	if apierr.AsError(err, &cerr) {
		reason = cerr.Label()
	}
	s.logger.Warn("event stream exhausted", "error", err)

	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateError
	s.stateReason = reason
	s.processing = false
	s.streamCancel = nil
	s.mu.Unlock()
	s.notifier.Publish(Change{Kind: ChangeState, Message: reason})
}

func (s *Service) handleEvent(ev api.Event) {
	switch ev.Type {
	case api.EventPartDelta:
		if e, ok := decodeEvent[api.PartDeltaEvent](s, ev); ok {
			s.applyPartDelta(e)
		}
	case api.EventPartUpdated:
		if e, ok := decodeEvent[api.PartUpdatedEvent](s, ev); ok {
			s.applyPartUpdate(e.Part)
		}
	case api.EventMessageUpdated:
		if e, ok := decodeEvent[api.MessageUpdatedEvent](s, ev); ok {
			s.applyMessageUpdate(e.Info)
		}
	case api.EventSessionStatus:
		if e, ok := decodeEvent[api.SessionStatusEvent](s, ev); ok {
			if e.Status == api.SessionStatusIdle {
				s.finishIfActive(e.SessionID)
			}
		}
	case api.EventSessionIdle:
		if e, ok := decodeEvent[api.SessionIdleEvent](s, ev); ok {
			s.finishIfActive(e.SessionID)
		}
	case api.EventSessionError:
		if e, ok := decodeEvent[api.SessionErrorEvent](s, ev); ok {
			s.applySessionError(e)
		}
	default:
		// Forward-compatible: unknown event types are ignored.
	}
}

// decodeEvent decodes an event payload, logging and skipping on mismatch
// so one malformed event cannot stall the loop.
func decodeEvent[T any](s *Service, ev api.Event) (T, bool) {
	var decoded T
	if err := json.Unmarshal(ev.Properties, &decoded); err != nil {
		s.logger.Warn("dropping malformed event", "type", ev.Type, "error", err)
		return decoded, false
	}
	return decoded, true
}

// applyPartDelta appends a streaming text chunk. Deltas for any session
// other than the active one are stale cross-talk and are discarded.
func (s *Service) applyPartDelta(e api.PartDeltaEvent) {
	s.mu.Lock()
	if s.sessionID == "" || e.SessionID != s.sessionID {
		s.mu.Unlock()
		return
	}
	s.streamText += e.Text

	patched := false
	if mi, pi, ok := s.findPartLocked(e.MessageID, e.PartID); ok {
		s.history[mi].Parts[pi].Text += e.Text
		patched = true
	} else if mi, ok := s.findMessageLocked(e.MessageID); ok {
		s.history[mi].Parts = append(s.history[mi].Parts, api.Part{
			ID:        e.PartID,
			MessageID: e.MessageID,
			SessionID: e.SessionID,
			Type:      api.PartTypeText,
			Text:      e.Text,
		})
		patched = true
	}
	s.mu.Unlock()

	s.notifier.Publish(Change{Kind: ChangeStreaming})
	if patched {
		s.notifier.Publish(Change{Kind: ChangeHistory})
	}
}

// applyPartUpdate replaces an existing part in place or appends it under
// its message. A message never holds two parts with the same id.
func (s *Service) applyPartUpdate(part api.Part) {
	s.mu.Lock()
	if s.sessionID == "" || part.SessionID != s.sessionID {
		s.mu.Unlock()
		return
	}

	patched := false
	if mi, pi, ok := s.findPartLocked(part.MessageID, part.ID); ok {
		s.history[mi].Parts[pi] = part
		patched = true
	} else if mi, ok := s.findMessageLocked(part.MessageID); ok {
		s.history[mi].Parts = append(s.history[mi].Parts, part)
		patched = true
	}
	// A part for a message not in history yet is left to the next
	// history refetch to reconcile.
	s.mu.Unlock()

	if patched {
		s.notifier.Publish(Change{Kind: ChangeHistory})
	}
}

// applyMessageUpdate patches message metadata. A non-nil finish reason is
// one of the three independent end-of-turn signals.
func (s *Service) applyMessageUpdate(info api.Message) {
	s.mu.Lock()
	if s.sessionID == "" || info.SessionID != s.sessionID {
		s.mu.Unlock()
		return
	}

	if mi, ok := s.findMessageLocked(info.ID); ok {
		s.history[mi].Info = info
	} else {
		s.history = append(s.history, api.MessageWithParts{Info: info})
	}
	finished := info.Finish != nil
	s.mu.Unlock()

	s.notifier.Publish(Change{Kind: ChangeHistory})
	if finished {
		s.finishIfActive(info.SessionID)
	}
}

// finishIfActive clears the processing flag and schedules one history
// refetch. Finish reasons, idle statuses, and idle events all funnel
// here; whichever arrives first wins and the rest are no-ops.
func (s *Service) finishIfActive(sessionID string) {
	s.mu.Lock()
	if s.sessionID == "" || sessionID != s.sessionID || !s.processing {
		s.mu.Unlock()
		return
	}
	s.processing = false
	s.mu.Unlock()
	s.notifier.Publish(Change{Kind: ChangeProcessing})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefetchTimeout)
		defer cancel()
		if err := s.refreshHistory(ctx); err != nil {
			s.logger.Warn("history refetch after idle failed", "error", err)
		}
	}()
}

// applySessionError surfaces a server-reported failure without discarding
// the history accumulated so far.
func (s *Service) applySessionError(e api.SessionErrorEvent) {
	s.mu.Lock()
	if s.sessionID == "" || e.SessionID != s.sessionID {
		s.mu.Unlock()
		return
	}
	wasProcessing := s.processing
	s.processing = false
	s.lastFailure = e.Error
	s.mu.Unlock()

	s.logger.Warn("session error", "session_id", e.SessionID, "error", e.Error)
	if wasProcessing {
		s.notifier.Publish(Change{Kind: ChangeProcessing})
	}
	s.notifier.Publish(Change{Kind: ChangeFailure, Message: e.Error})
}

// findMessageLocked returns the history index of a message id.
func (s *Service) findMessageLocked(messageID string) (int, bool) {
	for i := range s.history {
		if s.history[i].Info.ID == messageID {
			return i, true
		}
	}
	return 0, false
}

// findPartLocked returns the history indices of a part within its message.
func (s *Service) findPartLocked(messageID, partID string) (int, int, bool) {
	mi, ok := s.findMessageLocked(messageID)
	if !ok {
		return 0, 0, false
	}
	for pi := range s.history[mi].Parts {
		if s.history[mi].Parts[pi].ID == partID {
			return mi, pi, true
		}
	}
	return 0, 0, false
}
