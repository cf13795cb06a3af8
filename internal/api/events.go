// ABOUTME: SSE event envelope and the typed payloads the client handles.
// ABOUTME: Payloads decode lazily so unknown event types pass through harmlessly.

package api

import "encoding/json"

// Event is one decoded SSE block: a type tag plus raw payload bytes.
// Payloads are decoded only when the type is actually handled.
type Event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// Event types delivered on GET /event.
const (
	EventPartUpdated    = "message.part.updated"
	EventPartDelta      = "message.part.delta"
	EventMessageUpdated = "message.updated"
	EventSessionStatus  = "session.status"
	EventSessionIdle    = "session.idle"
	EventSessionError   = "session.error"
)

// PartUpdatedEvent carries a full replacement for one message part.
type PartUpdatedEvent struct {
	Part Part `json:"part"`
}

// PartDeltaEvent carries an incremental text chunk for a streaming text
// part. The client concatenates deltas locally.
type PartDeltaEvent struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	PartID    string `json:"partID"`
	Text      string `json:"text"`
}

// MessageUpdatedEvent carries updated message metadata. A non-nil Finish
// on the embedded message marks it terminal.
type MessageUpdatedEvent struct {
	Info Message `json:"info"`
}

// Session status values reported by SessionStatusEvent.
const (
	SessionStatusIdle = "idle"
	SessionStatusBusy = "busy"
)

// SessionStatusEvent reports a session's processing status.
type SessionStatusEvent struct {
	SessionID string `json:"sessionID"`
	Status    string `json:"status"`
}

// SessionIdleEvent signals that a session finished processing.
type SessionIdleEvent struct {
	SessionID string `json:"sessionID"`
}

// SessionErrorEvent reports a server-side failure for a session.
type SessionErrorEvent struct {
	SessionID string `json:"sessionID"`
	Error     string `json:"error"`
}
