// ABOUTME: Typed error taxonomy with retryability and short user-facing labels.
// ABOUTME: All failures from transport, stream, and orchestrator flow through here.

package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind identifies one failure class in the taxonomy.
type Kind string

const (
	KindServerNotRunning Kind = "server_not_running"
	KindHTTP             Kind = "http_error"
	KindDecoding         Kind = "decoding_error"
	KindEncoding         Kind = "encoding_error"
	KindNetwork          Kind = "network_error"
	KindNoActiveSession  Kind = "no_active_session"
	KindSessionNotFound  Kind = "session_not_found"
	KindAgentNotFound    Kind = "agent_not_found"
	KindCancelled        Kind = "cancelled"
	KindTimeout          Kind = "timeout"
	KindInvalidURL       Kind = "invalid_url"
	KindStream           Kind = "stream_error"
	KindUnknown          Kind = "unknown"
)

// Error is a classified client failure. Status is set only for KindHTTP;
// ID is set for the not-found kinds.
type Error struct {
	Kind    Kind
	Status  int
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		if e.Message != "" {
			return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
		}
		return fmt.Sprintf("server returned %d", e.Status)
	case KindSessionNotFound:
		return fmt.Sprintf("session %s not found", e.ID)
	case KindAgentNotFound:
		return fmt.Sprintf("agent %s not found", e.ID)
	}
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.defaultMessage(), e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	return e.defaultMessage()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) defaultMessage() string {
	switch e.Kind {
	case KindServerNotRunning:
		return "server is not running"
	case KindDecoding:
		return "failed to decode server response"
	case KindEncoding:
		return "failed to encode request"
	case KindNetwork:
		return "network error"
	case KindNoActiveSession:
		return "no active session"
	case KindCancelled:
		return "operation cancelled"
	case KindTimeout:
		return "operation timed out"
	case KindInvalidURL:
		return "invalid server URL"
	case KindStream:
		return "event stream disconnected"
	default:
		return "unknown error"
	}
}

// Retryable reports whether retrying the failed operation could succeed.
// HTTP errors are retryable only for 5xx statuses.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindServerNotRunning, KindNetwork, KindTimeout, KindStream:
		return true
	case KindHTTP:
		return e.Status >= 500
	default:
		return false
	}
}

// Label returns a short user-facing label for inline display, distinct
// from the full diagnostic in Error().
func (e *Error) Label() string {
	switch e.Kind {
	case KindServerNotRunning:
		return "Server not running"
	case KindHTTP:
		return fmt.Sprintf("Server error (%d)", e.Status)
	case KindDecoding, KindEncoding:
		return "Protocol error"
	case KindNetwork:
		return "Network error"
	case KindNoActiveSession:
		return "No active session"
	case KindSessionNotFound:
		return "Session not found"
	case KindAgentNotFound:
		return "Agent not found"
	case KindCancelled:
		return "Cancelled"
	case KindTimeout:
		return "Timed out"
	case KindInvalidURL:
		return "Invalid server address"
	case KindStream:
		return "Disconnected"
	default:
		return "Error"
	}
}

// ServerNotRunning builds the failure used both when no port is configured
// and when the configured port refuses connections.
func ServerNotRunning() *Error {
	return &Error{Kind: KindServerNotRunning}
}

// HTTPError builds a failure for a non-2xx response. message may be empty
// when the server sent no error envelope.
func HTTPError(status int, message string) *Error {
	return &Error{Kind: KindHTTP, Status: status, Message: message}
}

// Decoding builds a failure for a JSON shape mismatch in a response body.
func Decoding(err error) *Error {
	return &Error{Kind: KindDecoding, Err: err}
}

// Encoding builds a failure for an unmarshalable request body.
func Encoding(err error) *Error {
	return &Error{Kind: KindEncoding, Err: err}
}

// Network builds a failure for an OS-level network error that is not a
// refused connection.
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

// NoActiveSession builds the failure for operations requiring a session.
func NoActiveSession() *Error {
	return &Error{Kind: KindNoActiveSession}
}

// SessionNotFound builds the failure for a session the server has forgotten.
func SessionNotFound(id string) *Error {
	return &Error{Kind: KindSessionNotFound, ID: id}
}

// AgentNotFound builds the failure for an unknown agent name.
func AgentNotFound(id string) *Error {
	return &Error{Kind: KindAgentNotFound, ID: id}
}

// Cancelled builds the failure for a cooperatively cancelled operation.
func Cancelled() *Error {
	return &Error{Kind: KindCancelled}
}

// Timeout builds the failure for an expired deadline.
func Timeout() *Error {
	return &Error{Kind: KindTimeout}
}

// InvalidURL builds the failure for an unparseable server address.
func InvalidURL(raw string) *Error {
	return &Error{Kind: KindInvalidURL, Message: fmt.Sprintf("invalid server URL %q", raw)}
}

// Stream builds the terminal failure emitted when reconnect attempts are
// exhausted.
func Stream(message string) *Error {
	return &Error{Kind: KindStream, Message: message}
}

// Unknown wraps an unclassifiable failure.
func Unknown(message string) *Error {
	return &Error{Kind: KindUnknown, Message: message}
}

// envelope is the server's error body shape: {error?, message?}.
type envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FromHTTP parses a non-2xx response body as an error envelope and builds
// an HTTP error carrying both the status and whatever message the server
// included. A missing or malformed envelope still yields a valid error;
// status 404 maps to the appropriate kind elsewhere, not here.
func FromHTTP(status int, body []byte) *Error {
	var env envelope
	message := ""
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		message = env.Message
		if message == "" {
			message = env.Error
		}
	}
	return HTTPError(status, message)
}

// IsStatus reports whether err is an HTTP error with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return AsError(err, &e) && e.Kind == KindHTTP && e.Status == status
}

// IsNotFound reports whether err is an HTTP 404 or a not-found kind.
func IsNotFound(err error) bool {
	var e *Error
	if !AsError(err, &e) {
		return false
	}
	switch e.Kind {
	case KindSessionNotFound, KindAgentNotFound:
		return true
	case KindHTTP:
		return e.Status == http.StatusNotFound
	}
	return false
}
