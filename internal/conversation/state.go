// ABOUTME: Connection state machine values owned exclusively by the Service.
// ABOUTME: Connecting always resolves to Connected or Error; it is never terminal.

package conversation

// ConnectionState is the orchestrator's connection lifecycle state.
// Exactly one state holds at a time; transitions happen only on explicit
// connect/disconnect calls or on stream exhaustion.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the state name for logging and display.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
