// ABOUTME: Narrow interface to the external server-process supervisor.
// ABOUTME: The supervisor is a collaborator; this package never launches processes.

package conversation

import "context"

// Supervisor starts and stops the external agent server process. The
// concrete implementation (binary discovery, port selection, stdout
// capture) lives with the caller; the orchestrator only consumes this
// surface.
type Supervisor interface {
	// Start launches the server and reports the port it listens on plus
	// its working directory.
	Start(ctx context.Context) (port int, workDir string, err error)

	// Stop terminates a server this supervisor started.
	Stop() error

	// IsRunning reports whether a supervised server process is alive.
	IsRunning() bool

	// ErrorMessage returns the last launch failure, or empty.
	ErrorMessage() string
}
