// ABOUTME: Maps raw OS/net-level failures into the error taxonomy.
// ABOUTME: Connection refused means the server is gone; everything else is network noise.

package apierr

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// AsError is errors.As specialized for *Error.
func AsError(err error, target **Error) bool {
	return errors.As(err, target)
}

// Retryable reports whether err is a classified error whose operation may
// be retried. Unclassified errors are not retryable.
func Retryable(err error) bool {
	var e *Error
	if !AsError(err, &e) {
		return false
	}
	return e.Retryable()
}

// FromTransport classifies a failure from the HTTP round trip itself
// (before any status code exists):
//
//   - context cancellation and deadlines map to cancelled/timeout
//   - connection refused and host-unreachable mean no server is listening
//   - any other OS-level failure is a generic (retryable) network error
//
// An err that is already an *Error passes through unchanged.
func FromTransport(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) {
		return Cancelled()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout()
	}

	if isConnRefused(err) {
		return ServerNotRunning()
	}

	return Network(err)
}

// isConnRefused detects the "nothing is listening" family of failures.
func isConnRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	// url.Error and net.OpError wrap the syscall error several layers deep
	// on some platforms; unwrap manually as a fallback.
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return sysErr.Err == syscall.ECONNREFUSED
	}
	return false
}
