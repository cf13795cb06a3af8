// ABOUTME: SSE subscription with automatic reconnect, backoff, and a retry ceiling.
// ABOUTME: Delivers decoded events to a single consumer channel in wire order.

package eventstream

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/2389/opencode-client/internal/api"
	"github.com/2389/opencode-client/internal/apierr"
)

const (
	eventPath = "/event"

	// Channel buffer for the subscription; sized for bursts of part
	// deltas between consumer wakeups.
	subscriberBufferSize = 64

	defaultMaxAttempts = 5
	defaultBaseDelay   = time.Second
)

// Opener establishes the raw streaming connection. Satisfied by
// *transport.Client.
type Opener interface {
	OpenStream(ctx context.Context, path string) (io.ReadCloser, error)
}

// Message is one delivery on a subscription channel: either a decoded
// event or, exactly once at the end, a terminal disconnect error.
type Message struct {
	Event api.Event
	Err   error
}

// Stream manages one long-lived subscription to the server's event feed.
type Stream struct {
	opener Opener
	logger *slog.Logger

	maxAttempts int
	baseDelay   time.Duration
}

// Option adjusts stream behavior; used by tests to shrink backoff delays.
type Option func(*Stream)

// WithBackoff overrides the reconnect schedule.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Stream) {
		s.maxAttempts = maxAttempts
		s.baseDelay = baseDelay
	}
}

// New creates a stream over the given connection opener. Pass nil logger
// for default.
func New(opener Opener, logger *slog.Logger, opts ...Option) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stream{
		opener:      opener,
		logger:      logger.With("component", "eventstream"),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts the background read loop and returns its delivery
// channel. The channel closes when ctx is cancelled or, after a terminal
// Message carrying the disconnect error, when reconnect attempts are
// exhausted.
func (s *Stream) Subscribe(ctx context.Context) <-chan Message {
	out := make(chan Message, subscriberBufferSize)
	go s.run(ctx, out)
	return out
}

// run is the subscription loop: connect, read until the stream ends,
// back off, reconnect. attempt counts consecutive failures only; any
// successful connection resets it to zero.
func (s *Stream) run(ctx context.Context, out chan<- Message) {
	defer close(out)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		body, err := s.opener.OpenStream(ctx, eventPath)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("stream connect failed", "attempt", attempt+1, "error", err)
			if !s.backoff(ctx, &attempt, out) {
				return
			}
			continue
		}

		attempt = 0
		s.logger.Debug("stream connected")

		readErr := s.readLoop(ctx, body, out)
		body.Close()

		if ctx.Err() != nil {
			return
		}
		s.logger.Debug("stream ended", "error", readErr)
		if !s.backoff(ctx, &attempt, out) {
			return
		}
	}
}

// backoff sleeps before the next reconnect attempt. Returns false when
// the retry ceiling is exhausted (after emitting the single terminal
// notice) or when ctx is cancelled mid-sleep.
func (s *Stream) backoff(ctx context.Context, attempt *int, out chan<- Message) bool {
	*attempt++
	if *attempt > s.maxAttempts {
		s.logger.Warn("stream reconnect attempts exhausted", "attempts", s.maxAttempts)
		select {
		case out <- Message{Err: apierr.Stream("reconnect attempts exhausted")}:
		case <-ctx.Done():
		}
		return false
	}

	delay := s.delayFor(*attempt)
	s.logger.Debug("stream backing off", "attempt", *attempt, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// delayFor returns the backoff delay before the given 1-indexed attempt:
// baseDelay doubled per prior failure.
func (s *Stream) delayFor(attempt int) time.Duration {
	return s.baseDelay << (attempt - 1)
}

// readLoop parses SSE blocks from body and delivers complete ones.
// Cancelling ctx closes body from a watcher goroutine, which unblocks the
// pending read rather than waiting for the next byte.
func (s *Stream) readLoop(ctx context.Context, body io.ReadCloser, out chan<- Message) error {
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	parser := newParser(body)
	for {
		event, err := parser.next()
		if err != nil {
			return err
		}
		select {
		case out <- Message{Event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
