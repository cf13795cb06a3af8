// ABOUTME: In-memory fan-out of typed state-change notifications to observers.
// ABOUTME: Replaces field-level observation with an explicit publish/subscribe contract.

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// ChangeKind identifies which piece of orchestrator state changed.
type ChangeKind string

const (
	ChangeState      ChangeKind = "state"      // connection state transition
	ChangeProcessing ChangeKind = "processing" // processing flag flipped
	ChangeStreaming  ChangeKind = "streaming"  // streaming text buffer grew or reset
	ChangeHistory    ChangeKind = "history"    // conversation history rebuilt or patched
	ChangeFailure    ChangeKind = "failure"    // server-reported session error
)

// Change is one state-change notification. Observers read current values
// through the Service accessors; Message is set only for failures.
type Change struct {
	Kind    ChangeKind
	Message string
}

// Notifier provides in-memory pub/sub for orchestrator state changes.
// Publishing never blocks: changes are dropped for subscribers whose
// channels are full, since observers re-read current state anyway.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]chan Change
	logger      *slog.Logger
}

// NewNotifier creates a notifier. Pass nil logger for default.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subscribers: make(map[string]chan Change),
		logger:      logger.With("component", "notifier"),
	}
}

// Subscribe registers an observer. Returns the delivery channel and a
// subscription id for later unsubscription. The subscription is cleaned
// up automatically when ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan Change, string) {
	subID := uuid.New().String()
	ch := make(chan Change, subscriberBufferSize)

	n.mu.Lock()
	n.subscribers[subID] = ch
	n.mu.Unlock()

	n.logger.Debug("observer added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		n.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish fans a change out to all subscribers without blocking.
func (n *Notifier) Publish(change Change) {
	n.mu.RLock()
	targets := make([]chan Change, 0, len(n.subscribers))
	for _, ch := range n.subscribers {
		targets = append(targets, ch)
	}
	n.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- change:
		default:
			// Subscriber channel full: drop, observers re-read state.
			n.logger.Debug("dropped change for slow observer", "kind", change.Kind)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.subscribers[subID]
	if !ok {
		return
	}
	delete(n.subscribers, subID)
	close(ch)

	n.logger.Debug("observer removed", "sub_id", subID)
}

// Close shuts down the notifier and closes all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for subID, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, subID)
	}
}
