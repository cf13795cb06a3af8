// Package conversation is the single source of truth for the user's
// current conversation, bridging the HTTP transport and the SSE event
// stream.
//
// # Overview
//
// Service owns the connection state machine, the cached active session
// id, the conversation history, and the processing flag. The cached
// session id is a cache key, not an owned object: the server stays
// authoritative, and a cached id the server has forgotten is dropped and
// replaced transparently.
//
// # Serialization
//
// All mutations of orchestrator-owned state happen under one mutex, and
// every stream event funnels through a single goroutine draining the
// subscription channel, so an event-driven history patch can never
// interleave with a prompt-submission's refetch into a torn update.
// Prompt submission itself is additionally serialized per Service: two
// concurrent SubmitPrompt calls queue, they do not race.
//
// # Collaborators
//
// The server process supervisor is consumed through the narrow
// Supervisor interface and never implemented here. Callers observe
// changes through the Notifier rather than polling accessors.
package conversation
