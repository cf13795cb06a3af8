// Package api defines the wire-level data model shared by the transport,
// event stream, and conversation layers.
//
// # Overview
//
// All types in this package mirror the JSON shapes emitted by a locally
// running OpenCode-style agent server. They are plain tagged structs with
// no behavior beyond decoding helpers; ownership of any mutable state
// built from them (conversation history, catalogs) lives in the
// conversation package.
//
// # Timestamps
//
// The server emits ISO-8601 timestamps both with and without fractional
// seconds, sometimes within the same response. The Time type handles both
// forms transparently; a string that matches neither form is a decode
// failure, not a zero value.
//
// # Events
//
// Event carries a type tag plus the raw payload bytes. Payloads are
// decoded lazily by the consumer only for event types it actually
// handles, so unknown or future event types pass through harmlessly.
package api
