// Package eventstream maintains a best-effort always-on subscription to
// the server's SSE event feed.
//
// # Protocol
//
// The feed is a text stream of blocks separated by blank lines. Each
// block has an "event:" line and one or more "data:" lines whose payloads
// are concatenated. A block is delivered only once both a type and a
// non-empty payload have accumulated; blocks missing either are dropped
// silently, mirroring the keep-alive heartbeats some servers emit.
//
// # Reconnection
//
// When the stream ends (clean EOF or I/O error) the subscription
// re-establishes itself automatically with exponential backoff (1s, 2s,
// 4s, 8s, 16s) up to five attempts. A successful reconnect resets the
// counter. Exhausting the ceiling delivers exactly one terminal
// disconnect notice and stops; the caller must subscribe again to resume.
//
// # Ordering
//
// Events are delivered on the subscription channel strictly in wire
// order. Successfully parsed blocks are never reordered or dropped.
package eventstream
