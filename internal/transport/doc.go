// Package transport turns (method, path, optional typed body) into a
// typed decoded result or a classified error.
//
// # Overview
//
// Client holds only the server address and HTTP plumbing; it has no
// per-call mutable state, so concurrent calls from different operations
// need no external locking. The conversation layer re-points the port
// once a server is resolved; until then every call fails fast with a
// server-not-running error instead of dialing.
//
// # Result shapes
//
// Get/Post/Delete decode a 2xx body into the requested type. Bool-shaped
// endpoints (delete, abort) follow a "success implies true" contract:
// any 2xx response, including 204 or an empty body, decodes to true.
// Non-2xx responses are parsed as {error?, message?} envelopes and
// surfaced as http errors carrying the status code.
//
// # Streaming
//
// OpenStream opens the long-lived SSE feed with no client-side timeout;
// cancelling its context closes the underlying connection, which is what
// unblocks a pending read.
package transport
