// Package apierr defines the client's error taxonomy.
//
// Every failure surfaced by the transport, event stream, or conversation
// layers is an *Error carrying a Kind. The Kind fixes two classifications
// callers depend on:
//
//   - Retryable: whether retrying the same operation could plausibly
//     succeed (connection refused, 5xx, dropped streams) or not (4xx,
//     malformed JSON, missing sessions).
//   - Label: a short user-facing label, distinct from the full diagnostic
//     message, suitable for inline display next to a retry affordance.
//
// FromTransport maps raw OS/net-level failures into the taxonomy;
// FromHTTP maps non-2xx responses and their error envelopes.
package apierr
