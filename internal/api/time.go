// ABOUTME: Time wrapper decoding ISO-8601 timestamps with or without fractional seconds.
// ABOUTME: The server mixes both forms, sometimes within a single response.

package api

import (
	"fmt"
	"strconv"
	"time"
)

// timeLayouts are tried in order when decoding a timestamp string.
// Fractional seconds first; the plain form is the fallback.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	time.RFC3339,
}

// Time is a time.Time that unmarshals from the server's ISO-8601 strings.
type Time struct {
	time.Time
}

// UnmarshalJSON decodes an ISO-8601 string, trying the fractional-seconds
// layout before falling back to whole seconds. null decodes to the zero
// value. Any other shape is an error so the caller can classify it as a
// decoding failure rather than silently dropping the field.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp is not a string: %s", data)
	}

	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("unrecognized timestamp %q: %w", s, lastErr)
}

// MarshalJSON encodes as RFC 3339 with fractional seconds.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.Format(timeLayouts[0]))), nil
}
