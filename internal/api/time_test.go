// ABOUTME: Tests for ISO-8601 timestamp decoding with and without fractional seconds.
// ABOUTME: Covers both layouts, null handling, and decode failures.

package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTime_UnmarshalFractionalSeconds(t *testing.T) {
	var ts Time
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-14T09:26:53.589Z"`), &ts))
	assert.Equal(t, 2025, ts.Year())
	assert.Equal(t, 589000000, ts.Nanosecond())
}

func TestTime_UnmarshalWholeSeconds(t *testing.T) {
	var ts Time
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-14T09:26:53Z"`), &ts))
	assert.Equal(t, time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), ts.Time)
}

func TestTime_UnmarshalWithOffset(t *testing.T) {
	var ts Time
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-14T09:26:53.100000+02:00"`), &ts))
	_, offset := ts.Zone()
	assert.Equal(t, 2*60*60, offset)
}

func TestTime_UnmarshalNull(t *testing.T) {
	var ts Time
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
}

func TestTime_UnmarshalRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not a string", `42`},
		{"not a timestamp", `"yesterday"`},
		{"epoch millis", `1741944413000`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Time
			assert.Error(t, json.Unmarshal([]byte(tt.input), &ts))
		})
	}
}

func TestTime_RoundTrip(t *testing.T) {
	orig := Time{Time: time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)}
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var decoded Time
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, orig.Equal(decoded.Time))
}
