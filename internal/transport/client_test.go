// ABOUTME: Tests for the typed HTTP client against httptest servers.
// ABOUTME: Covers status handling, error envelopes, bool-shaped results, and fail-fast.

package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/opencode-client/internal/apierr"
)

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return New(host, port, nil)
}

type healthBody struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

func TestGet_DecodesTypedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/global/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"healthy":true,"version":"1.2.3"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	got, err := Get[healthBody](context.Background(), c, "/global/health")
	require.NoError(t, err)
	assert.True(t, got.Healthy)
	assert.Equal(t, "1.2.3", got.Version)
}

func TestPost_SendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"id":"ses_1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	got, err := Post[struct {
		ID string `json:"id"`
	}](context.Background(), c, "/session", map[string]string{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, "ses_1", got.ID)
}

func TestGet_NonOKParsesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"session not found"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := Get[healthBody](context.Background(), c, "/session/ses_gone")
	require.Error(t, err)

	var cerr *apierr.Error
	require.True(t, apierr.AsError(err, &cerr))
	assert.Equal(t, apierr.KindHTTP, cerr.Kind)
	assert.Equal(t, http.StatusNotFound, cerr.Status)
	assert.Equal(t, "session not found", cerr.Message)
	assert.False(t, cerr.Retryable())
}

func TestGet_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := Get[healthBody](context.Background(), c, "/global/health")
	require.Error(t, err)
	assert.True(t, apierr.Retryable(err))
}

func TestGet_ShapeMismatchIsDecodingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"healthy":"yes"}`)) // string where bool expected
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := Get[healthBody](context.Background(), c, "/global/health")
	require.Error(t, err)

	var cerr *apierr.Error
	require.True(t, apierr.AsError(err, &cerr))
	assert.Equal(t, apierr.KindDecoding, cerr.Kind)
	assert.False(t, cerr.Retryable())
}

func TestGet_EmptyBodyIsDecodingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := Get[healthBody](context.Background(), c, "/global/health")
	require.Error(t, err)

	var cerr *apierr.Error
	require.True(t, apierr.AsError(err, &cerr))
	assert.Equal(t, apierr.KindDecoding, cerr.Kind)
}

func TestBoolResults_SuccessImpliesTrue(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"204 no content", http.StatusNoContent, ""},
		{"200 empty body", http.StatusOK, ""},
		{"200 literal true", http.StatusOK, "true"},
		{"200 json object", http.StatusOK, `{"ok":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			c := newTestClient(t, srv)
			ok, err := c.DeleteBool(context.Background(), "/session/ses_1")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestBoolResults_NonOKNeverTrue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"session is busy"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ok, err := c.PostBool(context.Background(), "/session/ses_1/abort", nil)
	assert.False(t, ok)
	require.Error(t, err)

	var cerr *apierr.Error
	require.True(t, apierr.AsError(err, &cerr))
	assert.Equal(t, http.StatusConflict, cerr.Status)
	assert.Equal(t, "session is busy", cerr.Message)
}

func TestUnconfiguredPortFailsFast(t *testing.T) {
	c := New("127.0.0.1", 0, nil)

	_, err := Get[healthBody](context.Background(), c, "/global/health")
	var cerr *apierr.Error
	require.True(t, apierr.AsError(err, &cerr))
	assert.Equal(t, apierr.KindServerNotRunning, cerr.Kind)

	_, err = c.OpenStream(context.Background(), "/event")
	require.True(t, apierr.AsError(err, &cerr))
	assert.Equal(t, apierr.KindServerNotRunning, cerr.Kind)
}

func TestConnectionRefusedClassified(t *testing.T) {
	// Grab a port that nothing listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	c := New("127.0.0.1", port, nil)
	_, err = Get[healthBody](context.Background(), c, "/global/health")
	require.Error(t, err)

	var cerr *apierr.Error
	require.True(t, apierr.AsError(err, &cerr))
	assert.Equal(t, apierr.KindServerNotRunning, cerr.Kind)
	assert.True(t, cerr.Retryable())
}

func TestSetPortRepoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"healthy":true,"version":"9"}`))
	}))
	defer srv.Close()

	c := New("127.0.0.1", 0, nil)
	_, err := Get[healthBody](context.Background(), c, "/global/health")
	require.Error(t, err)

	u, _ := url.Parse(srv.URL)
	_, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	c.SetPort(port)

	got, err := Get[healthBody](context.Background(), c, "/global/health")
	require.NoError(t, err)
	assert.Equal(t, "9", got.Version)
}

func TestOpenStream_SetsAcceptHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: session.idle\ndata: {}\n\n"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	body, err := c.OpenStream(context.Background(), "/event")
	require.NoError(t, err)
	body.Close()
}

func TestOpenStream_NonOKIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.OpenStream(context.Background(), "/event")
	require.Error(t, err)

	var cerr *apierr.Error
	require.True(t, apierr.AsError(err, &cerr))
	assert.Equal(t, http.StatusServiceUnavailable, cerr.Status)
}
