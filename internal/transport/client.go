// ABOUTME: Stateless-per-call HTTP client with JSON codec and typed error mapping.
// ABOUTME: Port 0 means no server is known yet; all calls fail fast until re-pointed.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/2389/opencode-client/internal/apierr"
)

const defaultRequestTimeout = 120 * time.Second

// Client issues JSON requests against a configurable host and port.
// Safe for concurrent use; the only mutable state is the port, which the
// conversation layer updates once a server is resolved.
type Client struct {
	mu   sync.RWMutex
	host string
	port int

	httpc   *http.Client
	streamc *http.Client
	logger  *slog.Logger
}

// New creates a client for the given host. port may be 0 when no server
// is known yet. Pass nil logger for default.
func New(host string, port int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		host:  host,
		port:  port,
		httpc: &http.Client{Timeout: defaultRequestTimeout},
		// The SSE feed stays open indefinitely; no client-side timeout.
		streamc: &http.Client{},
		logger:  logger.With("component", "transport"),
	}
}

// SetPort re-points the client at a resolved server port.
func (c *Client) SetPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.port = port
}

// Port returns the currently configured port (0 if unset).
func (c *Client) Port() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.port
}

// BaseURL returns the current base URL, or an error when no port is set.
func (c *Client) BaseURL() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.port == 0 {
		return "", apierr.ServerNotRunning()
	}
	return fmt.Sprintf("http://%s:%d", c.host, c.port), nil
}

// do executes one request and returns the status code and raw body.
// Network-level failures come back classified; status handling is left to
// the caller so bool-shaped and typed results can differ.
func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	base, err := c.BaseURL()
	if err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, apierr.Encoding(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return 0, nil, apierr.InvalidURL(base + path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, apierr.FromTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apierr.FromTransport(err)
	}

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode)

	return resp.StatusCode, raw, nil
}

// decode runs one typed call end to end: 2xx bodies decode into T,
// non-2xx responses become http errors with the envelope message.
func decode[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var result T

	status, raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return result, err
	}
	if status < 200 || status > 299 {
		return result, apierr.FromHTTP(status, raw)
	}
	// 204 / empty bodies are valid only for bool-shaped results.
	if len(raw) == 0 {
		return result, apierr.Decoding(fmt.Errorf("empty body for %s %s", method, path))
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, apierr.Decoding(err)
	}
	return result, nil
}

// Get issues a GET and decodes the response into T.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	return decode[T](ctx, c, http.MethodGet, path, nil)
}

// Post issues a POST with a JSON body and decodes the response into T.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return decode[T](ctx, c, http.MethodPost, path, body)
}

// Delete issues a DELETE and decodes the response into T.
func Delete[T any](ctx context.Context, c *Client, path string) (T, error) {
	return decode[T](ctx, c, http.MethodDelete, path, nil)
}

// boolResult runs a bool-shaped call: any 2xx response, including 204 or
// an empty body, means true. Callers of delete/abort endpoints depend on
// this "success implies true" contract.
func (c *Client) boolResult(ctx context.Context, method, path string, body any) (bool, error) {
	status, raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return false, err
	}
	if status < 200 || status > 299 {
		return false, apierr.FromHTTP(status, raw)
	}
	return true, nil
}

// PostBool issues a POST against a bool-shaped endpoint.
func (c *Client) PostBool(ctx context.Context, path string, body any) (bool, error) {
	return c.boolResult(ctx, http.MethodPost, path, body)
}

// DeleteBool issues a DELETE against a bool-shaped endpoint.
func (c *Client) DeleteBool(ctx context.Context, path string) (bool, error) {
	return c.boolResult(ctx, http.MethodDelete, path, nil)
}

// OpenStream opens a long-lived event-stream response and returns its
// body. Cancelling ctx closes the underlying connection, unblocking any
// pending read.
func (c *Client) OpenStream(ctx context.Context, path string) (io.ReadCloser, error) {
	base, err := c.BaseURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, apierr.InvalidURL(base + path)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamc.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apierr.FromHTTP(resp.StatusCode, raw)
	}

	c.logger.Debug("event stream opened", "path", path)
	return resp.Body, nil
}
