// ABOUTME: Core wire types for sessions, messages, message parts, and catalogs.
// ABOUTME: Mirrors the JSON shapes of the local agent server's HTTP API.

package api

import (
	"fmt"
	"strings"
)

// Health is the response from GET /global/health.
type Health struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

// AgentMode controls where an agent may be used.
type AgentMode string

const (
	AgentModePrimary  AgentMode = "primary"
	AgentModeSubagent AgentMode = "subagent"
	AgentModeAll      AgentMode = "all"
)

// Agent is a named server-side behavior profile (e.g. "build", "plan").
type Agent struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Mode        AgentMode `json:"mode"`
	Native      bool      `json:"native,omitempty"`
	Default     bool      `json:"default,omitempty"`
}

// Selectable reports whether the agent may be picked directly by a user,
// as opposed to existing only as a subagent.
func (a Agent) Selectable() bool {
	return a.Mode == AgentModePrimary || a.Mode == AgentModeAll
}

// ProviderModel is one model offered by a provider.
type ProviderModel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider is an upstream model source and the models it offers, keyed by
// model id.
type Provider struct {
	ID     string                   `json:"id"`
	Name   string                   `json:"name"`
	Models map[string]ProviderModel `json:"models,omitempty"`
}

// ProviderList is the response from GET /provider. Connected lists the
// provider ids the server has working credentials for; Default maps a
// provider id to its default model id.
type ProviderList struct {
	All       []Provider        `json:"all"`
	Default   map[string]string `json:"default,omitempty"`
	Connected []string          `json:"connected,omitempty"`
}

// ModelRef identifies a model by composite "providerID/modelID" id.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// String returns the composite id form.
func (m ModelRef) String() string {
	return m.ProviderID + "/" + m.ModelID
}

// ParseModelRef splits a composite "providerID/modelID" id.
func ParseModelRef(s string) (ModelRef, error) {
	provider, model, ok := strings.Cut(s, "/")
	if !ok || provider == "" || model == "" {
		return ModelRef{}, fmt.Errorf("invalid model reference %q (want providerID/modelID)", s)
	}
	return ModelRef{ProviderID: provider, ModelID: model}, nil
}

// SessionTime holds a session's creation and last-update timestamps.
type SessionTime struct {
	Created Time `json:"created"`
	Updated Time `json:"updated"`
}

// Session is a server-side conversation context. The server is
// authoritative; clients hold at most a cached id.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title,omitempty"`
	ParentID  *string     `json:"parentID,omitempty"`
	Directory string      `json:"directory,omitempty"`
	Version   string      `json:"version,omitempty"`
	Time      SessionTime `json:"time"`
}

// CreateSessionRequest is the body for POST /session.
type CreateSessionRequest struct {
	Title    string  `json:"title,omitempty"`
	ParentID *string `json:"parentID,omitempty"`
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CacheUsage counts prompt-cache token traffic.
type CacheUsage struct {
	Read  int `json:"read"`
	Write int `json:"write"`
}

// TokenUsage counts tokens consumed by an assistant message.
type TokenUsage struct {
	Input     int        `json:"input"`
	Output    int        `json:"output"`
	Reasoning int        `json:"reasoning"`
	Cache     CacheUsage `json:"cache"`
}

// MessageTime holds a message's creation and optional completion timestamps.
type MessageTime struct {
	Created   Time  `json:"created"`
	Completed *Time `json:"completed,omitempty"`
}

// Message is one turn in a session. A non-nil Finish means the message is
// terminal: no further streaming deltas will arrive for it.
type Message struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"sessionID"`
	Role       Role        `json:"role"`
	Time       MessageTime `json:"time"`
	Agent      string      `json:"agent,omitempty"`
	ProviderID string      `json:"providerID,omitempty"`
	ModelID    string      `json:"modelID,omitempty"`
	Cost       float64     `json:"cost,omitempty"`
	Tokens     *TokenUsage `json:"tokens,omitempty"`
	Finish     *string     `json:"finish,omitempty"`
}

// PartType discriminates message part payloads. Servers may emit types not
// listed here; consumers treat those as opaque.
type PartType string

const (
	PartTypeText       PartType = "text"
	PartTypeTool       PartType = "tool"
	PartTypeToolResult PartType = "tool-result"
	PartTypeStepStart  PartType = "step-start"
	PartTypeFile       PartType = "file"
)

// ToolState is the mutable status of a tool-invocation part. The server
// updates it in place as the tool runs.
type ToolState struct {
	Status string         `json:"status"`
	Title  string         `json:"title,omitempty"`
	Input  map[string]any `json:"input,omitempty"`
	Output string         `json:"output,omitempty"`
}

// Part is a fragment of a message. Parts are mutable: the same part id may
// arrive repeatedly with updated contents, and text parts may grow through
// incremental deltas instead.
type Part struct {
	ID        string     `json:"id"`
	MessageID string     `json:"messageID"`
	SessionID string     `json:"sessionID"`
	Type      PartType   `json:"type"`
	Text      string     `json:"text,omitempty"`
	Tool      string     `json:"tool,omitempty"`
	CallID    string     `json:"callID,omitempty"`
	State     *ToolState `json:"state,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	Mime      string     `json:"mime,omitempty"`
	URL       string     `json:"url,omitempty"`
}

// MessageWithParts pairs a message with its ordered parts, as returned by
// the message list and prompt endpoints.
type MessageWithParts struct {
	Info  Message `json:"info"`
	Parts []Part  `json:"parts"`
}

// TextContent joins the text of all text-typed parts with newlines.
// Non-text parts are skipped.
func (m MessageWithParts) TextContent() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartTypeText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
