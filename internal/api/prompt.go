// ABOUTME: Outbound prompt types for POST /session/{id}/message.
// ABOUTME: File parts carry base64 data URIs; raw bytes never leave the client.

package api

import (
	"encoding/base64"
	"fmt"
)

// PromptPartType discriminates outbound prompt parts.
type PromptPartType string

const (
	PromptPartText PromptPartType = "text"
	PromptPartFile PromptPartType = "file"
)

// PromptPart is one fragment of an outbound prompt: either plain text or a
// file attachment encoded as a data URI.
type PromptPart struct {
	Type     PromptPartType `json:"type"`
	Text     string         `json:"text,omitempty"`
	URL      string         `json:"url,omitempty"`
	Mime     string         `json:"mime,omitempty"`
	Filename string         `json:"filename,omitempty"`
}

// TextPart builds a text prompt part.
func TextPart(text string) PromptPart {
	return PromptPart{Type: PromptPartText, Text: text}
}

// FilePart builds a file prompt part from raw bytes. The payload is
// base64-encoded into a data URI before leaving the client.
func FilePart(data []byte, mime, filename string) PromptPart {
	return PromptPart{
		Type:     PromptPartFile,
		URL:      fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
		Mime:     mime,
		Filename: filename,
	}
}

// PromptRequest is the body for POST /session/{id}/message. Agent, when
// set, overrides the server's default agent for this prompt.
type PromptRequest struct {
	Parts []PromptPart `json:"parts"`
	Agent string       `json:"agent,omitempty"`
}
