// Package llm provides the language model capability used by enhancement:
// send a prompt, receive a JSON value or fail.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNotConfigured is returned by Init when the backend has no credentials
	ErrNotConfigured = errors.New("llm backend not configured")
	// ErrNotReady is returned by Send before a successful Init
	ErrNotReady = errors.New("llm backend not ready")
	// ErrEmptyResponse is returned when the backend answers with no content
	ErrEmptyResponse = errors.New("llm returned an empty response")
	// ErrMalformedResponse marks answers that are not the requested JSON shape
	ErrMalformedResponse = errors.New("llm response malformed")
)

// Client is a language model backend
type Client interface {
	// Ready reports whether Send can be called
	Ready() bool
	// Init prepares the backend; callers try it once when Ready is false
	Init(ctx context.Context) error
	// Send submits a prompt and returns the JSON value of the answer
	Send(ctx context.Context, prompt string) (json.RawMessage, error)
}

// ExtractJSON pulls the JSON object out of a model answer. Markdown code
// fences and any prose around the outermost braces are discarded.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		if s == "" {
			return nil, ErrEmptyResponse
		}
		return nil, ErrMalformedResponse
	}

	raw := []byte(s[start : end+1])
	if !json.Valid(raw) {
		return nil, ErrMalformedResponse
	}
	return json.RawMessage(bytes.TrimSpace(raw)), nil
}
