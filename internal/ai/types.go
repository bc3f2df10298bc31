package ai

import (
	"context"
	"errors"
)

// Prompt is one chat exchange: a system instruction and a user message.
type Prompt struct {
	System string
	User   string
}

// Completer is the text-generation service. Every drafting, critique,
// correction and classification call goes through it.
type Completer interface {
	Enabled() bool
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

var (
	// ErrDisabled is returned when no model is configured.
	ErrDisabled = errors.New("ai completer disabled")
	// ErrEmptyResponse marks a reply with no usable content.
	ErrEmptyResponse = errors.New("ai empty response")
	// ErrMalformedResponse marks a reply a caller's check could not parse.
	ErrMalformedResponse = errors.New("ai malformed response")
)
