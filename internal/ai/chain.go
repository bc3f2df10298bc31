package ai

import (
	"context"
	"strings"
)

type completerChain struct {
	primary  Completer
	fallback Completer
}

// WithFallback returns a completer that first tries the primary implementation
// and falls back to the provided completer when the primary is unavailable or
// produces an unusable response.
func WithFallback(primary, fallback Completer) Completer {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &completerChain{primary: primary, fallback: fallback}
}

func (c *completerChain) Enabled() bool {
	if c == nil {
		return false
	}
	if c.primary != nil && c.primary.Enabled() {
		return true
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return true
	}
	return false
}

func (c *completerChain) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	var primaryErr error
	if c.primary != nil && c.primary.Enabled() {
		text, err := c.primary.Complete(ctx, prompt)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		primaryErr = err
		if primaryErr == nil {
			primaryErr = ErrEmptyResponse
		}
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Complete(ctx, prompt)
	}
	if primaryErr != nil {
		return "", primaryErr
	}
	return "", ErrDisabled
}
