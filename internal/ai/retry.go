package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
)

// RetryPolicy bounds repeated calls to the text-generation service.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CallTimeout    time.Duration
}

// DefaultRetryPolicy is three attempts with 2s doubling backoff capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     10 * time.Second,
		CallTimeout:    60 * time.Second,
	}
}

// Retryable reports whether err is worth another attempt: rate limits, server
// errors, timeouts, empty replies and replies that failed the caller's check.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDisabled) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrMalformedResponse) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status 429") || strings.Contains(msg, "status 500") || strings.Contains(msg, "status 503")
}

// CompleteWithRetry calls c until it succeeds, the error is not retryable, the
// attempts run out or ctx ends. Each attempt gets its own timeout.
func CompleteWithRetry(ctx context.Context, c Completer, prompt Prompt, policy RetryPolicy) (string, int, error) {
	return CompleteCheckedWithRetry(ctx, c, prompt, policy, nil)
}

// CompleteCheckedWithRetry is CompleteWithRetry with a reply check. A reply
// rejected by check counts as a failed attempt wrapped in ErrMalformedResponse.
func CompleteCheckedWithRetry(ctx context.Context, c Completer, prompt Prompt, policy RetryPolicy, check func(string) error) (string, int, error) {
	if c == nil || !c.Enabled() {
		return "", 0, ErrDisabled
	}
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}

	delay := policy.InitialBackoff
	var lastErr error
	attempt := 0
	for attempt < policy.Attempts {
		attempt++
		text, err := completeOnce(ctx, c, prompt, policy.CallTimeout)
		if err == nil && check != nil {
			if cerr := check(text); cerr != nil {
				err = fmt.Errorf("%w: %w", ErrMalformedResponse, cerr)
			}
		}
		if err == nil {
			return text, attempt, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", attempt, ctx.Err()
		}
		if !Retryable(err) || attempt == policy.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", attempt, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if policy.MaxBackoff > 0 && delay > policy.MaxBackoff {
			delay = policy.MaxBackoff
		}
	}
	return "", attempt, lastErr
}

func completeOnce(ctx context.Context, c Completer, prompt Prompt, timeout time.Duration) (string, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	text, err := c.Complete(callCtx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
