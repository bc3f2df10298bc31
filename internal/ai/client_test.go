package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   int
	enabled bool
}

func (s *scriptedCompleter) Enabled() bool { return s.enabled }

func (s *scriptedCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func TestNormalizeJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"plain", `{"a":1}`, `{"a":1}`},
		{"empty", "   ", ""},
		{"no object", "nothing here", "nothing here"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeJSONBlock(tc.input); got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	if err := DecodeJSON("```json\n{\"title\":\"hi\"}\n```", &out); err != nil || out.Title != "hi" {
		t.Fatalf("unexpected decode result %+v err=%v", out, err)
	}
	if err := DecodeJSON("", &out); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if err := DecodeJSON("{broken", &out); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	client, err := NewClient(Config{APIKey: "sk-test"})
	if err != nil || !client.Enabled() || client.Model() == "" {
		t.Fatalf("expected enabled client, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrDisabled, false},
		{ErrEmptyResponse, true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{context.Canceled, false},
		{errors.New("openai status 503"), true},
		{errors.New("bad request"), false},
	}
	for _, tc := range tests {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestCompleteWithRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	flaky := &scriptedCompleter{enabled: true, errs: []error{ErrEmptyResponse, nil}, replies: []string{"", "draft"}}
	text, attempts, err := CompleteWithRetry(context.Background(), flaky, Prompt{User: "x"}, policy)
	if err != nil || text != "draft" || attempts != 2 {
		t.Fatalf("expected success on second attempt, got %q %d %v", text, attempts, err)
	}

	fatal := &scriptedCompleter{enabled: true, errs: []error{errors.New("bad request")}}
	if _, attempts, err := CompleteWithRetry(context.Background(), fatal, Prompt{}, policy); err == nil || attempts != 1 {
		t.Fatalf("non-retryable errors should stop immediately, got %d %v", attempts, err)
	}

	empty := &scriptedCompleter{enabled: true}
	if _, attempts, err := CompleteWithRetry(context.Background(), empty, Prompt{}, policy); !errors.Is(err, ErrEmptyResponse) || attempts != 3 {
		t.Fatalf("expected exhausted retries, got %d %v", attempts, err)
	}

	if _, _, err := CompleteWithRetry(context.Background(), &scriptedCompleter{}, Prompt{}, policy); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestCompleteCheckedWithRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	wantJSON := func(reply string) error {
		var v map[string]any
		return DecodeJSON(reply, &v)
	}

	recovers := &scriptedCompleter{enabled: true, replies: []string{"Sorry, prose.", `{"title":"ok"}`}}
	text, attempts, err := CompleteCheckedWithRetry(context.Background(), recovers, Prompt{}, policy, wantJSON)
	if err != nil || attempts != 2 || text != `{"title":"ok"}` {
		t.Fatalf("expected the second reply, got %q %d %v", text, attempts, err)
	}

	garbled := &scriptedCompleter{enabled: true, replies: []string{"a", "b", "c"}}
	_, attempts, err = CompleteCheckedWithRetry(context.Background(), garbled, Prompt{}, policy, wantJSON)
	if !errors.Is(err, ErrMalformedResponse) || attempts != 3 {
		t.Fatalf("expected exhausted malformed retries, got %d %v", attempts, err)
	}
	if !Retryable(err) {
		t.Fatalf("malformed replies must be retryable: %v", err)
	}
}

func TestWithFallback(t *testing.T) {
	primary := &scriptedCompleter{enabled: true, errs: []error{errors.New("down")}}
	fallback := &scriptedCompleter{enabled: true, replies: []string{"from fallback"}}
	chain := WithFallback(primary, fallback)
	text, err := chain.Complete(context.Background(), Prompt{})
	if err != nil || text != "from fallback" {
		t.Fatalf("expected fallback reply, got %q %v", text, err)
	}

	if WithFallback(nil, fallback) != Completer(fallback) {
		t.Fatal("nil primary should return the fallback")
	}

	disabled := WithFallback(&scriptedCompleter{}, &scriptedCompleter{})
	if disabled.Enabled() {
		t.Fatal("chain of disabled completers should be disabled")
	}
	if _, err := disabled.Complete(context.Background(), Prompt{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
