package speechlaw

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campaign-compliance/internal/ai"
)

// Judgement is the semantic verdict for one ambiguous sentence.
type Judgement struct {
	Sentence  string `json:"sentence"`
	Violation bool   `json:"violation"`
	Category  string `json:"category,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SemanticClassifier decides sentences the rule table could not. It returns
// one judgement per input sentence, in order.
type SemanticClassifier interface {
	Judge(ctx context.Context, sentences []string) ([]Judgement, error)
}

// LLMClassifier judges a whole batch with a single model call.
type LLMClassifier struct {
	completer ai.Completer
	timeout   time.Duration
}

// NewLLMClassifier returns nil when the completer is unavailable; leave the
// semantic tier unset in that case rather than passing a nil pointer.
func NewLLMClassifier(completer ai.Completer, timeout time.Duration) *LLMClassifier {
	if completer == nil || !completer.Enabled() {
		return nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMClassifier{completer: completer, timeout: timeout}
}

const classifierSystemPrompt = `You review sentences from political writing published before the author is a registered candidate.
A sentence is a violation only if the author personally commits to a future action as a campaign promise
(for example "I will build", "we are going to cut"). Predictions, forecasts, conditions about other people,
descriptions of plans by public agencies, and general necessity statements are not violations.
Reply with a strict JSON object: {"verdicts":[{"index":1,"violation":false,"reason":"..."}]}. Emit nothing outside the JSON object.`

type classifierReply struct {
	Verdicts []struct {
		Index     int    `json:"index"`
		Violation bool   `json:"violation"`
		Category  string `json:"category"`
		Reason    string `json:"reason"`
	} `json:"verdicts"`
}

// Judge implements SemanticClassifier. A sentence missing from the reply is
// judged a violation.
func (l *LLMClassifier) Judge(ctx context.Context, sentences []string) ([]Judgement, error) {
	if l == nil {
		return nil, ai.ErrDisabled
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Classify each numbered sentence.\n")
	for i, s := range sentences {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	reply, err := l.completer.Complete(callCtx, ai.Prompt{System: classifierSystemPrompt, User: b.String()})
	if err != nil {
		return nil, fmt.Errorf("semantic classify: %w", err)
	}
	var decoded classifierReply
	if err := ai.DecodeJSON(reply, &decoded); err != nil {
		return nil, fmt.Errorf("semantic classify: %w", err)
	}

	out := make([]Judgement, len(sentences))
	answered := make([]bool, len(sentences))
	for _, v := range decoded.Verdicts {
		i := v.Index - 1
		if i < 0 || i >= len(sentences) {
			continue
		}
		out[i] = Judgement{Sentence: sentences[i], Violation: v.Violation, Category: v.Category, Reason: strings.TrimSpace(v.Reason)}
		answered[i] = true
	}
	for i, s := range sentences {
		if !answered[i] {
			out[i] = Judgement{Sentence: s, Violation: true, Category: CategoryFutureIntent, Reason: "no verdict returned"}
		}
	}
	return out, nil
}
