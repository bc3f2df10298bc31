package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/editor"
	"campaign-compliance/internal/markup"
	"campaign-compliance/internal/textnorm"
)

// Corrector rewrites only the spans a critique flagged.
type Corrector struct {
	completer ai.Completer
	timeout   time.Duration
	minRatio  float64
	maxRatio  float64
}

// NewCorrector accepts rewrites whose plain length stays within [0.5, 1.5] of
// the original.
func NewCorrector(completer ai.Completer, timeout time.Duration) *Corrector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Corrector{completer: completer, timeout: timeout, minRatio: 0.5, maxRatio: 1.5}
}

// Enabled reports whether corrections can run.
func (c *Corrector) Enabled() bool {
	return c != nil && c.completer != nil && c.completer.Enabled()
}

const correctorSystemPrompt = `You correct political drafts. Change only the sentences listed as violations and keep every other
sentence, heading and number exactly as written. Keep the heading/paragraph markup.
Reply with a strict JSON object: {"title":"...","content":"<h2>...</h2><p>...</p>"}. Emit nothing outside the JSON object.`

type correctorReply struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Correct returns the rewritten draft and true when the rewrite is accepted.
// A rewrite outside the length band is dropped silently: the original comes
// back with false and no error.
func (c *Corrector) Correct(ctx context.Context, draft editor.Draft, violations []Violation) (editor.Draft, bool, error) {
	if len(violations) == 0 {
		return draft, false, nil
	}
	if !c.Enabled() {
		return draft, false, ai.ErrDisabled
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.completer.Complete(callCtx, ai.Prompt{System: correctorSystemPrompt, User: buildCorrectorPrompt(draft, violations)})
	if err != nil {
		return draft, false, fmt.Errorf("corrector: %w", err)
	}
	var decoded correctorReply
	if err := ai.DecodeJSON(reply, &decoded); err != nil {
		return draft, false, fmt.Errorf("corrector: %w", err)
	}
	body, err := markup.Normalize(decoded.Content)
	if err != nil {
		return draft, false, fmt.Errorf("corrector: %w", err)
	}
	if !c.withinBand(draft.Body, body) {
		return draft, false, nil
	}

	out := editor.Draft{Title: strings.TrimSpace(decoded.Title), Body: body}
	if out.Title == "" {
		out.Title = draft.Title
	}
	return out, true, nil
}

func (c *Corrector) withinBand(before, after string) bool {
	original := textnorm.PlainLen(before)
	rewritten := textnorm.PlainLen(after)
	if original == 0 {
		return rewritten > 0
	}
	ratio := float64(rewritten) / float64(original)
	return ratio >= c.minRatio && ratio <= c.maxRatio
}

func buildCorrectorPrompt(draft editor.Draft, violations []Violation) string {
	b := &strings.Builder{}
	b.WriteString("Violations to fix:\n")
	for i, v := range violations {
		fmt.Fprintf(b, "%d. [%s/%s] %s", i+1, v.Severity, v.Category, v.Excerpt)
		if v.Location != "" {
			fmt.Fprintf(b, " (at %s)", v.Location)
		}
		if v.Suggestion != "" {
			fmt.Fprintf(b, " -> %s", v.Suggestion)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "Title: %s\n", draft.Title)
	fmt.Fprintf(b, "Body:\n%s\n", draft.Body)
	return b.String()
}
