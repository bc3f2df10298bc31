// Package review asks the text model to critique a draft and to correct the
// spans it flagged.
package review

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/editor"
	"campaign-compliance/internal/scoring"
)

// Severity ranks a violation.
type Severity string

const (
	Hard     Severity = "HARD"
	Soft     Severity = "SOFT"
	Advisory Severity = "ADVISORY"
)

// Penalty is the score deduction for one violation of this severity.
func (s Severity) Penalty() int {
	switch s {
	case Hard:
		return 30
	case Soft:
		return 10
	default:
		return 5
	}
}

func (s Severity) rank() int {
	switch s {
	case Hard:
		return 0
	case Soft:
		return 1
	default:
		return 2
	}
}

// ParseSeverity accepts any casing; unknown values read as SOFT.
func ParseSeverity(raw string) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(raw))) {
	case Hard:
		return Hard
	case Advisory:
		return Advisory
	default:
		return Soft
	}
}

// Violation is one critic finding.
type Violation struct {
	Category   string   `json:"category"`
	Severity   Severity `json:"severity"`
	Location   string   `json:"location,omitempty"`
	Excerpt    string   `json:"excerpt,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Assessment is the critic's qualitative read of the draft.
type Assessment struct {
	Authenticity int    `json:"authenticity"`
	Appeal       int    `json:"appeal"`
	Summary      string `json:"summary"`
}

// Input is everything the critic sees.
type Input struct {
	Draft       editor.Draft
	FactContext string
	Unsupported []string
	Stage       string
	Guidelines  string
	Keywords    []string
}

// Report is a scored critique.
type Report struct {
	Score      int         `json:"score"`
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
	Assessment Assessment  `json:"assessment"`
}

// HasHard reports whether any violation blocks publication.
func (r Report) HasHard() bool {
	for _, v := range r.Violations {
		if v.Severity == Hard {
			return true
		}
	}
	return false
}

// Result adapts the report to the shared detector result.
func (r Report) Result() scoring.Result {
	result := scoring.Pass()
	for _, v := range r.Violations {
		if v.Severity == Hard {
			result.Fail(v.Category, "%s", v.Excerpt)
			continue
		}
		result.Warn(v.Category, "%s", v.Excerpt)
	}
	if !r.Passed {
		result.Passed = false
	}
	result.Details["score"] = r.Score
	result.Details["assessment"] = r.Assessment
	return result
}

// Score applies the rubric: 100 minus 30 per HARD, 10 per SOFT and 5 per
// ADVISORY, never below zero.
func Score(violations []Violation) int {
	score := 100
	for _, v := range violations {
		score -= v.Severity.Penalty()
	}
	return max(score, 0)
}

// Critic reviews drafts with one model call each.
type Critic struct {
	completer ai.Completer
	timeout   time.Duration
}

// NewCritic returns a critic bound to completer.
func NewCritic(completer ai.Completer, timeout time.Duration) *Critic {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Critic{completer: completer, timeout: timeout}
}

// Enabled reports whether reviews can run.
func (c *Critic) Enabled() bool {
	return c != nil && c.completer != nil && c.completer.Enabled()
}

const criticSystemPrompt = `You are the compliance editor for a political communications team.
Review the draft for election-law problems (commitments made before candidacy, offers of benefits, unverifiable claims),
numbers not backed by the reference material, repetition, and tone.
Reply with a strict JSON object:
{"passed":true,"violations":[{"category":"...","severity":"HARD|SOFT|ADVISORY","location":"title|paragraph N","excerpt":"...","suggestion":"..."}],
"assessment":{"authenticity":0-10,"appeal":0-10,"summary":"..."}}
HARD blocks publication, SOFT is a quality problem, ADVISORY is stylistic. Emit nothing outside the JSON object.`

type criticReply struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
	Assessment Assessment  `json:"assessment"`
}

// Review critiques one draft. The returned score is always recomputed from the
// violations, whatever the model claims.
func (c *Critic) Review(ctx context.Context, input Input) (Report, error) {
	if !c.Enabled() {
		return Report{}, ai.ErrDisabled
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.completer.Complete(callCtx, ai.Prompt{System: criticSystemPrompt, User: buildCriticPrompt(input)})
	if err != nil {
		return Report{}, fmt.Errorf("critic: %w", err)
	}
	var decoded criticReply
	if err := ai.DecodeJSON(reply, &decoded); err != nil {
		return Report{}, fmt.Errorf("critic: %w", err)
	}

	violations := sanitizeViolations(decoded.Violations)
	report := Report{
		Score:      Score(violations),
		Violations: violations,
		Assessment: Assessment{
			Authenticity: ai.ClampInt(decoded.Assessment.Authenticity, 0, 10),
			Appeal:       ai.ClampInt(decoded.Assessment.Appeal, 0, 10),
			Summary:      strings.TrimSpace(decoded.Assessment.Summary),
		},
	}
	report.Passed = (decoded.Passed && !report.HasHard()) || len(violations) == 0
	return report, nil
}

func sanitizeViolations(in []Violation) []Violation {
	out := make([]Violation, 0, len(in))
	for _, v := range in {
		v.Category = strings.TrimSpace(v.Category)
		if v.Category == "" {
			v.Category = "unspecified"
		}
		v.Severity = ParseSeverity(string(v.Severity))
		v.Excerpt = strings.TrimSpace(v.Excerpt)
		v.Suggestion = strings.TrimSpace(v.Suggestion)
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.rank() < out[j].Severity.rank()
	})
	return out
}

func buildCriticPrompt(input Input) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Candidacy stage: %s\n", orNone(input.Stage))
	if len(input.Keywords) > 0 {
		fmt.Fprintf(b, "Keywords: %s\n", strings.Join(input.Keywords, ", "))
	}
	if g := strings.TrimSpace(input.Guidelines); g != "" {
		fmt.Fprintf(b, "Prior guideline summary:\n%s\n", g)
	}
	if f := strings.TrimSpace(input.FactContext); f != "" {
		fmt.Fprintf(b, "Reference material:\n%s\n", f)
	}
	if len(input.Unsupported) > 0 {
		fmt.Fprintf(b, "Numbers not found in the reference material: %s\n", strings.Join(input.Unsupported, ", "))
		b.WriteString("Treat each of these as a HARD violation unless the draft clearly marks it as an estimate.\n")
	}
	fmt.Fprintf(b, "Title: %s\n", input.Draft.Title)
	fmt.Fprintf(b, "Body:\n%s\n", input.Draft.Body)
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
