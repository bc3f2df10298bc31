package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/editor"
)

type fakeCompleter struct {
	replies []string
	err     error
	prompts []ai.Prompt
}

func (f *fakeCompleter) Enabled() bool { return true }

func (f *fakeCompleter) Complete(ctx context.Context, prompt ai.Prompt) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

var sampleDraft = editor.Draft{
	Title: "Riverside park notes",
	Body:  "<p>The riverside park opened in 2019.</p>\n<h2>Background</h2>\n<p>Residents visit it every weekend.</p>",
}

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		violations []Violation
		want       int
	}{
		{"clean", nil, 100},
		{"one of each", []Violation{{Severity: Hard}, {Severity: Soft}, {Severity: Advisory}}, 55},
		{"floor", []Violation{{Severity: Hard}, {Severity: Hard}, {Severity: Hard}, {Severity: Hard}}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.violations); got != tc.want {
				t.Fatalf("expected %d got %d", tc.want, got)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	if ParseSeverity(" hard ") != Hard || ParseSeverity("advisory") != Advisory || ParseSeverity("weird") != Soft {
		t.Fatal("unexpected severity parsing")
	}
}

func TestReviewRecomputesScore(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"```json\n" + `{"passed":true,"score":97,"violations":[
		{"category":"tone","severity":"advisory","excerpt":"opened"},
		{"category":"commitment","severity":"HARD","excerpt":" We will build it. "}],
		"assessment":{"authenticity":14,"appeal":6,"summary":" fine "}}` + "\n```"}}
	critic := NewCritic(fake, 0)

	report, err := critic.Review(context.Background(), Input{Draft: sampleDraft, Unsupported: []string{"100 million"}, Stage: "pre_filing"})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if report.Score != 65 {
		t.Fatalf("expected a recomputed score of 65, got %d", report.Score)
	}
	if report.Passed {
		t.Fatal("a HARD violation must fail the review even when the model passes it")
	}
	if report.Violations[0].Severity != Hard || report.Violations[0].Excerpt != "We will build it." {
		t.Fatalf("expected the HARD finding first and trimmed, got %+v", report.Violations)
	}
	if report.Assessment.Authenticity != 10 || report.Assessment.Summary != "fine" {
		t.Fatalf("unexpected assessment %+v", report.Assessment)
	}
	if !strings.Contains(fake.prompts[0].User, "100 million") {
		t.Fatalf("expected unsupported numbers in the prompt:\n%s", fake.prompts[0].User)
	}

	result := report.Result()
	if result.Passed || len(result.Issues) != 2 || !strings.HasPrefix(result.Issues[0], "commitment") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestReviewPassedRule(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"model fails without findings", `{"passed":false,"violations":[]}`, true},
		{"model passes soft findings", `{"passed":true,"violations":[{"category":"tone","severity":"SOFT"}]}`, true},
		{"model fails soft findings", `{"passed":false,"violations":[{"category":"tone","severity":"SOFT"}]}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			critic := NewCritic(&fakeCompleter{replies: []string{tc.reply}}, 0)
			report, err := critic.Review(context.Background(), Input{Draft: sampleDraft})
			if err != nil {
				t.Fatalf("review: %v", err)
			}
			if report.Passed != tc.want {
				t.Fatalf("expected passed=%v got %+v", tc.want, report)
			}
		})
	}
}

func TestReviewErrors(t *testing.T) {
	if _, err := NewCritic(nil, 0).Review(context.Background(), Input{}); !errors.Is(err, ai.ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	boom := errors.New("boom")
	if _, err := NewCritic(&fakeCompleter{err: boom}, 0).Review(context.Background(), Input{Draft: sampleDraft}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := NewCritic(&fakeCompleter{replies: []string{"not json"}}, 0).Review(context.Background(), Input{Draft: sampleDraft}); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestCorrectAcceptsRewriteWithinBand(t *testing.T) {
	fake := &fakeCompleter{replies: []string{`{"title":"","content":"<p>The riverside park opened in 2019.</p><h2>Background</h2><p>Many residents visit it on weekends.</p>"}`}}
	corrector := NewCorrector(fake, 0)

	out, ok, err := corrector.Correct(context.Background(), sampleDraft, []Violation{{Category: "tone", Severity: Soft, Excerpt: "every weekend"}})
	if err != nil || !ok {
		t.Fatalf("expected accepted rewrite, got ok=%v err=%v", ok, err)
	}
	if out.Title != sampleDraft.Title {
		t.Fatalf("an empty title must keep the original, got %q", out.Title)
	}
	if !strings.Contains(out.Body, "Many residents visit it on weekends.") || !strings.Contains(out.Body, "<h2>Background</h2>") {
		t.Fatalf("unexpected body:\n%s", out.Body)
	}
	if !strings.Contains(fake.prompts[0].User, "[SOFT/tone] every weekend") {
		t.Fatalf("expected the violation in the prompt:\n%s", fake.prompts[0].User)
	}
}

func TestCorrectRejectsLengthDrift(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"too short", "<p>Park.</p>"},
		{"too long", "<p>" + strings.Repeat("The riverside park opened in 2019 and residents love it. ", 5) + "</p>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeCompleter{replies: []string{`{"title":"New","content":"` + tc.content + `"}`}}
			out, ok, err := NewCorrector(fake, 0).Correct(context.Background(), sampleDraft, []Violation{{Category: "tone", Severity: Soft}})
			if err != nil || ok {
				t.Fatalf("expected a silent rejection, got ok=%v err=%v", ok, err)
			}
			if out != sampleDraft {
				t.Fatalf("expected the original draft back, got %+v", out)
			}
		})
	}
}

func TestCorrectWithoutViolationsSkipsModel(t *testing.T) {
	fake := &fakeCompleter{}
	out, ok, err := NewCorrector(fake, 0).Correct(context.Background(), sampleDraft, nil)
	if err != nil || ok || out != sampleDraft || len(fake.prompts) != 0 {
		t.Fatalf("expected a no-op, got ok=%v err=%v calls=%d", ok, err, len(fake.prompts))
	}
}
