package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/editor"
	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/speechlaw"
	"campaign-compliance/internal/textnorm"
)

const cleanBody = "<p>The riverside park has served the district since 1998.</p>" +
	"<h2>Background</h2><p>Visitor numbers reached 12,000 people in 2023.</p><p>The walking paths need resurfacing after heavy rain.</p>" +
	"<h2>What residents say</h2><p>Parents would like more shade near the playground.</p><p>Thank you for sharing your views with the office.</p>"

const (
	passReport = `{"passed":true,"violations":[],"assessment":{"authenticity":8,"appeal":7,"summary":"ok"}}`
	oneHard    = `{"passed":false,"violations":[{"category":"unverified_claim","severity":"HARD","excerpt":"Parents would like more shade near the playground."}]}`
	twoHard    = `{"passed":false,"violations":[{"category":"unverified_claim","severity":"HARD","excerpt":"a"},{"category":"commitment","severity":"HARD","excerpt":"b"}]}`
	softOnly   = `{"passed":false,"violations":[{"category":"tone","severity":"SOFT","excerpt":"Thank you"}]}`
)

func draftJSON(t *testing.T, title, body string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"title": title, "content": body})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

type fakeModel struct {
	mu        sync.Mutex
	draft     func(n int) (string, error)
	critic    []string
	criticErr error
	corrected string
	rank      string
	rankErr   error

	draftPrompts []ai.Prompt
	criticCalls  int
	correctCalls int
}

func (f *fakeModel) Enabled() bool { return true }

func (f *fakeModel) Complete(ctx context.Context, prompt ai.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.Contains(prompt.System, "informational posts"):
		f.draftPrompts = append(f.draftPrompts, prompt)
		return f.draft(len(f.draftPrompts))
	case strings.Contains(prompt.System, "compliance editor"):
		f.criticCalls++
		if f.criticErr != nil {
			return "", f.criticErr
		}
		if len(f.critic) == 0 {
			return passReport, nil
		}
		reply := f.critic[0]
		if len(f.critic) > 1 {
			f.critic = f.critic[1:]
		}
		return reply, nil
	case strings.Contains(prompt.System, "You correct"):
		f.correctCalls++
		return f.corrected, nil
	case strings.Contains(prompt.System, "compare candidate drafts"):
		return f.rank, f.rankErr
	}
	return "", errors.New("unexpected prompt")
}

func baseRequest() Request {
	return Request{
		Topic:          "riverside park",
		PrimaryKeyword: "riverside park",
		Keywords:       []scoring.Keyword{{Text: "riverside park", Role: scoring.RoleUser}},
		Stage:          speechlaw.StageRegistered,
		References:     []string{"Visitor numbers reached 12,000 people in 2023. The park opened in 1998."},
	}
}

func newOrchestrator(cfg Config, completer ai.Completer) *Orchestrator {
	return New(cfg, Deps{Completer: completer})
}

func hasWarning(summary Summary, fragment string) bool {
	for _, w := range summary.Warnings {
		if strings.Contains(w, fragment) {
			return true
		}
	}
	return false
}

func TestRunPassesOnFirstReview(t *testing.T) {
	model := &fakeModel{draft: func(int) (string, error) {
		return draftJSON(t, "Riverside park update", cleanBody), nil
	}}
	var stages []Stage
	result, err := newOrchestrator(Config{}, model).Run(context.Background(), baseRequest(), func(e StageEvent) {
		stages = append(stages, e.Stage)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []Stage{StageDrafting, StageBasicCheck, StageEditorReview, StageFinalizing, StageCompleted}
	if strings.Join(stageNames(stages), ",") != strings.Join(stageNames(want), ",") {
		t.Fatalf("unexpected stages %v", stages)
	}
	if result.RunID == "" || !result.Reviewed || result.Fallback {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Score != 100 || result.CriticCalls != 1 || result.CorrectionRounds != 0 || result.DraftAttempts != 1 {
		t.Fatalf("unexpected counters %+v", result)
	}
	if !result.Summary.FactGuard.Passed {
		t.Fatalf("expected the reference-backed numbers to pass: %+v", result.Summary.FactGuard)
	}
	if !strings.Contains(result.Draft.Body, "Parents would like more shade near the playground.") {
		t.Fatalf("unexpected body:\n%s", result.Draft.Body)
	}
	if _, ok := result.Summary.Timings["drafting"]; !ok {
		t.Fatalf("expected drafting timings, got %+v", result.Summary.Timings)
	}
}

func stageNames(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

func TestRunCorrectsHardFindings(t *testing.T) {
	corrected := strings.Replace(cleanBody, "Parents would like more shade", "Parents asked for more shade", 1)
	model := &fakeModel{
		draft:     func(int) (string, error) { return draftJSON(t, "Riverside park update", cleanBody), nil },
		critic:    []string{oneHard, passReport},
		corrected: draftJSON(t, "", corrected),
	}
	var stages []Stage
	result, err := newOrchestrator(Config{}, model).Run(context.Background(), baseRequest(), func(e StageEvent) {
		stages = append(stages, e.Stage)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.CriticCalls != 2 || result.CorrectionRounds != 1 || result.Score != 100 {
		t.Fatalf("unexpected counters %+v", result)
	}
	if !strings.Contains(result.Draft.Body, "Parents asked for more shade") {
		t.Fatalf("expected the corrected text:\n%s", result.Draft.Body)
	}
	found := false
	for _, s := range stages {
		if s == StageCorrecting {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a CORRECTING stage, got %v", stages)
	}
}

func TestRunKeepsBestCandidateWhenRoundsRunOut(t *testing.T) {
	corrected := strings.Replace(cleanBody, "Parents would like more shade", "Parents demanded more shade", 1)
	model := &fakeModel{
		draft:     func(int) (string, error) { return draftJSON(t, "Riverside park update", cleanBody), nil },
		critic:    []string{oneHard, twoHard},
		corrected: draftJSON(t, "Riverside park update", corrected),
	}
	result, err := newOrchestrator(Config{CriticRounds: 1}, model).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.CriticCalls != 2 || model.correctCalls != 1 {
		t.Fatalf("expected rounds+1 critic calls, got %+v", result)
	}
	if result.Score != 70 {
		t.Fatalf("expected the best score 70, got %d", result.Score)
	}
	if strings.Contains(result.Draft.Body, "demanded") || !strings.Contains(result.Draft.Body, "Parents would like more shade") {
		t.Fatalf("expected the earlier, higher-scoring candidate:\n%s", result.Draft.Body)
	}
	if !hasWarning(result.Summary, "HARD findings") {
		t.Fatalf("expected a budget warning, got %v", result.Summary.Warnings)
	}
}

func TestRunStopsOnSoftFindings(t *testing.T) {
	model := &fakeModel{
		draft:  func(int) (string, error) { return draftJSON(t, "Riverside park update", cleanBody), nil },
		critic: []string{softOnly},
	}
	result, err := newOrchestrator(Config{}, model).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.CriticCalls != 1 || model.correctCalls != 0 || result.Score != 90 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !hasWarning(result.Summary, "critic SOFT tone") {
		t.Fatalf("expected the SOFT finding as a warning, got %v", result.Summary.Warnings)
	}
}

func TestRunCorrectorRejectionEndsLoop(t *testing.T) {
	model := &fakeModel{
		draft:     func(int) (string, error) { return draftJSON(t, "Riverside park update", cleanBody), nil },
		critic:    []string{oneHard},
		corrected: draftJSON(t, "Short", "<p>Short.</p>"),
	}
	result, err := newOrchestrator(Config{}, model).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.CriticCalls != 1 || result.CorrectionRounds != 0 {
		t.Fatalf("unexpected counters %+v", result)
	}
	if !hasWarning(result.Summary, "correction rejected") {
		t.Fatalf("expected a rejection warning, got %v", result.Summary.Warnings)
	}
	if !strings.Contains(result.Draft.Body, "Parents would like more shade") {
		t.Fatalf("expected the original draft:\n%s", result.Draft.Body)
	}
}

func TestRunCriticFailureIsNotFatal(t *testing.T) {
	model := &fakeModel{
		draft:     func(int) (string, error) { return draftJSON(t, "Riverside park update", cleanBody), nil },
		criticErr: errors.New("status 503"),
	}
	result, err := newOrchestrator(Config{}, model).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reviewed || result.Score != 0 || model.criticCalls != 1 {
		t.Fatalf("critic calls are single-shot, got %+v calls=%d", result, model.criticCalls)
	}
	if !hasWarning(result.Summary, "critic failed") {
		t.Fatalf("expected a critic warning, got %v", result.Summary.Warnings)
	}
}

func TestRunWithoutModelUsesFallback(t *testing.T) {
	result, err := newOrchestrator(Config{}, nil).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Fallback || result.Reviewed || result.DraftAttempts != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if n := textnorm.RuneLen(result.Draft.Title); n < 10 || n > 25 {
		t.Fatalf("title out of bounds: %q", result.Draft.Title)
	}
	if !strings.Contains(result.Draft.Body, "12,000 people") {
		t.Fatalf("expected a reference fact in the fallback body:\n%s", result.Draft.Body)
	}
	if !hasWarning(result.Summary, "text model disabled") || !hasWarning(result.Summary, "critic unavailable") {
		t.Fatalf("unexpected warnings %v", result.Summary.Warnings)
	}
	if result.Recommendation == "" || result.Recommendation == scoring.RecommendPublish {
		t.Fatalf("an unreviewed draft must not publish outright, got %q", result.Recommendation)
	}
}

func TestRunMalformedDraftUsesFallback(t *testing.T) {
	model := &fakeModel{draft: func(int) (string, error) { return "Sorry, here is some prose instead.", nil }}
	cfg := Config{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	result, err := newOrchestrator(cfg, model).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Fallback || result.DraftAttempts != 3 || len(model.draftPrompts) != 3 {
		t.Fatalf("expected malformed replies to use every attempt before the fallback, got %+v", result)
	}
}

func TestRunRetriesMalformedDraft(t *testing.T) {
	model := &fakeModel{draft: func(n int) (string, error) {
		if n == 1 {
			return `{"title":"Riverside park update"}`, nil
		}
		return draftJSON(t, "Riverside park update", cleanBody), nil
	}}
	cfg := Config{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	result, err := newOrchestrator(cfg, model).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Fallback || result.DraftAttempts != 2 {
		t.Fatalf("expected the second reply to be used, got %+v", result)
	}
}

func TestRunGenerationFailed(t *testing.T) {
	_, err := newOrchestrator(Config{}, nil).Run(context.Background(), Request{}, nil)
	if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, editor.ErrInsufficientContent) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestRunRetriesTransientDraftErrors(t *testing.T) {
	model := &fakeModel{draft: func(n int) (string, error) {
		if n == 1 {
			return "", ai.ErrEmptyResponse
		}
		return draftJSON(t, "Riverside park update", cleanBody), nil
	}}
	cfg := Config{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	result, err := newOrchestrator(cfg, model).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Fallback || result.DraftAttempts != 2 {
		t.Fatalf("expected a retried model draft, got %+v", result)
	}
}

func TestRunRedraftsAfterBasicCheckFailure(t *testing.T) {
	bad := strings.Replace(cleanBody, "Parents would like more shade near the playground.", "We promise to add shade near the playground.", 1)
	model := &fakeModel{draft: func(n int) (string, error) {
		if n == 1 {
			return draftJSON(t, "Riverside park update", bad), nil
		}
		return draftJSON(t, "Riverside park update", cleanBody), nil
	}}
	req := baseRequest()
	req.Stage = speechlaw.StagePreFiling
	result, err := newOrchestrator(Config{}, model).Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(model.draftPrompts) != 2 || result.DraftAttempts != 2 {
		t.Fatalf("expected one redraft, got %d prompts", len(model.draftPrompts))
	}
	second := model.draftPrompts[1].User
	if !strings.Contains(second, "Previous draft problems") || !strings.Contains(second, "commitment") {
		t.Fatalf("expected feedback in the second prompt:\n%s", second)
	}
	if strings.Contains(result.Draft.Body, "promise") {
		t.Fatalf("expected the clean redraft:\n%s", result.Draft.Body)
	}
}

func TestRunFanOutDropsFailedBranchesAndRanksLocally(t *testing.T) {
	repetitive := "<p>The district repaired the old bridge last spring.</p>" +
		"<h2>Background</h2><p>The district repaired the old bridge last spring.</p><p>The walking paths need resurfacing after heavy rain.</p>" +
		"<h2>What residents say</h2><p>The district repaired the old bridge last spring.</p><p>Thank you for sharing your views with the office.</p>"
	model := &fakeModel{
		draft: func(n int) (string, error) {
			switch n {
			case 1:
				return draftJSON(t, "Riverside park update", repetitive), nil
			case 2:
				return draftJSON(t, "Riverside park update", cleanBody), nil
			}
			return "", errors.New("bad request")
		},
		rankErr: errors.New("status 500"),
	}
	result, err := newOrchestrator(Config{FanOut: 3}, model).Run(context.Background(), baseRequest(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.DraftAttempts != 3 || result.Fallback {
		t.Fatalf("unexpected result %+v", result)
	}
	if strings.Contains(result.Draft.Body, "old bridge") {
		t.Fatalf("expected the clean candidate to win:\n%s", result.Draft.Body)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := newOrchestrator(Config{FanOut: 9, CriticRounds: 1}, nil).Config()
	if cfg.FanOut != maxFanOut || cfg.CriticRounds != 1 || cfg.GenerateAttempts != 3 || cfg.InitialBackoff != 2*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfigLoopBounds(t *testing.T) {
	tests := []struct {
		name            string
		in              Config
		retries, rounds int
	}{
		{"zero takes defaults", Config{}, 1, 2},
		{"negative disables", Config{BasicCheckRetries: -1, CriticRounds: -1}, 0, 0},
		{"explicit", Config{BasicCheckRetries: 3, CriticRounds: 4}, 3, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.in.withDefaults()
			if cfg.BasicCheckRetries != tc.retries || cfg.CriticRounds != tc.rounds {
				t.Fatalf("expected retries=%d rounds=%d, got %+v", tc.retries, tc.rounds, cfg)
			}
		})
	}
}

func TestValidateLocal(t *testing.T) {
	draft := editor.Draft{Title: "Riverside park update", Body: "<p>We promise to build a new riverside park.</p>"}
	req := baseRequest()
	req.Stage = speechlaw.StagePreFiling
	summary := newOrchestrator(Config{}, nil).Validate(context.Background(), draft, req, true)
	if summary.SpeechLaw.Passed || summary.Overall.Passed {
		t.Fatalf("expected a speech-law failure, got %+v", summary.Overall)
	}
}

func TestEditFixesTitle(t *testing.T) {
	req := baseRequest()
	req.PrimaryKeyword = "park"
	req.Keywords = nil
	out, summary := newOrchestrator(Config{}, nil).Edit(editor.Draft{Title: "Park", Body: cleanBody}, req)
	if n := textnorm.RuneLen(out.Title); n < 10 || n > 25 {
		t.Fatalf("title out of bounds: %q", out.Title)
	}
	if len(summary.Changes) == 0 || !summary.Title.Passed {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestFactSentencesPreferNumbers(t *testing.T) {
	got := factSentences([]string{"Residents met twice. The budget was 40 million won. Turnout hit 55%."}, 2)
	if len(got) != 2 || !strings.Contains(got[0], "40 million") || !strings.Contains(got[1], "55%") {
		t.Fatalf("unexpected facts %v", got)
	}
}
