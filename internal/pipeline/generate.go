package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/editor"
	"campaign-compliance/internal/markup"
	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/textnorm"
)

var errMalformedDraft = errors.New("malformed draft reply")

const maxFallbackFacts = 3

const draftSystemPrompt = `You write short informational posts for the office of a local politician.
Write factual, neutral prose: describe issues, public data and residents' views. Never promise future
actions in the author's voice and never offer benefits to readers. Use only numbers found in the
reference material. Structure the body as an introduction paragraph, two or three sections with
<h2> headings, and a closing paragraph.
Reply with a strict JSON object: {"title":"...","content":"<p>...</p><h2>...</h2><p>...</p>"}. Emit nothing outside the JSON object.`

const rankSystemPrompt = `You compare candidate drafts for the same political post and pick the one that is most factual,
least repetitive and free of campaign promises.
Reply with a strict JSON object: {"best":N} where N is the candidate number. Emit nothing outside the JSON object.`

type draftReply struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type rankReply struct {
	Best int `json:"best"`
}

type draftInfo struct {
	attempts int
	fallback bool
}

// draftAndCheck generates a draft and runs the fast local detectors on it,
// regenerating with the findings as feedback while retries remain.
func (o *Orchestrator) draftAndCheck(ctx context.Context, r *run) (editor.Draft, draftInfo, error) {
	var (
		info     draftInfo
		feedback []string
	)
	for attempt := 1; ; attempt++ {
		r.emit(StageDrafting, attempt, 0, "generating draft")
		var (
			draft    editor.Draft
			calls    int
			fallback bool
			err      error
		)
		r.timings.Track("drafting", func() {
			draft, calls, fallback, err = o.draft(ctx, r, feedback)
		})
		info.attempts += calls
		info.fallback = fallback
		if err != nil {
			return editor.Draft{}, info, err
		}

		r.emit(StageBasicCheck, attempt, 0, "running local detectors")
		var issues []string
		r.timings.Track("basic_check", func() {
			issues = o.basicCheck(ctx, r, draft)
		})
		if len(issues) == 0 {
			return draft, info, nil
		}
		r.log.WithFields(logrus.Fields{"attempt": attempt, "issues": len(issues)}).Warn("basic check failed")
		if fallback || attempt > o.cfg.BasicCheckRetries {
			for _, issue := range issues {
				r.warn("basic_check " + issue)
			}
			return draft, info, nil
		}
		feedback = issues
	}
}

func (o *Orchestrator) basicCheck(ctx context.Context, r *run, draft editor.Draft) []string {
	merged := scoring.Merge(
		scoring.Check{Name: "repetition", Result: o.deps.Repetition.Check(draft.Body)},
		scoring.Check{Name: "speech_law", Result: o.deps.SpeechLaw.Check(ctx, draft.Title, draft.Body, r.req.Stage).Result()},
	)
	if merged.Passed {
		return nil
	}
	return merged.Issues
}

// draft returns one candidate, the number of model calls spent and whether
// the deterministic fallback produced it.
func (o *Orchestrator) draft(ctx context.Context, r *run, feedback []string) (editor.Draft, int, bool, error) {
	if !o.AIEnabled() {
		r.warn("text model disabled; used the fallback draft")
		d, err := o.fallback(r)
		return d, 0, true, err
	}

	prompt := ai.Prompt{System: draftSystemPrompt, User: o.buildDraftPrompt(r.req, feedback)}
	var (
		candidates []editor.Draft
		calls      int
	)
	if o.cfg.FanOut <= 1 {
		d, attempts, err := o.generateWithRetry(ctx, r, prompt)
		calls = attempts
		if err == nil {
			candidates = append(candidates, d)
		}
	} else {
		candidates, calls = o.fanOut(ctx, r, prompt)
	}

	switch len(candidates) {
	case 0:
		r.warn("draft generation failed; used the fallback draft")
		d, err := o.fallback(r)
		return d, calls, true, err
	case 1:
		return candidates[0], calls, false, nil
	}
	return o.rank(ctx, r, candidates), calls, false, nil
}

// generateWithRetry asks for one draft, retrying transient failures and
// unparseable replies with exponential backoff.
func (o *Orchestrator) generateWithRetry(ctx context.Context, r *run, prompt ai.Prompt) (editor.Draft, int, error) {
	var draft editor.Draft
	check := func(reply string) error {
		d, err := parseDraft(reply)
		if err != nil {
			r.log.WithError(err).Warn("draft reply unusable")
			return err
		}
		draft = d
		return nil
	}
	_, attempts, err := ai.CompleteCheckedWithRetry(ctx, o.deps.Completer, prompt, o.cfg.retryPolicy(), check)
	if err != nil {
		r.log.WithError(err).WithField("attempts", attempts).Warn("draft generation exhausted")
		return editor.Draft{}, attempts, err
	}
	return draft, attempts, nil
}

// fanOut requests FanOut drafts in parallel. Failed branches are dropped.
func (o *Orchestrator) fanOut(ctx context.Context, r *run, prompt ai.Prompt) ([]editor.Draft, int) {
	n := o.cfg.FanOut
	drafts := make([]*editor.Draft, n)
	calls := make([]int, n)

	var g errgroup.Group
	g.SetLimit(maxFanOut)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			d, attempts, err := o.generateWithRetry(ctx, r, prompt)
			calls[i] = attempts
			if err != nil {
				r.log.WithError(err).WithField("branch", i).Warn("fan-out branch dropped")
				return nil
			}
			drafts[i] = &d
			return nil
		})
	}
	_ = g.Wait()

	var out []editor.Draft
	total := 0
	for i := 0; i < n; i++ {
		total += calls[i]
		if drafts[i] != nil {
			out = append(out, *drafts[i])
		}
	}
	r.log.WithFields(logrus.Fields{"requested": n, "received": len(out)}).Info("fan-out drafting finished")
	return out, total
}

// rank picks a winner with one model call, or locally when that call fails.
func (o *Orchestrator) rank(ctx context.Context, r *run, candidates []editor.Draft) editor.Draft {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerateTimeout)
	defer cancel()

	b := &strings.Builder{}
	for i, c := range candidates {
		fmt.Fprintf(b, "Candidate %d\nTitle: %s\nBody:\n%s\n\n", i+1, c.Title, c.Body)
	}
	reply, err := o.deps.Completer.Complete(callCtx, ai.Prompt{System: rankSystemPrompt, User: b.String()})
	if err == nil {
		var decoded rankReply
		if err = ai.DecodeJSON(reply, &decoded); err == nil {
			if decoded.Best >= 1 && decoded.Best <= len(candidates) {
				return candidates[decoded.Best-1]
			}
			err = fmt.Errorf("candidate %d out of range", decoded.Best)
		}
	}
	r.log.WithError(err).Warn("ranking call failed; ranking locally")
	return candidates[o.heuristicBest(r, candidates)]
}

// heuristicBest prefers the candidate with the fewest local findings, then
// the one closest to the target length.
func (o *Orchestrator) heuristicBest(r *run, candidates []editor.Draft) int {
	best, bestIssues, bestGap := 0, -1, 0
	for i, c := range candidates {
		issues := len(o.deps.Repetition.Check(c.Body).Issues) +
			len(o.deps.SpeechLaw.CheckLocal(c.Title, c.Body, r.req.Stage).Violations)
		gap := 0
		if r.req.TargetChars > 0 {
			gap = textnorm.PlainLen(c.Body) - r.req.TargetChars
			if gap < 0 {
				gap = -gap
			}
		}
		if bestIssues < 0 || issues < bestIssues || (issues == bestIssues && gap < bestGap) {
			best, bestIssues, bestGap = i, issues, gap
		}
	}
	return best
}

func (o *Orchestrator) fallback(r *run) (editor.Draft, error) {
	d, err := o.deps.Editor.BuildFallback(editor.FallbackInput{
		Topic:          r.req.Topic,
		PrimaryKeyword: r.req.primaryKeyword(),
		Category:       r.req.Category,
		Headings:       r.req.Headings,
		Facts:          factSentences(r.req.References, maxFallbackFacts),
		TargetChars:    r.req.TargetChars,
	})
	if err != nil {
		return editor.Draft{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	r.log.WithField("chars", textnorm.PlainLen(d.Body)).Info("built fallback draft")
	return d, nil
}

func parseDraft(reply string) (editor.Draft, error) {
	var decoded draftReply
	if err := ai.DecodeJSON(reply, &decoded); err != nil {
		return editor.Draft{}, fmt.Errorf("%w: %w", errMalformedDraft, err)
	}
	title := textnorm.Collapse(decoded.Title)
	if title == "" || strings.TrimSpace(decoded.Content) == "" {
		return editor.Draft{}, fmt.Errorf("%w: missing title or content", errMalformedDraft)
	}
	body, err := markup.Normalize(decoded.Content)
	if err != nil {
		return editor.Draft{}, fmt.Errorf("%w: %w", errMalformedDraft, err)
	}
	if !markup.HasBlocks(body) {
		return editor.Draft{}, fmt.Errorf("%w: no paragraphs", errMalformedDraft)
	}
	return editor.Draft{Title: title, Body: body}, nil
}

// factSentences picks reference sentences for the fallback draft, numeric
// ones first.
func factSentences(references []string, limit int) []string {
	var numeric, plain []string
	for _, ref := range references {
		for _, s := range textnorm.SplitSentences(textnorm.StripTags(ref)) {
			if strings.ContainsAny(s, "0123456789") {
				numeric = append(numeric, s)
			} else {
				plain = append(plain, s)
			}
		}
	}
	out := append(numeric, plain...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (o *Orchestrator) buildDraftPrompt(req Request, feedback []string) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Topic: %s\n", req.Topic)
	if kw := req.primaryKeyword(); kw != "" {
		fmt.Fprintf(b, "Primary keyword (use it near the start of the title): %s\n", kw)
	}
	if kws := req.keywordTexts(); len(kws) > 0 {
		fmt.Fprintf(b, "Keywords to cover: %s\n", strings.Join(kws, ", "))
	}
	if req.TargetChars > 0 {
		fmt.Fprintf(b, "Target length: about %d characters\n", req.TargetChars)
	}
	if len(req.Headings) > 0 {
		fmt.Fprintf(b, "Suggested section headings: %s\n", strings.Join(req.Headings, " / "))
	}
	if req.Stage.Restrictive() {
		b.WriteString("The author is not yet a registered candidate: describe issues and proposals without any personal commitment.\n")
	}
	if g := strings.TrimSpace(req.Guidelines); g != "" {
		fmt.Fprintf(b, "House guidelines:\n%s\n", g)
	}
	if facts := o.factContext(req); facts != "" {
		fmt.Fprintf(b, "Reference material:\n%s\n", facts)
	}
	if i := strings.TrimSpace(req.Instructions); i != "" {
		fmt.Fprintf(b, "Additional instructions: %s\n", i)
	}
	if len(feedback) > 0 {
		b.WriteString("Previous draft problems to avoid:\n")
		for _, f := range feedback {
			fmt.Fprintf(b, "- %s\n", f)
		}
	}
	return b.String()
}

func (o *Orchestrator) factContext(req Request) string {
	var parts []string
	for _, ref := range req.References {
		if ref = textnorm.Collapse(textnorm.StripTags(ref)); ref != "" {
			parts = append(parts, ref)
		}
	}
	return textnorm.TruncateRunes(strings.Join(parts, "\n"), o.cfg.FactContextRunes)
}
