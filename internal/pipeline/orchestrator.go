// Package pipeline drives one draft request from generation through the
// detectors, the critic/corrector loop and the final editor pass.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/editor"
	"campaign-compliance/internal/factguard"
	"campaign-compliance/internal/repetition"
	"campaign-compliance/internal/review"
	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/speechlaw"
	"campaign-compliance/internal/util"
)

// ErrGenerationFailed is the only error Run returns: no draft could be
// generated and the deterministic fallback could not be built either.
var ErrGenerationFailed = errors.New("draft generation failed")

// Config bounds every loop in a run.
type Config struct {
	GenerateAttempts  int           `json:"generate_attempts"`
	InitialBackoff    time.Duration `json:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff"`
	GenerateTimeout   time.Duration `json:"generate_timeout"`
	BasicCheckRetries int           `json:"basic_check_retries"`
	CriticRounds      int           `json:"critic_rounds"`
	FanOut            int           `json:"fan_out"`
	FactContextRunes  int           `json:"fact_context_runes"`
}

const maxFanOut = 4

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{
		GenerateAttempts:  3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		GenerateTimeout:   60 * time.Second,
		BasicCheckRetries: 1,
		CriticRounds:      2,
		FanOut:            1,
		FactContextRunes:  4000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.GenerateAttempts <= 0 {
		c.GenerateAttempts = def.GenerateAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(def.MaxBackoff, c.InitialBackoff)
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = def.GenerateTimeout
	}
	c.BasicCheckRetries = boundOrDefault(c.BasicCheckRetries, def.BasicCheckRetries)
	c.CriticRounds = boundOrDefault(c.CriticRounds, def.CriticRounds)
	if c.FanOut <= 0 {
		c.FanOut = def.FanOut
	}
	if c.FanOut > maxFanOut {
		c.FanOut = maxFanOut
	}
	if c.FactContextRunes <= 0 {
		c.FactContextRunes = def.FactContextRunes
	}
	return c
}

// boundOrDefault maps zero to the default and any negative value to zero, so a
// loop can be switched off explicitly.
func boundOrDefault(v, def int) int {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	}
	return v
}

func (c Config) retryPolicy() ai.RetryPolicy {
	return ai.RetryPolicy{
		Attempts:       c.GenerateAttempts,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		CallTimeout:    c.GenerateTimeout,
	}
}

// Deps are the collaborators of an orchestrator. Only Completer may be nil
// or disabled; the run then completes through the fallback draft.
type Deps struct {
	Completer  ai.Completer
	Repetition *repetition.Detector
	SpeechLaw  *speechlaw.Classifier
	FactGuard  *factguard.Guard
	Titles     *scoring.TitleValidator
	Keywords   *scoring.KeywordValidator
	Critic     *review.Critic
	Corrector  *review.Corrector
	Editor     *editor.Editor
}

// Orchestrator runs requests. It holds no per-run state and is safe for
// concurrent use.
type Orchestrator struct {
	cfg  Config
	deps Deps
}

// New fills missing detectors with their defaults.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Repetition == nil {
		deps.Repetition = repetition.New(repetition.Config{})
	}
	if deps.SpeechLaw == nil {
		deps.SpeechLaw = speechlaw.NewClassifier(nil, nil)
	}
	if deps.FactGuard == nil {
		deps.FactGuard = factguard.NewGuard(factguard.Config{})
	}
	if deps.Titles == nil {
		deps.Titles = scoring.NewTitleValidator(scoring.TitleConfig{}, scoring.DefaultVagueTerms(), factguard.MissingFrom)
	}
	if deps.Keywords == nil {
		deps.Keywords = scoring.NewKeywordValidator(scoring.KeywordConfig{})
	}
	if deps.Critic == nil {
		deps.Critic = review.NewCritic(deps.Completer, 0)
	}
	if deps.Corrector == nil {
		deps.Corrector = review.NewCorrector(deps.Completer, 0)
	}
	if deps.Editor == nil {
		deps.Editor = editor.New(editor.Config{})
	}
	return &Orchestrator{cfg: cfg.withDefaults(), deps: deps}
}

// Config exposes the effective bounds.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// AIEnabled reports whether drafts come from the model or the fallback.
func (o *Orchestrator) AIEnabled() bool {
	return o.deps.Completer != nil && o.deps.Completer.Enabled()
}

// Request is one draft job.
type Request struct {
	Topic          string            `json:"topic"`
	Instructions   string            `json:"instructions,omitempty"`
	PrimaryKeyword string            `json:"primary_keyword"`
	Keywords       []scoring.Keyword `json:"keywords"`
	Category       string            `json:"category,omitempty"`
	Headings       []string          `json:"headings,omitempty"`
	TargetChars    int               `json:"target_chars"`
	Stage          speechlaw.Stage   `json:"stage"`
	References     []string          `json:"references,omitempty"`
	Guidelines     string            `json:"guidelines,omitempty"`
}

func (r Request) primaryKeyword() string {
	if kw := strings.TrimSpace(r.PrimaryKeyword); kw != "" {
		return kw
	}
	for _, k := range r.Keywords {
		if kw := strings.TrimSpace(k.Text); kw != "" {
			return kw
		}
	}
	return ""
}

func (r Request) keywordTexts() []string {
	var out []string
	for _, k := range r.Keywords {
		if kw := strings.TrimSpace(k.Text); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// BestCandidate is the highest-scoring reviewed draft of a run. It is only
// replaced by a strictly higher score.
type BestCandidate struct {
	Draft editor.Draft `json:"draft"`
	Score int          `json:"score"`
	Round int          `json:"round"`
}

// Summary is the final report attached to every result.
type Summary struct {
	Overall    scoring.Result   `json:"overall"`
	Title      scoring.Result   `json:"title"`
	Keywords   scoring.Result   `json:"keywords"`
	Repetition scoring.Result   `json:"repetition"`
	SpeechLaw  scoring.Result   `json:"speech_law"`
	FactGuard  scoring.Result   `json:"fact_guard"`
	Changes    []editor.Change  `json:"changes"`
	Warnings   []string         `json:"warnings"`
	Timings    map[string]int64 `json:"timings_ms"`
}

// Result is the outcome of a run.
type Result struct {
	RunID            string                 `json:"run_id"`
	Draft            editor.Draft           `json:"draft"`
	Score            int                    `json:"score"`
	Reviewed         bool                   `json:"reviewed"`
	Recommendation   scoring.Recommendation `json:"recommendation"`
	Fallback         bool                   `json:"fallback"`
	DraftAttempts    int                    `json:"draft_attempts"`
	CriticCalls      int                    `json:"critic_calls"`
	CorrectionRounds int                    `json:"correction_rounds"`
	Summary          Summary                `json:"summary"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

type run struct {
	id       string
	req      Request
	log      *logrus.Entry
	observer Observer
	timings  util.Timings
	warnings []string
	allow    factguard.Allowlist
}

func (r *run) emit(stage Stage, attempt, round int, message string) {
	r.log.WithFields(logrus.Fields{"stage": stage, "attempt": attempt, "round": round}).Debug(message)
	if r.observer == nil {
		return
	}
	r.observer(StageEvent{RunID: r.id, Stage: stage, Attempt: attempt, Round: round, Message: message, At: time.Now()})
}

func (r *run) warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

// Run processes one request. observer may be nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, observer Observer) (Result, error) {
	total := util.StartTimer()
	if req.Stage == "" {
		req.Stage = speechlaw.StageUnknown
	}
	r := &run{
		id:       uuid.NewString(),
		req:      req,
		observer: observer,
		timings:  util.Timings{},
	}
	r.log = logrus.WithFields(logrus.Fields{"run_id": r.id, "stage": req.Stage})
	r.allow = factguard.BuildAllowlist(req.References)
	r.log.WithFields(logrus.Fields{
		"keyword":    req.primaryKeyword(),
		"target":     req.TargetChars,
		"references": len(req.References),
		"allowlist":  r.allow.Size(),
		"ai_enabled": o.AIEnabled(),
	}).Info("draft run started")

	draft, info, err := o.draftAndCheck(ctx, r)
	if err != nil {
		r.log.WithError(err).Error("draft run failed")
		return Result{RunID: r.id}, err
	}

	state := loopState{current: draft, best: BestCandidate{Draft: draft, Score: -1}}
	r.timings.Track("refine", func() {
		state = o.refine(ctx, r, state)
	})
	candidate := state.downstream()

	r.emit(StageFinalizing, 0, state.round, "editor pass")
	var final editor.Draft
	var summary Summary
	r.timings.Track("finalize", func() {
		final, summary = o.finalize(r, candidate)
	})

	result := Result{
		RunID:            r.id,
		Draft:            final,
		Score:            max(state.best.Score, 0),
		Reviewed:         state.criticCalls > 0,
		Fallback:         info.fallback,
		DraftAttempts:    info.attempts,
		CriticCalls:      state.criticCalls,
		CorrectionRounds: state.round,
		Summary:          summary,
		ProcessingTimeMs: total.ElapsedMs(),
	}
	result.Recommendation = scoring.Recommend(scoring.Outcome{
		Score:     result.Score,
		Reviewed:  result.Reviewed,
		SpeechLaw: summary.SpeechLaw,
		FactGuard: summary.FactGuard,
		Overall:   summary.Overall,
	})
	r.emit(StageCompleted, 0, state.round, "done")
	r.log.WithFields(logrus.Fields{
		"score":        result.Score,
		"critic_calls": result.CriticCalls,
		"rounds":       result.CorrectionRounds,
		"fallback":     result.Fallback,
		"passed":       summary.Overall.Passed,
		"verdict":      result.Recommendation,
		"elapsed_ms":   result.ProcessingTimeMs,
	}).Info("draft run completed")
	return result, nil
}

// Validate runs every detector on a caller-supplied draft. With local set the
// semantic classifier is skipped.
func (o *Orchestrator) Validate(ctx context.Context, draft editor.Draft, req Request, local bool) Summary {
	if req.Stage == "" {
		req.Stage = speechlaw.StageUnknown
	}
	var speech speechlaw.Report
	if local {
		speech = o.deps.SpeechLaw.CheckLocal(draft.Title, draft.Body, req.Stage)
	} else {
		speech = o.deps.SpeechLaw.Check(ctx, draft.Title, draft.Body, req.Stage)
	}
	return o.summarize(draft, req, factguard.BuildAllowlist(req.References), speech)
}

// Edit runs only the editor pass and reports on the result.
func (o *Orchestrator) Edit(draft editor.Draft, req Request) (editor.Draft, Summary) {
	if req.Stage == "" {
		req.Stage = speechlaw.StageUnknown
	}
	r := &run{req: req, log: logrus.WithField("op", "edit"), timings: util.Timings{}, allow: factguard.BuildAllowlist(req.References)}
	var final editor.Draft
	var summary Summary
	r.timings.Track("finalize", func() {
		final, summary = o.finalize(r, draft)
	})
	return final, summary
}

func (o *Orchestrator) finalize(r *run, candidate editor.Draft) (editor.Draft, Summary) {
	final, changes := o.deps.Editor.Apply(candidate, editor.Input{
		TargetChars:    r.req.TargetChars,
		PrimaryKeyword: r.req.primaryKeyword(),
		Keywords:       r.req.Keywords,
		Category:       r.req.Category,
		Headings:       r.req.Headings,
	})
	speech := o.deps.SpeechLaw.CheckLocal(final.Title, final.Body, r.req.Stage)
	summary := o.summarize(final, r.req, r.allow, speech)
	summary.Changes = changes
	summary.Warnings = append(summary.Warnings, r.warnings...)
	summary.Timings = r.timings
	return final, summary
}

func (o *Orchestrator) summarize(draft editor.Draft, req Request, allow factguard.Allowlist, speech speechlaw.Report) Summary {
	s := Summary{
		Title:      o.deps.Titles.Validate(draft.Title, draft.Body, req.primaryKeyword()),
		Keywords:   o.deps.Keywords.Validate(draft.Body, req.Keywords),
		Repetition: o.deps.Repetition.Check(draft.Body),
		SpeechLaw:  speech.Result(),
		FactGuard:  o.deps.FactGuard.FindUnsupported(draft.Title+"\n"+draft.Body, allow).Result(),
		Warnings:   []string{},
		Timings:    map[string]int64{},
	}
	s.Overall = scoring.Merge(
		scoring.Check{Name: "title", Result: s.Title},
		scoring.Check{Name: "keywords", Result: s.Keywords},
		scoring.Check{Name: "repetition", Result: s.Repetition},
		scoring.Check{Name: "speech_law", Result: s.SpeechLaw},
		scoring.Check{Name: "fact_guard", Result: s.FactGuard},
	)
	return s
}
