package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"campaign-compliance/internal/editor"
	"campaign-compliance/internal/review"
)

// loopState is threaded through the critic/corrector loop by value.
type loopState struct {
	current     editor.Draft
	best        BestCandidate
	round       int
	criticCalls int
	// settled is set when the critic accepted current or left only SOFT and
	// ADVISORY findings on it.
	settled bool
}

func (s loopState) observe(report review.Report) loopState {
	s.criticCalls++
	if report.Score > s.best.Score {
		s.best = BestCandidate{Draft: s.current, Score: report.Score, Round: s.round}
	}
	return s
}

// downstream is the candidate handed to the editor pass.
func (s loopState) downstream() editor.Draft {
	if s.settled || s.best.Score < 0 {
		return s.current
	}
	return s.best.Draft
}

// refine runs at most CriticRounds corrections, each followed by a fresh
// review. Model failures end the loop without failing the run.
func (o *Orchestrator) refine(ctx context.Context, r *run, state loopState) loopState {
	if !o.deps.Critic.Enabled() {
		r.warn("critic unavailable; draft was not reviewed")
		return state
	}
	for {
		r.emit(StageEditorReview, 0, state.round, "critic review")
		draft := state.current
		unsupported := o.deps.FactGuard.FindUnsupported(draft.Title+"\n"+draft.Body, r.allow)
		report, err := o.deps.Critic.Review(ctx, review.Input{
			Draft:       draft,
			FactContext: o.factContext(r.req),
			Unsupported: unsupported.Raw(),
			Stage:       string(r.req.Stage),
			Guidelines:  r.req.Guidelines,
			Keywords:    r.req.keywordTexts(),
		})
		if err != nil {
			r.log.WithError(err).WithField("round", state.round).Warn("critic failed; keeping the best known candidate")
			r.warn(fmt.Sprintf("critic failed in round %d", state.round))
			return state
		}
		state = state.observe(report)
		r.log.WithFields(logrus.Fields{
			"round":      state.round,
			"score":      report.Score,
			"violations": len(report.Violations),
			"passed":     report.Passed,
		}).Info("critic review")

		if report.Passed {
			state.settled = true
			return state
		}
		if !report.HasHard() {
			state.settled = true
			for _, v := range report.Violations {
				r.warn(fmt.Sprintf("critic %s %s: %s", v.Severity, v.Category, v.Excerpt))
			}
			return state
		}
		if state.round >= o.cfg.CriticRounds {
			r.warn(fmt.Sprintf("critic still reports HARD findings after %d rounds; using the best candidate (score %d)", state.round, state.best.Score))
			return state
		}

		r.emit(StageCorrecting, 0, state.round+1, "correcting flagged spans")
		corrected, ok, err := o.deps.Corrector.Correct(ctx, draft, report.Violations)
		if err != nil {
			r.log.WithError(err).WithField("round", state.round).Warn("corrector failed; keeping the best known candidate")
			r.warn(fmt.Sprintf("corrector failed in round %d", state.round+1))
			return state
		}
		if !ok {
			r.log.WithField("round", state.round).Info("correction rejected")
			r.warn(fmt.Sprintf("correction rejected in round %d: length outside the accepted band", state.round+1))
			return state
		}
		state.current = corrected
		state.settled = false
		state.round++
	}
}
