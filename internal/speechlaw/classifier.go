// Package speechlaw flags campaign-law problems in a draft: explicit
// commitments made before candidacy, benefit offers, and unverifiable claims.
//
// Sentences are triaged by a deterministic rule table first. Only sentences the
// table cannot settle are sent to a SemanticClassifier, and when that call
// fails every one of them counts as a violation.
package speechlaw

import (
	"context"

	"github.com/sirupsen/logrus"

	"campaign-compliance/internal/rules"
	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/textnorm"
)

// Verdict is the outcome of the deterministic tiers.
type Verdict string

const (
	Allowed   Verdict = "allowed"
	Forbidden Verdict = "forbidden"
	Ambiguous Verdict = "ambiguous"
	Neutral   Verdict = "neutral"
)

// Classification explains a Verdict.
type Classification struct {
	Verdict  Verdict `json:"verdict"`
	Rule     string  `json:"rule,omitempty"`
	Category string  `json:"category,omitempty"`
	Severity string  `json:"severity,omitempty"`
}

// Violation is one offending sentence.
type Violation struct {
	Sentence string `json:"sentence"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
	Severity string `json:"severity"`
}

// Report is the speech-law verdict for one draft.
type Report struct {
	Passed        bool        `json:"passed"`
	Skipped       bool        `json:"skipped"`
	Stage         Stage       `json:"stage"`
	Violations    []Violation `json:"violations"`
	Ambiguous     []string    `json:"ambiguous,omitempty"`
	SemanticCalls int         `json:"semantic_calls"`
}

// HardViolations returns only the HARD findings.
func (r Report) HardViolations() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityHard {
			out = append(out, v)
		}
	}
	return out
}

// Result adapts the report to the shared detector result. SOFT findings are
// recorded without failing it.
func (r Report) Result() scoring.Result {
	result := scoring.Pass()
	for _, v := range r.Violations {
		if v.Severity == SeverityHard {
			result.Fail(v.Category, "%q (%s)", v.Sentence, v.Reason)
			continue
		}
		result.Warn(v.Category, "%q (%s)", v.Sentence, v.Reason)
	}
	result.Details["stage"] = r.Stage
	result.Details["skipped"] = r.Skipped
	result.Details["violations"] = r.Violations
	if len(r.Ambiguous) > 0 {
		result.Details["ambiguous"] = r.Ambiguous
	}
	return result
}

// Classifier applies the rule tiers and, for ambiguous sentences, the
// semantic classifier.
type Classifier struct {
	blacklist rules.Table
	whitelist rules.Table
	future    rules.Table
	static    rules.Table
	semantic  SemanticClassifier
}

// NewClassifier splits table into its tiers. semantic may be nil, in which case
// ambiguous sentences are reported but not judged.
func NewClassifier(table rules.Table, semantic SemanticClassifier) *Classifier {
	if len(table) == 0 {
		table = DefaultRules()
	}
	static := append(table.Tier(rules.TierBenefit), table.Tier(rules.TierClaim)...)
	return &Classifier{
		blacklist: table.Tier(rules.TierBlacklist),
		whitelist: table.Tier(rules.TierWhitelist),
		future:    table.Tier(rules.TierFuture),
		static:    static,
		semantic:  semantic,
	}
}

// Classify runs the deterministic tiers on one sentence. The blacklist is
// consulted before the whitelist: endings such as 약속합니다 or a question mark
// also satisfy a whitelist rule, and the commitment must decide. A future
// marker that nothing else explains is ambiguous.
func (c *Classifier) Classify(sentence string) Classification {
	if rule, ok := c.blacklist.Match(sentence); ok {
		return Classification{Verdict: Forbidden, Rule: rule.Name, Category: rule.Category, Severity: severityOr(rule.Severity, SeverityHard)}
	}
	if rule, ok := c.whitelist.Match(sentence); ok {
		return Classification{Verdict: Allowed, Rule: rule.Name}
	}
	if rule, ok := c.future.Match(sentence); ok {
		return Classification{Verdict: Ambiguous, Rule: rule.Name, Category: rule.Category, Severity: severityOr(rule.Severity, SeverityHard)}
	}
	return Classification{Verdict: Neutral}
}

// Check evaluates a draft for the given stage. Outside restrictive stages the
// check is skipped and passes.
func (c *Classifier) Check(ctx context.Context, title, body string, stage Stage) Report {
	report, ambiguous := c.local(title, body, stage)
	if report.Skipped || len(ambiguous) == 0 || c.semantic == nil {
		return report
	}

	report.SemanticCalls++
	judgements, err := c.semantic.Judge(ctx, ambiguous)
	if err != nil {
		logrus.WithError(err).WithField("sentences", len(ambiguous)).Warn("semantic classifier unavailable; treating ambiguous sentences as violations")
		for _, s := range ambiguous {
			report.Violations = append(report.Violations, Violation{
				Sentence: s,
				Category: CategoryFutureIntent,
				Reason:   "could not be verified by the semantic classifier",
				Severity: SeverityHard,
			})
		}
		report.Ambiguous = nil
		report.Passed = false
		return report
	}

	for _, j := range judgements {
		if !j.Violation {
			continue
		}
		category := j.Category
		if category == "" {
			category = CategoryFutureIntent
		}
		report.Violations = append(report.Violations, Violation{
			Sentence: j.Sentence,
			Category: category,
			Reason:   j.Reason,
			Severity: SeverityHard,
		})
		report.Passed = false
	}
	report.Ambiguous = nil
	return report
}

// CheckLocal runs only the deterministic tiers and static detectors. Ambiguous
// sentences are listed, not judged.
func (c *Classifier) CheckLocal(title, body string, stage Stage) Report {
	report, _ := c.local(title, body, stage)
	return report
}

func (c *Classifier) local(title, body string, stage Stage) (Report, []string) {
	report := Report{Passed: true, Stage: stage}
	if !stage.Restrictive() {
		report.Skipped = true
		return report, nil
	}

	var sentences []string
	if t := textnorm.Collapse(title); t != "" {
		sentences = append(sentences, t)
	}
	sentences = append(sentences, textnorm.Sentences(body, 2)...)

	var ambiguous []string
	for _, s := range sentences {
		for _, rule := range c.static.MatchAll(s) {
			report.Violations = append(report.Violations, Violation{
				Sentence: s,
				Category: rule.Category,
				Reason:   reasonFor(rule),
				Severity: severityOr(rule.Severity, SeveritySoft),
			})
		}
		switch cls := c.Classify(s); cls.Verdict {
		case Forbidden:
			report.Violations = append(report.Violations, Violation{
				Sentence: s,
				Category: cls.Category,
				Reason:   "explicit commitment (" + cls.Rule + ")",
				Severity: cls.Severity,
			})
		case Ambiguous:
			ambiguous = append(ambiguous, s)
		}
	}
	report.Ambiguous = ambiguous
	for _, v := range report.Violations {
		if v.Severity == SeverityHard {
			report.Passed = false
			break
		}
	}
	return report, ambiguous
}

func reasonFor(rule rules.Rule) string {
	if rule.Reason != "" {
		return rule.Reason
	}
	switch rule.Category {
	case CategoryBenefitOffer:
		return "offer of benefits to voters (" + rule.Name + ")"
	case CategoryUnverified:
		return "unverifiable superlative claim (" + rule.Name + ")"
	}
	return rule.Name
}

func severityOr(severity, fallback string) string {
	if severity == "" {
		return fallback
	}
	return severity
}
