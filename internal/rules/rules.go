// Package rules evaluates ordered tables of regular-expression rules. Callers
// describe behaviour as data (pattern, category, severity, replacement) and
// share one engine instead of hand-written conditional chains.
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tier groups rules that are evaluated together.
type Tier string

const (
	TierWhitelist  Tier = "whitelist"
	TierBlacklist  Tier = "blacklist"
	TierFuture     Tier = "future"
	TierBenefit    Tier = "benefit"
	TierClaim      Tier = "claim"
	TierNeutralize Tier = "neutralize"
	TierStyle      Tier = "style"
)

// Rule is one row of a rule table. Pattern must match and Exclude, when set,
// must not. Replacement is a regexp template used by Apply.
type Rule struct {
	Name        string
	Tier        Tier
	Pattern     *regexp.Regexp
	Exclude     *regexp.Regexp
	Category    string
	Severity    string
	Replacement string
	Reason      string
}

// Matches reports whether the rule fires on text.
func (r Rule) Matches(text string) bool {
	if r.Pattern == nil || !r.Pattern.MatchString(text) {
		return false
	}
	if r.Exclude != nil && r.Exclude.MatchString(text) {
		return false
	}
	return true
}

// Spec is the serialisable form of a rule, used by rule-pack files.
type Spec struct {
	Name        string `yaml:"name" json:"name"`
	Tier        string `yaml:"tier" json:"tier"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Exclude     string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Severity    string `yaml:"severity,omitempty" json:"severity,omitempty"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Reason      string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Compile turns a Spec into a Rule.
func (s Spec) Compile() (Rule, error) {
	if strings.TrimSpace(s.Pattern) == "" {
		return Rule{}, fmt.Errorf("rule %q: empty pattern", s.Name)
	}
	pattern, err := regexp.Compile(s.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", s.Name, err)
	}
	rule := Rule{
		Name:        s.Name,
		Tier:        Tier(strings.ToLower(strings.TrimSpace(s.Tier))),
		Pattern:     pattern,
		Category:    s.Category,
		Severity:    strings.ToUpper(strings.TrimSpace(s.Severity)),
		Replacement: s.Replacement,
		Reason:      s.Reason,
	}
	if strings.TrimSpace(s.Exclude) != "" {
		exclude, err := regexp.Compile(s.Exclude)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %q exclude: %w", s.Name, err)
		}
		rule.Exclude = exclude
	}
	return rule, nil
}

// MustRule compiles a rule from literals and panics on a bad pattern. It is
// meant for package-level default tables.
func MustRule(tier Tier, name, pattern, exclude, category, severity, replacement string) Rule {
	rule, err := Spec{
		Name:        name,
		Tier:        string(tier),
		Pattern:     pattern,
		Exclude:     exclude,
		Category:    category,
		Severity:    severity,
		Replacement: replacement,
	}.Compile()
	if err != nil {
		panic(err)
	}
	return rule
}

// Table is an ordered rule list.
type Table []Rule

// Tier returns the rules belonging to tier, preserving order.
func (t Table) Tier(tier Tier) Table {
	var out Table
	for _, r := range t {
		if r.Tier == tier {
			out = append(out, r)
		}
	}
	return out
}

// Match returns the first rule that fires.
func (t Table) Match(text string) (Rule, bool) {
	for _, r := range t {
		if r.Matches(text) {
			return r, true
		}
	}
	return Rule{}, false
}

// MatchAll returns every rule that fires, in table order.
func (t Table) MatchAll(text string) []Rule {
	var out []Rule
	for _, r := range t {
		if r.Matches(text) {
			out = append(out, r)
		}
	}
	return out
}

// Apply runs every replacement rule over text and returns the rewritten text
// with the names of the rules that changed it. A replacement landing at the
// start of the text inherits an upper-case first letter.
func (t Table) Apply(text string) (string, []string) {
	var fired []string
	for _, r := range t {
		if r.Pattern == nil || !r.Matches(text) {
			continue
		}
		next := r.Pattern.ReplaceAllString(text, r.Replacement)
		if next == text {
			continue
		}
		if startsUpper(text) && !startsUpper(next) {
			next = upperFirst(next)
		}
		text = next
		fired = append(fired, r.Name)
	}
	return text, fired
}

// Merge returns t with overrides appended; an override whose name matches an
// existing rule replaces it in place.
func (t Table) Merge(overrides Table) Table {
	out := append(Table(nil), t...)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.Name] = i
	}
	for _, r := range overrides {
		if i, ok := index[r.Name]; ok && r.Name != "" {
			out[i] = r
			continue
		}
		index[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
