package scoring

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"campaign-compliance/internal/textnorm"
)

// KeywordRole separates caller-chosen keywords from ones extracted by the
// system. Only user keywords carry an upper bound.
type KeywordRole string

const (
	RoleUser      KeywordRole = "user"
	RoleExtracted KeywordRole = "extracted"
)

// Keyword is one search term the body must carry.
type Keyword struct {
	Text string      `json:"text"`
	Role KeywordRole `json:"role"`
}

// Range is an expected occurrence band. Max 0 means unbounded.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max,omitempty"`
}

// Bounded reports whether the range has an upper limit.
func (r Range) Bounded() bool {
	return r.Max > 0
}

// Contains reports whether count lies within the range.
func (r Range) Contains(count int) bool {
	if count < r.Min {
		return false
	}
	return !r.Bounded() || count <= r.Max
}

// KeywordConfig tunes the occurrence bands.
type KeywordConfig struct {
	CharsPerOccurrence int `json:"chars_per_occurrence"`
	UserMaxSlack       int `json:"user_max_slack"`
}

// DefaultKeywordConfig is one occurrence per 400 characters with two spare
// for user keywords.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{CharsPerOccurrence: 400, UserMaxSlack: 2}
}

// ExpectedRange returns the occurrence band for a body of bodyRunes
// characters: min = max(1, floor(L/400)); user keywords get min+slack as max.
func (c KeywordConfig) ExpectedRange(bodyRunes int, role KeywordRole) Range {
	per := c.CharsPerOccurrence
	if per <= 0 {
		per = DefaultKeywordConfig().CharsPerOccurrence
	}
	r := Range{Min: max(1, bodyRunes/per)}
	if role == RoleUser {
		slack := c.UserMaxSlack
		if slack < 0 {
			slack = 0
		}
		r.Max = r.Min + slack
	}
	return r
}

// ExpectedRange applies the default configuration.
func ExpectedRange(bodyRunes int, role KeywordRole) Range {
	return DefaultKeywordConfig().ExpectedRange(bodyRunes, role)
}

var keywordPatterns sync.Map

// KeywordPattern matches kw case-insensitively with flexible whitespace
// between its words. English keywords match plural and possessive forms;
// Korean keywords match with trailing particles attached.
func KeywordPattern(kw string) *regexp.Regexp {
	words := strings.Fields(kw)
	if len(words) == 0 {
		return nil
	}
	key := strings.ToLower(strings.Join(words, " "))
	if cached, ok := keywordPatterns.Load(key); ok {
		return cached.(*regexp.Regexp)
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	var b strings.Builder
	b.WriteString("(?i)")
	first, _ := utf8.DecodeRuneInString(words[0])
	if isASCIIWordRune(first) {
		b.WriteString(`\b`)
	}
	b.WriteString(strings.Join(quoted, `\s*`))
	lastWord := words[len(words)-1]
	last, _ := utf8.DecodeLastRuneInString(lastWord)
	if isASCIIWordRune(last) {
		b.WriteString(`(?:'s|es|s)?\b`)
	}
	re := regexp.MustCompile(b.String())
	keywordPatterns.Store(key, re)
	return re
}

func isASCIIWordRune(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// CountKeyword counts occurrences of kw in the plain text of markup.
func CountKeyword(markup, kw string) int {
	re := KeywordPattern(kw)
	if re == nil {
		return 0
	}
	return len(re.FindAllStringIndex(textnorm.Collapse(textnorm.StripTags(markup)), -1))
}

// KeywordReport is the per-keyword outcome.
type KeywordReport struct {
	Keyword string      `json:"keyword"`
	Role    KeywordRole `json:"role"`
	Count   int         `json:"count"`
	Min     int         `json:"min"`
	Max     int         `json:"max,omitempty"`
	Valid   bool        `json:"valid"`
	Density float64     `json:"density"`
}

// KeywordValidator checks keyword coverage against ExpectedRange.
type KeywordValidator struct {
	cfg KeywordConfig
}

// NewKeywordValidator fills zero config fields with defaults.
func NewKeywordValidator(cfg KeywordConfig) *KeywordValidator {
	if cfg.CharsPerOccurrence <= 0 {
		cfg.CharsPerOccurrence = DefaultKeywordConfig().CharsPerOccurrence
	}
	return &KeywordValidator{cfg: cfg}
}

// Config exposes the effective configuration.
func (v *KeywordValidator) Config() KeywordConfig {
	return v.cfg
}

// Reports computes the per-keyword outcome without folding it into a Result.
func (v *KeywordValidator) Reports(body string, keywords []Keyword) []KeywordReport {
	bodyRunes := textnorm.PlainLen(body)
	out := make([]KeywordReport, 0, len(keywords))
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		text := strings.TrimSpace(kw.Text)
		key := strings.ToLower(text)
		if text == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		count := CountKeyword(body, text)
		r := v.cfg.ExpectedRange(bodyRunes, kw.Role)
		density := 0.0
		if bodyRunes > 0 {
			density = math.Round(float64(count*textnorm.RuneLen(text))/float64(bodyRunes)*10000) / 100
		}
		out = append(out, KeywordReport{
			Keyword: text,
			Role:    kw.Role,
			Count:   count,
			Min:     r.Min,
			Max:     r.Max,
			Valid:   r.Contains(count),
			Density: density,
		})
	}
	return out
}

// Validate fails when any keyword falls outside its band.
func (v *KeywordValidator) Validate(body string, keywords []Keyword) Result {
	result := Pass()
	reports := v.Reports(body, keywords)
	for _, r := range reports {
		switch {
		case r.Count < r.Min:
			result.Fail("keyword_under", "%q %d < %d", r.Keyword, r.Count, r.Min)
		case r.Max > 0 && r.Count > r.Max:
			result.Fail("keyword_over", "%q %d > %d", r.Keyword, r.Count, r.Max)
		}
	}
	result.Details["keywords"] = reports
	result.Details["body_chars"] = textnorm.PlainLen(body)
	return result
}
