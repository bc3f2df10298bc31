package scoring

import (
	"strings"
	"unicode"

	"campaign-compliance/internal/textnorm"
)

// NumberMatcher returns the numeric tokens of title that body does not carry.
type NumberMatcher func(title, body string) []string

// TitleConfig bounds title length and keyword placement.
type TitleConfig struct {
	MinRunes        int      `json:"min_runes"`
	MaxRunes        int      `json:"max_runes"`
	KeywordWindow   int      `json:"keyword_window"`
	GenericSuffixes []string `json:"generic_suffixes"`
}

// DefaultTitleConfig is 10 to 25 characters with the keyword starting in the
// first 10.
func DefaultTitleConfig() TitleConfig {
	return TitleConfig{
		MinRunes:      10,
		MaxRunes:      25,
		KeywordWindow: 10,
		GenericSuffixes: []string{
			"공약", "정책", "소식", "이야기", "관련", "계획",
			"news", "update", "updates", "plan", "plans", "policy", "story",
		},
	}
}

// TitleValidator checks a title against its body and primary keyword.
type TitleValidator struct {
	cfg     TitleConfig
	vague   *VagueTerms
	numbers NumberMatcher
}

// NewTitleValidator fills zero config fields with defaults. vague and numbers
// may be nil to skip those checks.
func NewTitleValidator(cfg TitleConfig, vague *VagueTerms, numbers NumberMatcher) *TitleValidator {
	def := DefaultTitleConfig()
	if cfg.MinRunes <= 0 {
		cfg.MinRunes = def.MinRunes
	}
	if cfg.MaxRunes < cfg.MinRunes {
		cfg.MaxRunes = max(def.MaxRunes, cfg.MinRunes)
	}
	if cfg.KeywordWindow <= 0 {
		cfg.KeywordWindow = def.KeywordWindow
	}
	if cfg.GenericSuffixes == nil {
		cfg.GenericSuffixes = def.GenericSuffixes
	}
	return &TitleValidator{cfg: cfg, vague: vague, numbers: numbers}
}

// Config exposes the effective configuration.
func (v *TitleValidator) Config() TitleConfig {
	return v.cfg
}

// Validate returns every title problem found.
func (v *TitleValidator) Validate(title, body, primaryKeyword string) Result {
	result := Pass()
	title = textnorm.Collapse(title)
	n := textnorm.RuneLen(title)
	result.Details["length"] = n

	if n < v.cfg.MinRunes {
		result.Fail("title_too_short", "%d < %d", n, v.cfg.MinRunes)
	}
	if n > v.cfg.MaxRunes {
		result.Fail("title_too_long", "%d > %d", n, v.cfg.MaxRunes)
	}

	if kw := strings.TrimSpace(primaryKeyword); kw != "" {
		pos := KeywordPosition(title, kw)
		result.Details["keyword_position"] = pos
		switch {
		case pos < 0:
			result.Fail("title_keyword_missing", "%q", kw)
		case pos >= v.cfg.KeywordWindow:
			result.Fail("title_keyword_position", "%q starts at %d", kw, pos)
		}
		if pos >= 0 && v.keywordOnly(title, kw) {
			result.Fail("title_keyword_only", "%q", title)
		}
	}

	if hits := v.vague.Find(title); len(hits) > 0 {
		for _, hit := range hits {
			if hit.Severity >= 2 {
				result.Fail("title_vague_word", "%q", hit.Term)
			} else {
				result.Warn("title_vague_word", "%q", hit.Term)
			}
		}
		result.Details["vague"] = hits
	}

	if v.numbers != nil {
		if missing := v.numbers(title, body); len(missing) > 0 {
			result.Fail("title_number_mismatch", "%s", strings.Join(missing, ", "))
		}
	}
	return result
}

// KeywordPosition returns the rune offset of the first keyword match, or -1.
func KeywordPosition(text, kw string) int {
	re := KeywordPattern(kw)
	if re == nil {
		return -1
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	return textnorm.RuneLen(text[:loc[0]])
}

const particles = "은는이가을를의에도와과로"

// keywordOnly reports a title that is the keyword plus at most a generic
// suffix such as "news" or "공약".
func (v *TitleValidator) keywordOnly(title, kw string) bool {
	rest := KeywordPattern(kw).ReplaceAllString(title, " ")
	words := strings.FieldsFunc(strings.ToLower(rest), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if !v.isGeneric(w) {
			return false
		}
	}
	return true
}

func (v *TitleValidator) isGeneric(word string) bool {
	if r := []rune(word); len(r) == 1 && strings.ContainsRune(particles, r[0]) {
		return true
	}
	for _, suffix := range v.cfg.GenericSuffixes {
		if strings.EqualFold(word, suffix) {
			return true
		}
	}
	return false
}
