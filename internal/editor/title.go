package editor

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/textnorm"
)

var defaultTitles = map[string]string{
	"ko": "우리 동네 현안 점검",
	"en": "Notes from our community",
}

// fixTitle puts the primary keyword at the front and forces the length into
// [MinRunes, MaxRunes].
func (e *Editor) fixTitle(title, keyword, lang string) (string, []Change) {
	original := textnorm.Collapse(title)
	title = original
	keyword = textnorm.Collapse(keyword)
	minRunes, maxRunes := e.cfg.Title.MinRunes, e.cfg.Title.MaxRunes
	var changes []Change

	if keyword != "" {
		pos := scoring.KeywordPosition(title, keyword)
		if pos < 0 || pos >= e.cfg.Title.KeywordWindow {
			rest := title
			if pos >= 0 {
				rest = textnorm.Collapse(scoring.KeywordPattern(keyword).ReplaceAllString(title, " "))
				rest = strings.Trim(rest, " :,-")
			}
			title = joinKeyword(keyword, rest, lang)
			changes = append(changes, Change{Step: "title", Detail: "moved the keyword to the front"})
		}
	}
	if title == "" {
		title = defaultTitles[lang]
	}

	for _, suffix := range titleSuffixes[lang] {
		if textnorm.RuneLen(title) >= minRunes {
			break
		}
		title += suffix
		changes = append(changes, Change{Step: "title", Detail: fmt.Sprintf("extended with %q", strings.TrimSpace(suffix))})
	}

	if textnorm.RuneLen(title) > maxRunes {
		title = truncateTitle(title, minRunes, maxRunes)
		changes = append(changes, Change{Step: "title", Detail: "truncated to the maximum length"})
	}

	if title != original && len(changes) == 0 {
		changes = append(changes, Change{Step: "title", Detail: "normalised whitespace"})
	}
	return title, changes
}

func joinKeyword(keyword, rest, lang string) string {
	lead := keyword
	if lang == "en" {
		r, size := utf8.DecodeRuneInString(lead)
		lead = string(unicode.ToUpper(r)) + lead[size:]
	}
	if rest == "" {
		return lead
	}
	if lang == "en" {
		return lead + ": " + rest
	}
	return lead + " " + rest
}

// truncateTitle cuts at the last word boundary that keeps the title within
// bounds, or hard-cuts at maxRunes when no boundary qualifies.
func truncateTitle(title string, minRunes, maxRunes int) string {
	runes := []rune(title)
	if len(runes) <= maxRunes {
		return title
	}
	cut := string(runes[:maxRunes])
	if !unicode.IsSpace(runes[maxRunes]) {
		if i := strings.LastIndexFunc(cut, unicode.IsSpace); i >= 0 {
			candidate := strings.TrimRight(cut[:i], " :,-")
			if textnorm.RuneLen(candidate) >= minRunes {
				return candidate
			}
		}
	}
	trimmed := strings.TrimRight(cut, " :,-")
	if textnorm.RuneLen(trimmed) >= minRunes {
		return trimmed
	}
	return cut
}
