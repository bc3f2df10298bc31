package textnorm

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	blockCloser     = regexp.MustCompile(`(?i)</(p|h[1-6]|li|div|blockquote)>|<br\s*/?>`)
	tagStripper     = regexp.MustCompile(`<[^>]*>`)
	inlineSpace     = regexp.MustCompile(`[ \t\f\r\v\x{00A0}]+`)
	anyWhitespace   = regexp.MustCompile(`\s+`)
	blankLineRunner = regexp.MustCompile(`\n{2,}`)
)

// StripTags removes markup and returns plain text. Block-level closers become
// line breaks so headings never merge into the following sentence.
func StripTags(markup string) string {
	text := blockCloser.ReplaceAllString(markup, "\n")
	text = tagStripper.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return blankLineRunner.ReplaceAllString(strings.Join(out, "\n"), "\n")
}

// Collapse folds every whitespace run into a single space.
func Collapse(text string) string {
	return strings.TrimSpace(anyWhitespace.ReplaceAllString(text, " "))
}

// Compact lower-cases the text and drops all whitespace. Two sentences with the
// same compact form are treated as the same sentence.
func Compact(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// RuneLen counts characters rather than bytes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// PlainLen is the character count of markup once tags are removed and
// whitespace collapsed.
func PlainLen(markup string) int {
	return RuneLen(Collapse(StripTags(markup)))
}

// HasHangul reports whether the text contains Korean syllables.
func HasHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '…':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '」', '』':
		return true
	}
	return false
}

// SplitSentences segments plain text on sentence terminators and line breaks.
// A terminator only ends a sentence when followed by whitespace or the end of
// the line, so decimals such as 3.5 stay intact.
func SplitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(strings.TrimSpace(line))
		start := 0
		for i := 0; i < len(runes); i++ {
			if !isTerminator(runes[i]) {
				continue
			}
			end := i + 1
			for end < len(runes) && (isTerminator(runes[end]) || isCloser(runes[end])) {
				end++
			}
			if end < len(runes) && !unicode.IsSpace(runes[end]) {
				continue
			}
			if s := strings.TrimSpace(string(runes[start:end])); s != "" {
				out = append(out, s)
			}
			start = end
			i = end - 1
		}
		if start < len(runes) {
			if s := strings.TrimSpace(string(runes[start:])); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Sentences strips markup and splits into sentences, dropping fragments shorter
// than minRunes.
func Sentences(markup string, minRunes int) []string {
	all := SplitSentences(StripTags(markup))
	if minRunes <= 0 {
		return all
	}
	out := all[:0]
	for _, s := range all {
		if RuneLen(s) >= minRunes {
			out = append(out, s)
		}
	}
	return out
}

// Words lower-cases the text and splits it on anything that is not a letter or
// digit.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TrimTerminal removes trailing terminators, closers and spaces.
func TrimTerminal(sentence string) string {
	return strings.TrimRightFunc(sentence, func(r rune) bool {
		return isTerminator(r) || isCloser(r) || unicode.IsSpace(r)
	})
}

// TruncateRunes cuts s to at most n characters.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
