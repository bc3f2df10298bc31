package editor

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"campaign-compliance/internal/textnorm"
)

// fitLength moves the body into target±tolerance. A short body gains a
// closing summary built from the first sentences of the non-greeting
// paragraphs; a long one loses closing sentences, then trailing paragraphs of
// the last section, then the intro tail. The first paragraph of every section
// carries its facts and is never dropped.
func (e *Editor) fitLength(doc *document, target int, lang string) []Change {
	if target <= 0 {
		return nil
	}
	lo := int(float64(target) * (1 - e.cfg.LengthTolerance))
	hi := int(float64(target) * (1 + e.cfg.LengthTolerance))
	length := doc.plainLen()

	switch {
	case length < lo:
		return e.addSummary(doc, hi-length, lang)
	case length > hi:
		return e.trim(doc, hi)
	}
	return nil
}

// addSummary appends the summary as a new closing paragraph, or folds it into
// the last paragraph when the body already has MaxParagraphs.
func (e *Editor) addSummary(doc *document, budget int, lang string) []Change {
	closing := doc.closing()
	fold := doc.paragraphCount() >= e.cfg.MaxParagraphs
	room := e.cfg.MaxParagraphRunes
	if fold && len(*closing) > 0 {
		room -= textnorm.RuneLen((*closing)[len(*closing)-1]) + 1
	}
	budget = min(budget, room)
	if budget <= 0 {
		return nil
	}

	var firsts []string
	for _, p := range doc.paragraphs() {
		if isGreeting(p) {
			continue
		}
		sentences := textnorm.SplitSentences(p)
		if len(sentences) == 0 {
			continue
		}
		firsts = append(firsts, textnorm.TrimTerminal(sentences[0]))
	}
	if len(firsts) == 0 {
		return nil
	}

	// Pairs of first sentences keep each summary line distinct from the
	// paragraph it came from.
	var lines []string
	used := 0
	for i := 0; i < len(firsts); i += 2 {
		line := lowerFirst(firsts[i], lang)
		if i+1 < len(firsts) {
			line += summaryJoiner[lang] + lowerFirst(firsts[i+1], lang)
		}
		if len(lines) == 0 {
			line = summaryPrefix[lang] + line
		}
		line += "."
		cost := textnorm.RuneLen(line) + 1
		if used+cost > budget {
			break
		}
		lines = append(lines, line)
		used += cost
	}
	if len(lines) == 0 {
		return nil
	}
	summary := strings.Join(lines, " ")
	if fold && len(*closing) > 0 {
		last := len(*closing) - 1
		(*closing)[last] = (*closing)[last] + " " + summary
		return []Change{{Step: "length", Detail: fmt.Sprintf("folded a closing summary of %d characters into the last paragraph", used)}}
	}
	*closing = append(*closing, summary)
	return []Change{{Step: "length", Detail: fmt.Sprintf("added a closing summary of %d characters", used)}}
}

func (e *Editor) trim(doc *document, hi int) []Change {
	var changes []Change
	closing := doc.closing()
	for doc.plainLen() > hi && len(*closing) > 0 {
		last := len(*closing) - 1
		sentences := textnorm.SplitSentences((*closing)[last])
		switch {
		case len(sentences) > 1:
			(*closing)[last] = strings.Join(sentences[:len(sentences)-1], " ")
			changes = append(changes, Change{Step: "length", Detail: "trimmed a closing sentence"})
			continue
		case last > 0 && doc.paragraphCount() > e.cfg.MinParagraphs:
			*closing = (*closing)[:last]
			changes = append(changes, Change{Step: "length", Detail: "dropped a trailing paragraph"})
			continue
		}
		break
	}

	for doc.plainLen() > hi && len(doc.lead) > 1 && doc.paragraphCount() > e.cfg.MinParagraphs {
		doc.lead = doc.lead[:len(doc.lead)-1]
		changes = append(changes, Change{Step: "length", Detail: "dropped a trailing intro paragraph"})
	}

	for doc.plainLen() > hi && len(doc.lead) > 0 {
		last := len(doc.lead) - 1
		sentences := textnorm.SplitSentences(doc.lead[last])
		if len(sentences) <= 1 {
			break
		}
		doc.lead[last] = strings.Join(sentences[:len(sentences)-1], " ")
		changes = append(changes, Change{Step: "length", Detail: "trimmed an intro sentence"})
	}
	return changes
}

func lowerFirst(s, lang string) string {
	if lang != "en" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return s
	}
	// Keep acronyms and the pronoun I.
	if next, _ := utf8.DecodeRuneInString(s[size:]); unicode.IsUpper(next) {
		return s
	}
	if r == 'I' && (len(s) == size || s[size] == ' ') {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
