package editor

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/textnorm"
)

const maxKeywordPasses = 8

// rebalanceKeywords brings every keyword into its expected range. Missing
// occurrences are added as templated sentences spread over the middle
// sections; surplus occurrences of user keywords are replaced, last first,
// with a neutral paraphrase.
func (e *Editor) rebalanceKeywords(doc *document, keywords []scoring.Keyword, lang string) []Change {
	var changes []Change
	templateIndex := 0
	for _, kw := range keywords {
		text := strings.TrimSpace(kw.Text)
		if text == "" {
			continue
		}
		for pass := 0; pass < maxKeywordPasses; pass++ {
			body := doc.render()
			count := scoring.CountKeyword(body, text)
			want := e.cfg.Keywords.ExpectedRange(textnorm.PlainLen(body), kw.Role)
			if count < want.Min {
				templates := keywordTemplates[lang]
				sentence := fillTemplate(templates[templateIndex%len(templates)], text)
				templateIndex++
				e.appendToMiddle(doc, sentence, templateIndex)
				changes = append(changes, Change{Step: "keywords", Detail: fmt.Sprintf("inserted %q (%d < %d)", text, count, want.Min)})
				continue
			}
			if want.Bounded() && count > want.Max {
				replaced := replaceLast(doc, text, count-want.Max, keywordParaphrase[lang])
				if replaced == 0 {
					break
				}
				changes = append(changes, Change{Step: "keywords", Detail: fmt.Sprintf("paraphrased %d of %q (%d > %d)", replaced, text, count, want.Max)})
				continue
			}
			break
		}
	}
	return changes
}

func fillTemplate(template, kw string) string {
	out := strings.ReplaceAll(template, "{kw}", kw)
	r, size := utf8.DecodeRuneInString(out)
	if unicode.IsLower(r) {
		out = string(unicode.ToUpper(r)) + out[size:]
	}
	return out
}

// appendToMiddle adds the sentence to the end of the first paragraph of a
// middle section chosen round-robin, or the lead when there are no sections.
func (e *Editor) appendToMiddle(doc *document, sentence string, turn int) {
	var candidates []*[]string
	for i := range doc.sections {
		if len(doc.sections[i].paras) > 0 {
			candidates = append(candidates, &doc.sections[i].paras)
		}
	}
	if len(candidates) == 0 {
		if len(doc.lead) == 0 {
			doc.lead = append(doc.lead, sentence)
			return
		}
		doc.lead[0] = doc.lead[0] + " " + sentence
		return
	}
	list := candidates[(turn-1)%len(candidates)]
	(*list)[0] = (*list)[0] + " " + sentence
}

// replaceLast swaps the last n keyword occurrences in paragraphs for the
// paraphrase. Headings are left alone.
func replaceLast(doc *document, kw string, n int, paraphrase string) int {
	re := scoring.KeywordPattern(kw)
	if re == nil || n <= 0 {
		return 0
	}
	lists := doc.lists()
	replaced := 0
	for li := len(lists) - 1; li >= 0 && replaced < n; li-- {
		list := lists[li]
		for pi := len(*list) - 1; pi >= 0 && replaced < n; pi-- {
			p := (*list)[pi]
			locs := re.FindAllStringIndex(p, -1)
			for k := len(locs) - 1; k >= 0 && replaced < n; k-- {
				start, end := locs[k][0], locs[k][1]
				p = p[:start] + matchCase(paraphrase, p[:start]) + p[end:]
				replaced++
			}
			(*list)[pi] = p
		}
	}
	return replaced
}

// matchCase capitalises the paraphrase when it starts a sentence.
func matchCase(paraphrase, before string) string {
	trimmed := strings.TrimRightFunc(before, unicode.IsSpace)
	if trimmed != "" {
		last, _ := utf8.DecodeLastRuneInString(trimmed)
		if last != '.' && last != '!' && last != '?' {
			return paraphrase
		}
	}
	r, size := utf8.DecodeRuneInString(paraphrase)
	return string(unicode.ToUpper(r)) + paraphrase[size:]
}
