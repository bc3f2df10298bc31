package editor

import (
	"fmt"
	"strings"

	"campaign-compliance/internal/markup"
	"campaign-compliance/internal/textnorm"
)

type section struct {
	heading string
	paras   []string
}

// document is the body split into lead paragraphs and headed sections. The
// final paragraph of the document is the closing.
type document struct {
	lead     []string
	sections []section
}

func parseDocument(body string) (document, bool) {
	var doc document
	for _, b := range markup.Parse(body) {
		if b.Kind == markup.Heading {
			doc.sections = append(doc.sections, section{heading: b.Text})
			continue
		}
		if len(doc.sections) == 0 {
			doc.lead = append(doc.lead, b.Text)
			continue
		}
		last := &doc.sections[len(doc.sections)-1]
		last.paras = append(last.paras, b.Text)
	}
	return doc, doc.paragraphCount() > 0
}

func (d *document) render() string {
	var blocks []markup.Block
	for _, p := range d.lead {
		blocks = append(blocks, markup.Block{Kind: markup.Paragraph, Text: p})
	}
	for _, s := range d.sections {
		blocks = append(blocks, markup.Block{Kind: markup.Heading, Text: s.heading})
		for _, p := range s.paras {
			blocks = append(blocks, markup.Block{Kind: markup.Paragraph, Text: p})
		}
	}
	return markup.Render(blocks)
}

// lists returns every paragraph list in document order.
func (d *document) lists() []*[]string {
	out := []*[]string{&d.lead}
	for i := range d.sections {
		out = append(out, &d.sections[i].paras)
	}
	return out
}

func (d *document) paragraphs() []string {
	var out []string
	for _, l := range d.lists() {
		out = append(out, *l...)
	}
	return out
}

func (d *document) paragraphCount() int {
	n := 0
	for _, l := range d.lists() {
		n += len(*l)
	}
	return n
}

func (d *document) plainLen() int {
	return textnorm.PlainLen(d.render())
}

// closing returns the list holding the final paragraph.
func (d *document) closing() *[]string {
	lists := d.lists()
	for i := len(lists) - 1; i >= 0; i-- {
		if len(*lists[i]) > 0 {
			return lists[i]
		}
	}
	return &d.lead
}

func (e *Editor) neutralizeText(text string) (string, []Change) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	sentences := textnorm.SplitSentences(text)
	var changes []Change
	for i, s := range sentences {
		rewritten, fired := e.neutralize.Apply(s)
		if len(fired) == 0 {
			continue
		}
		sentences[i] = rewritten
		changes = append(changes, Change{Step: "neutralize", Detail: fmt.Sprintf("%s: %q -> %q", strings.Join(fired, ","), s, rewritten)})
	}
	if len(changes) == 0 {
		return text, nil
	}
	return strings.Join(sentences, " "), changes
}

func (e *Editor) neutralizeDocument(doc *document) []Change {
	var changes []Change
	for _, l := range doc.lists() {
		for i, p := range *l {
			rewritten, fired := e.neutralizeText(p)
			(*l)[i] = rewritten
			changes = append(changes, fired...)
		}
	}
	for i, s := range doc.sections {
		rewritten, fired := e.neutralizeText(s.heading)
		doc.sections[i].heading = rewritten
		changes = append(changes, fired...)
	}
	return changes
}

// splitParagraph cuts p at the sentence boundary closest to its midpoint.
func splitParagraph(p string) (string, string, bool) {
	sentences := textnorm.SplitSentences(p)
	if len(sentences) < 2 {
		return p, "", false
	}
	total := textnorm.RuneLen(p)
	best, bestDiff := 1, total
	running := 0
	for k := 1; k < len(sentences); k++ {
		running += textnorm.RuneLen(sentences[k-1]) + 1
		diff := running - total/2
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = k, diff
		}
	}
	return strings.Join(sentences[:best], " "), strings.Join(sentences[best:], " "), true
}

func insertAt(list []string, i int, value string) []string {
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = value
	return list
}

// balanceParagraphs splits over-long paragraphs, then splits or merges until
// the paragraph count sits inside the band. Paragraphs never move across a
// heading.
func (e *Editor) balanceParagraphs(doc *document) []Change {
	var changes []Change
	for _, l := range doc.lists() {
		for i := 0; i < len(*l); i++ {
			p := (*l)[i]
			if textnorm.RuneLen(p) <= e.cfg.MaxParagraphRunes {
				continue
			}
			a, b, ok := splitParagraph(p)
			if !ok {
				continue
			}
			(*l)[i] = a
			*l = insertAt(*l, i+1, b)
			i--
			changes = append(changes, Change{Step: "paragraphs", Detail: "split over-long paragraph"})
		}
	}

	for doc.paragraphCount() < e.cfg.MinParagraphs {
		var target *[]string
		idx, longest := -1, 0
		for _, l := range doc.lists() {
			for i, p := range *l {
				n := textnorm.RuneLen(p)
				if n > longest && len(textnorm.SplitSentences(p)) >= 2 {
					target, idx, longest = l, i, n
				}
			}
		}
		if target == nil {
			break
		}
		a, b, _ := splitParagraph((*target)[idx])
		(*target)[idx] = a
		*target = insertAt(*target, idx+1, b)
		changes = append(changes, Change{Step: "paragraphs", Detail: "split paragraph to reach the minimum count"})
	}

	for doc.paragraphCount() > e.cfg.MaxParagraphs {
		var target *[]string
		idx, shortest := -1, 0
		for _, l := range doc.lists() {
			for i := 0; i+1 < len(*l); i++ {
				n := textnorm.RuneLen((*l)[i]) + textnorm.RuneLen((*l)[i+1])
				if target == nil || n < shortest {
					target, idx, shortest = l, i, n
				}
			}
		}
		if target == nil {
			break
		}
		merged := (*target)[idx] + " " + (*target)[idx+1]
		(*target)[idx] = merged
		*target = append((*target)[:idx+1], (*target)[idx+2:]...)
		changes = append(changes, Change{Step: "paragraphs", Detail: "merged adjacent short paragraphs"})
	}
	return changes
}

func (e *Editor) structureValid(doc *document) bool {
	if len(doc.lead) == 0 {
		return false
	}
	if len(doc.sections) < e.cfg.MinSections || len(doc.sections) > e.cfg.MaxSections {
		return false
	}
	for _, s := range doc.sections {
		if strings.TrimSpace(s.heading) == "" || len(s.paras) == 0 {
			return false
		}
	}
	return true
}

// ensureStructure rebuilds the body as an intro, two or three headed sections
// and a closing paragraph when the existing layout does not already match.
func (e *Editor) ensureStructure(doc *document, in Input, lang string) []Change {
	if e.structureValid(doc) {
		return nil
	}
	paras := doc.paragraphs()
	var existing []string
	for _, s := range doc.sections {
		if h := strings.TrimSpace(s.heading); h != "" {
			existing = append(existing, h)
		}
	}

	n := len(paras)
	if n == 0 {
		return nil
	}
	if n == 1 {
		headings := pickHeadings(1, existing, in.Headings, in.Category, lang)
		*doc = document{sections: []section{{heading: headings[0], paras: paras}}}
		return []Change{{Step: "structure", Detail: "added a heading"}}
	}
	var sizes []int
	switch {
	case n == 2:
		sizes = []int{1}
	default:
		// Intro takes one paragraph; the closing rides with the last section.
		middle := n - 1
		count := e.cfg.MinSections
		if len(existing) > count {
			count = min(len(existing), e.cfg.MaxSections)
		}
		count = min(count, middle)
		sizes = make([]int, count)
		for i := range sizes {
			sizes[i] = middle / count
			if i < middle%count {
				sizes[i]++
			}
		}
	}

	headings := pickHeadings(len(sizes), existing, in.Headings, in.Category, lang)
	rebuilt := document{lead: []string{paras[0]}}
	next := 1
	for i, size := range sizes {
		s := section{heading: headings[i]}
		s.paras = append(s.paras, paras[next:next+size]...)
		next += size
		rebuilt.sections = append(rebuilt.sections, s)
	}
	*doc = rebuilt
	return []Change{{Step: "structure", Detail: fmt.Sprintf("rebuilt as intro + %d sections", len(sizes))}}
}

func pickHeadings(count int, existing, requested []string, category, lang string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(list []string) {
		for _, h := range list {
			h = textnorm.Collapse(h)
			key := strings.ToLower(h)
			if h == "" || len(out) >= count {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, h)
		}
	}
	add(existing)
	add(requested)
	add(FallbackHeadings(category, lang))
	for len(out) < count {
		out = append(out, fmt.Sprintf("%d", len(out)+1))
	}
	return out
}
