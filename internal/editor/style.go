package editor

import (
	"fmt"
	"strings"

	"campaign-compliance/internal/textnorm"
)

// varyStyle rewrites the ending of a sentence that repeats the ending of the
// sentence before it, when the style table has an alternative.
func (e *Editor) varyStyle(doc *document) []Change {
	var changes []Change
	for _, l := range doc.lists() {
		for i, p := range *l {
			sentences := textnorm.SplitSentences(p)
			prevRule := ""
			changed := false
			for j, s := range sentences {
				rule, ok := e.style.Match(s)
				if !ok {
					prevRule = ""
					continue
				}
				if rule.Name != prevRule {
					prevRule = rule.Name
					continue
				}
				rewritten := rule.Pattern.ReplaceAllString(s, rule.Replacement)
				if rewritten != s {
					sentences[j] = rewritten
					changed = true
					changes = append(changes, Change{Step: "style", Detail: fmt.Sprintf("%s: %q", rule.Name, rewritten)})
				}
				prevRule = ""
			}
			if changed {
				(*l)[i] = strings.Join(sentences, " ")
			}
		}
	}
	return changes
}
