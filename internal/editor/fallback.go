package editor

import (
	"errors"
	"fmt"
	"strings"

	"campaign-compliance/internal/textnorm"
)

// ErrInsufficientContent means the fallback builder could not reach the
// minimum body length from what it was given.
var ErrInsufficientContent = errors.New("insufficient content for fallback draft")

// FallbackInput is what the deterministic builder works from.
type FallbackInput struct {
	Topic          string
	PrimaryKeyword string
	Category       string
	Headings       []string
	Facts          []string
	TargetChars    int
}

var fallbackTemplates = map[string]struct {
	intro    []string
	sections [][]string
	closing  []string
}{
	"ko": {
		intro: []string{
			"{topic}에 대해 주민 여러분과 함께 생각을 나누고자 합니다.",
			"최근 {kw}와 관련해 다양한 의견이 모이고 있습니다.",
		},
		sections: [][]string{
			{"지금까지 지역에서 확인된 사실을 먼저 살펴볼 필요가 있습니다.", "현장에서 만난 주민들은 생활 속 불편을 구체적으로 이야기했습니다."},
			{"{kw} 논의에서는 주민의 목소리가 출발점이 되어야 합니다.", "관계 기관과 전문가의 검토도 함께 필요합니다."},
			{"예산과 일정은 공개된 자료를 바탕으로 판단해야 합니다.", "작은 개선이라도 꾸준히 점검하는 것이 중요합니다."},
		},
		closing: []string{
			"주민 여러분의 의견을 귀 기울여 듣고 기록하는 일이 무엇보다 중요합니다.",
			"함께 고민해 주셔서 감사합니다.",
		},
	},
	"en": {
		intro: []string{
			"This note looks at {topic} and what it means for our neighbourhood.",
			"Many residents have shared their views on {kw} in recent months.",
		},
		sections: [][]string{
			{"It helps to start from the facts that are already on the public record.", "People we met described concrete problems in their daily routines."},
			{"Any discussion about {kw} should begin with the residents it affects.", "Input from the relevant agencies and independent experts is also needed."},
			{"Budgets and timelines should be judged against published documents.", "Small improvements are worth tracking carefully over time."},
		},
		closing: []string{
			"Thank you to everyone who took the time to share a view.",
			"Comments and corrections are always welcome.",
		},
	},
}

// BuildFallback produces a minimal compliant draft from the topic, keyword
// and reference facts alone. The result still needs the Editor pass.
func (e *Editor) BuildFallback(in FallbackInput) (Draft, error) {
	topic := textnorm.Collapse(in.Topic)
	kw := textnorm.Collapse(in.PrimaryKeyword)
	if topic == "" {
		topic = kw
	}
	if kw == "" {
		kw = topic
	}
	if topic == "" {
		return Draft{}, ErrInsufficientContent
	}
	lang := detectLanguage(topic + kw)
	tpl := fallbackTemplates[lang]
	fill := func(s string) string {
		return fillTemplate(strings.NewReplacer("{topic}", topic, "{kw}", kw).Replace(s), "")
	}

	sectionCount := e.cfg.MaxSections
	if sectionCount > len(tpl.sections) {
		sectionCount = len(tpl.sections)
	}
	headings := pickHeadings(sectionCount, nil, in.Headings, in.Category, lang)

	facts := cleanFacts(in.Facts)
	doc := document{lead: []string{joinFilled(tpl.intro, fill)}}
	for i := 0; i < sectionCount; i++ {
		para := joinFilled(tpl.sections[i], fill)
		if i < len(facts) {
			para += " " + facts[i]
		}
		doc.sections = append(doc.sections, section{heading: headings[i], paras: []string{para}})
	}
	for i := sectionCount; i < len(facts); i++ {
		last := &doc.sections[len(doc.sections)-1]
		last.paras = append(last.paras, facts[i])
	}
	last := &doc.sections[len(doc.sections)-1]
	last.paras = append(last.paras, joinFilled(tpl.closing, fill))

	minimum := e.cfg.FallbackMinRunes
	if in.TargetChars > 0 {
		minimum = min(minimum, int(float64(in.TargetChars)*(1-e.cfg.LengthTolerance)))
	}
	if got := doc.plainLen(); got < minimum {
		return Draft{}, fmt.Errorf("%w: %d < %d characters", ErrInsufficientContent, got, minimum)
	}
	return Draft{Title: topic, Body: doc.render()}, nil
}

func joinFilled(sentences []string, fill func(string) string) string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = fill(s)
	}
	return strings.Join(out, " ")
}

// cleanFacts keeps reference sentences that end properly and are neither
// commitments nor too long to quote.
func cleanFacts(facts []string) []string {
	var out []string
	for _, f := range facts {
		f = textnorm.Collapse(textnorm.StripTags(f))
		n := textnorm.RuneLen(f)
		if n < 10 || n > 200 {
			continue
		}
		out = append(out, f)
	}
	return out
}
