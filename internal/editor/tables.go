package editor

import (
	"strings"

	"campaign-compliance/internal/rules"
)

const proposalAims = "the proposal aims to"

// DefaultNeutralizeRules rewrites first-person commitments into descriptions
// of a proposal. Rules run in order on each sentence; specific endings come
// before the generic one.
func DefaultNeutralizeRules() rules.Table {
	return rules.Table{
		rules.MustRule(rules.TierNeutralize, "ko_elected", `당선(?:되면|된다면|이 되면)\s*`, "", "", "", ""),
		rules.MustRule(rules.TierNeutralize, "ko_promise", `약속(?:드립니다|합니다|드리겠습니다|하겠습니다)`, "", "", "", "제안합니다"),
		rules.MustRule(rules.TierNeutralize, "ko_pledge", `공약(?:합니다|하겠습니다|드립니다)`, "", "", "", "제안합니다"),
		rules.MustRule(rules.TierNeutralize, "ko_firm", `(?:반드시|꼭)\s+`, "", "", "", ""),
		rules.MustRule(rules.TierNeutralize, "ko_do", `(\S+)하겠습니다`, "", "", "", "${1}할 필요가 있습니다"),
		rules.MustRule(rules.TierNeutralize, "ko_give", `(\S+)드리겠습니다`, "", "", "", "${1}드릴 필요가 있습니다"),
		rules.MustRule(rules.TierNeutralize, "ko_make", `(\S*)만들겠습니다`, "", "", "", "${1}만드는 방안이 필요합니다"),
		rules.MustRule(rules.TierNeutralize, "ko_will", `(\S+)겠습니다`, "", "", "", "${1}는 방안이 필요합니다"),
		rules.MustRule(rules.TierNeutralize, "en_elected", `(?i)\b(?:once|if|when|after)\s+(?:I'm\s+|I am\s+|we are\s+|we're\s+)?elected,?\s*`, "", "", "", ""),
		rules.MustRule(rules.TierNeutralize, "en_promise", `(?i)\b(?:I|we)\s+(?:promise|pledge|vow|commit)\s+to\b`, "", "", "", proposalAims),
		rules.MustRule(rules.TierNeutralize, "en_my_promise", `(?i)\bmy\s+(?:campaign\s+)?(?:pledge|promise)\s+is\s+to\b`, "", "", "", "the aim is to"),
		rules.MustRule(rules.TierNeutralize, "en_will", `(?i)\b(?:I|we)(?:\s+will|\s+shall|'ll)\b`, "", "", "", proposalAims),
		rules.MustRule(rules.TierNeutralize, "en_going_to", `(?i)\b(?:I am|I'm|we are|we're)\s+going\s+to\b`, "", "", "", proposalAims),
	}
}

// DefaultStyleRules vary the ending of the second of two consecutive
// sentences that end the same way.
func DefaultStyleRules() rules.Table {
	return rules.Table{
		rules.MustRule(rules.TierStyle, "ko_need", `필요합니다([.!]?)$`, "", "", "", "필요한 상황입니다$1"),
		rules.MustRule(rules.TierStyle, "ko_important", `중요합니다([.!]?)$`, "", "", "", "중요한 과제입니다$1"),
		rules.MustRule(rules.TierStyle, "ko_did", `했습니다([.!]?)$`, "", "", "", "한 바 있습니다$1"),
		rules.MustRule(rules.TierStyle, "ko_become", `됩니다([.!]?)$`, "", "", "", "되는 상황입니다$1"),
		rules.MustRule(rules.TierStyle, "ko_exist", `있습니다([.!]?)$`, "", "", "", "있는 상황입니다$1"),
	}
}

var fallbackHeadings = map[string]map[string][]string{
	"transport": {
		"ko": {"교통 현황", "주민이 겪는 불편", "개선 방향"},
		"en": {"Where traffic stands", "What commuters report", "Options for improvement"},
	},
	"welfare": {
		"ko": {"복지 현황", "돌봄 공백", "지원 방향"},
		"en": {"Current support", "Gaps in care", "Ways to close the gap"},
	},
	"education": {
		"ko": {"교육 현장의 목소리", "학부모 의견", "개선 과제"},
		"en": {"Voices from classrooms", "What parents say", "Areas to improve"},
	},
	"environment": {
		"ko": {"환경 현황", "주민 생활 영향", "개선 방향"},
		"en": {"State of the environment", "Effects on daily life", "Paths forward"},
	},
	"economy": {
		"ko": {"지역 경제 현황", "상인과 주민의 목소리", "활성화 방향"},
		"en": {"Local economy today", "Voices from local business", "Directions for growth"},
	},
	"": {
		"ko": {"현황", "주민 의견", "앞으로의 과제"},
		"en": {"Background", "What residents say", "Open questions"},
	},
}

// FallbackHeadings returns section headings for a category, falling back to
// the generic set.
func FallbackHeadings(category, lang string) []string {
	set, ok := fallbackHeadings[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		set = fallbackHeadings[""]
	}
	if lang != "ko" {
		lang = "en"
	}
	return append([]string(nil), set[lang]...)
}

// Categories lists the categories with dedicated heading sets.
func Categories() []string {
	out := make([]string, 0, len(fallbackHeadings))
	for k := range fallbackHeadings {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

var keywordTemplates = map[string][]string{
	"ko": {
		"{kw}에 대한 주민들의 관심이 높습니다.",
		"{kw} 문제는 여러 자리에서 꾸준히 논의되어 왔습니다.",
		"{kw}에 대해서는 차분한 검토가 필요합니다.",
		"많은 분들이 {kw}에 관한 의견을 보내 주셨습니다.",
		"{kw} 역시 지역의 중요한 현안입니다.",
	},
	"en": {
		"Residents often raise {kw} in conversations about the neighbourhood.",
		"Questions about {kw} came up at several community meetings.",
		"Any honest look at local priorities has to include {kw}.",
		"Neighbours have shared many views on {kw} this year.",
		"Careful attention to {kw} matters for families here.",
	},
}

var keywordParaphrase = map[string]string{
	"ko": "이 사업",
	"en": "this project",
}

var summaryPrefix = map[string]string{
	"ko": "정리하면, ",
	"en": "To recap, ",
}

var summaryJoiner = map[string]string{
	"ko": " 그리고 ",
	"en": ", and ",
}

var greetingPrefixes = []string{
	"안녕하십니까", "안녕하세요", "존경하는", "사랑하는",
	"hello", "hi ", "dear ", "good morning", "good evening", "greetings",
}

func isGreeting(paragraph string) bool {
	lower := strings.ToLower(strings.TrimSpace(paragraph))
	for _, p := range greetingPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

var titleSuffixes = map[string][]string{
	"ko": {" 현황과 과제", " 주민 의견 정리"},
	"en": {" for local residents", " in our district"},
}
