// Package factguard checks that numbers quoted in a draft can be traced back to
// the reference material supplied with the request.
package factguard

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/textnorm"
)

const (
	koSegment = `\d[\d,]*(?:\.\d+)?\s*(?:[십백천]?[만억조]|천)`
)

var (
	numberPattern    = regexp.MustCompile(`(?i)(\$\s*)?(?:(` + koSegment + `(?:\s*` + koSegment + `)*)|(\d[\d,]*(?:\.\d+)?)(?:\s+(thousand|million|billion|trillion)\b)?)`)
	koSegmentPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([십백천]?[만억조]|천)`)
)

type unitSynonym struct {
	word      string
	canonical string
}

var unitSynonyms = func() []unitSynonym {
	list := []unitSynonym{
		{"per cent", "%"}, {"percent", "%"}, {"퍼센트", "%"}, {"프로", "%"}, {"pct", "%"}, {"%", "%"},
		{"households", "가구"}, {"가구", "가구"}, {"세대", "가구"},
		{"residents", "명"}, {"citizens", "명"}, {"persons", "명"}, {"people", "명"}, {"명", "명"},
		{"dollars", "$"}, {"dollar", "$"}, {"usd", "$"},
		{"won", "원"}, {"krw", "원"}, {"원", "원"},
		{"facilities", "개"}, {"sites", "개"}, {"units", "개"}, {"개소", "개"}, {"곳", "개"},
		{"개월", "개월"}, {"months", "개월"}, {"개", "개"},
		{"cases", "건"}, {"건", "건"},
		{"times", "배"}, {"배", "배"},
		{"years", "년"}, {"year", "년"}, {"년", "년"},
		{"kilometers", "km"}, {"kilometres", "km"}, {"킬로미터", "km"}, {"km", "km"},
	}
	sort.SliceStable(list, func(i, j int) bool {
		return utf8.RuneCountInString(list[i].word) > utf8.RuneCountInString(list[j].word)
	})
	return list
}()

// Token is one numeric claim found in text.
type Token struct {
	Raw    string  `json:"raw"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	Scaled bool    `json:"scaled,omitempty"`
}

// Normalized is the canonical form used for verbatim allow-list lookups.
func (t Token) Normalized() string {
	return strconv.FormatFloat(t.Value, 'f', -1, 64) + t.Unit
}

// IsClaim is false for a bare single digit with no unit, which reads as prose
// ("2 reasons") rather than a statistic.
func (t Token) IsClaim() bool {
	if t.Unit != "" || t.Scaled {
		return true
	}
	return !(t.Value >= 1 && t.Value <= 9 && t.Value == math.Trunc(t.Value))
}

// ExtractNumericTokens converts native numerals and returns every number with
// its scale and canonical unit.
func ExtractNumericTokens(text string) []Token {
	text = ConvertNumerals(textnorm.StripTags(text))
	var out []Token
	for _, m := range numberPattern.FindAllStringSubmatchIndex(text, -1) {
		if gluedToWord(text, m[0]) {
			continue
		}
		var (
			value  float64
			scaled bool
			ok     bool
		)
		switch {
		case m[4] >= 0:
			value, ok = parseKoreanCompound(text[m[4]:m[5]])
			scaled = true
		case m[6] >= 0:
			value, ok = parseDigits(text[m[6]:m[7]])
			if ok && m[8] >= 0 {
				value *= scaleMultiplier(text[m[8]:m[9]])
				scaled = true
			}
		}
		if !ok {
			continue
		}
		end := m[1]
		unit, unitEnd := matchUnit(text, end)
		if unit == "" && m[2] >= 0 {
			unit = "$"
		}
		if unitEnd > end {
			end = unitEnd
		}
		out = append(out, Token{
			Raw:    strings.TrimSpace(text[m[0]:end]),
			Value:  value,
			Unit:   unit,
			Scaled: scaled,
		})
	}
	return out
}

// gluedToWord skips digits inside identifiers such as "COVID19" or "A4".
func gluedToWord(text string, at int) bool {
	if at == 0 {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:at])
	return prev < unicode.MaxASCII && unicode.IsLetter(prev)
}

func parseDigits(raw string) (float64, bool) {
	clean := strings.TrimRight(strings.ReplaceAll(raw, ",", ""), ".")
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseKoreanCompound(raw string) (float64, bool) {
	var total float64
	found := false
	for _, seg := range koSegmentPattern.FindAllStringSubmatch(raw, -1) {
		v, ok := parseDigits(seg[1])
		if !ok {
			return 0, false
		}
		total += v * scaleMultiplier(seg[2])
		found = true
	}
	return total, found
}

func matchUnit(text string, at int) (string, int) {
	rest := text[at:]
	trimmed := strings.TrimLeft(rest, " \t")
	offset := at + len(rest) - len(trimmed)
	lower := strings.ToLower(trimmed)
	for _, syn := range unitSynonyms {
		if !strings.HasPrefix(lower, syn.word) {
			continue
		}
		end := len(syn.word)
		if isASCIIWord(syn.word) && end < len(lower) {
			next, _ := utf8.DecodeRuneInString(lower[end:])
			if unicode.IsLetter(next) && next < unicode.MaxASCII {
				continue
			}
		}
		return syn.canonical, offset + end
	}
	return "", at
}

func isASCIIWord(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return r < unicode.MaxASCII && unicode.IsLetter(r)
}

// Allowlist holds every number traceable to the reference material.
type Allowlist struct {
	Tokens  map[string]struct{}  `json:"-"`
	Values  map[string][]float64 `json:"values"`
	Derived map[string][]float64 `json:"derived"`
}

// Size is the number of distinct verbatim tokens.
func (a Allowlist) Size() int {
	return len(a.Tokens)
}

// BuildAllowlist extracts numbers from every source and precomputes sums,
// differences and ratios over each pair of distinct same-unit values.
func BuildAllowlist(sources []string) Allowlist {
	allow := Allowlist{
		Tokens:  make(map[string]struct{}),
		Values:  make(map[string][]float64),
		Derived: make(map[string][]float64),
	}
	seen := make(map[string]map[float64]struct{})
	for _, src := range sources {
		for _, tok := range ExtractNumericTokens(src) {
			allow.Tokens[tok.Normalized()] = struct{}{}
			if seen[tok.Unit] == nil {
				seen[tok.Unit] = make(map[float64]struct{})
			}
			if _, ok := seen[tok.Unit][tok.Value]; ok {
				continue
			}
			seen[tok.Unit][tok.Value] = struct{}{}
			allow.Values[tok.Unit] = append(allow.Values[tok.Unit], tok.Value)
		}
	}
	for unit, values := range allow.Values {
		for i := 0; i < len(values); i++ {
			for j := i + 1; j < len(values); j++ {
				a, b := values[i], values[j]
				allow.Derived[unit] = append(allow.Derived[unit], a+b, math.Abs(a-b))
				if unit == "%" || a == 0 || b == 0 {
					continue
				}
				small, large := math.Min(a, b), math.Max(a, b)
				allow.Derived["%"] = append(allow.Derived["%"], small/large*100)
				allow.Derived["배"] = append(allow.Derived["배"], large/small)
			}
		}
	}
	return allow
}

// Config controls how loosely a claim may match the allow-list.
type Config struct {
	Tolerance        float64
	DerivedTolerance float64
}

// Guard finds numeric claims not backed by the allow-list.
type Guard struct {
	cfg Config
}

// NewGuard applies defaults: ±5% for direct values, ±1% for derived ones.
func NewGuard(cfg Config) *Guard {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 0.05
	}
	if cfg.DerivedTolerance <= 0 {
		cfg.DerivedTolerance = 0.01
	}
	return &Guard{cfg: cfg}
}

// Report is the Fact Guard verdict for one text.
type Report struct {
	Passed      bool    `json:"passed"`
	Checked     int     `json:"checked"`
	Unsupported []Token `json:"unsupported"`
}

// FindUnsupported returns the claims in text that the allow-list cannot back.
// It never blocks; the caller decides what an unsupported claim means.
func (g *Guard) FindUnsupported(text string, allow Allowlist) Report {
	report := Report{Passed: true}
	reported := make(map[string]struct{})
	for _, tok := range ExtractNumericTokens(text) {
		if !tok.IsClaim() {
			continue
		}
		report.Checked++
		if g.Supported(tok, allow) {
			continue
		}
		key := tok.Normalized()
		if _, dup := reported[key]; dup {
			continue
		}
		reported[key] = struct{}{}
		report.Unsupported = append(report.Unsupported, tok)
		report.Passed = false
	}
	return report
}

// Supported reports whether a single token is traceable.
func (g *Guard) Supported(tok Token, allow Allowlist) bool {
	if _, ok := allow.Tokens[tok.Normalized()]; ok {
		return true
	}
	for _, v := range allow.Values[tok.Unit] {
		if within(tok.Value, v, g.cfg.Tolerance) {
			return true
		}
	}
	for _, v := range allow.Derived[tok.Unit] {
		if within(tok.Value, v, g.cfg.DerivedTolerance) {
			return true
		}
	}
	return false
}

func within(got, want, tolerance float64) bool {
	if want == 0 {
		return got == 0
	}
	return math.Abs(got-want)/math.Abs(want) <= tolerance
}

// Result adapts the report to the shared detector result.
func (r Report) Result() scoring.Result {
	result := scoring.Pass()
	for _, tok := range r.Unsupported {
		result.Fail("unsupported_numeric_token", "%s", tok.Raw)
	}
	result.Details["checked"] = r.Checked
	result.Details["unsupported"] = r.Unsupported
	return result
}

// Raw returns the raw strings of the unsupported tokens.
func (r Report) Raw() []string {
	out := make([]string, 0, len(r.Unsupported))
	for _, tok := range r.Unsupported {
		out = append(out, tok.Raw)
	}
	return out
}
