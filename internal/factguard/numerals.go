package factguard

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var koreanDigits = map[rune]int64{
	'일': 1, '이': 2, '삼': 3, '사': 4, '오': 5, '육': 6, '칠': 7, '팔': 8, '구': 9,
}

var koreanSmallUnits = map[rune]int64{'십': 10, '백': 100, '천': 1000}

var koreanLargeUnits = map[rune]int64{'만': 1e4, '억': 1e8, '조': 1e12}

var koreanNumeralRun = regexp.MustCompile(`[일이삼사오육칠팔구십백천만억조]{2,}`)

var englishNumberWords = map[string]int64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50, "sixty": 60,
	"seventy": 70, "eighty": 80, "ninety": 90,
}

var englishScaleWords = map[string]int64{
	"hundred": 100, "thousand": 1e3, "million": 1e6, "billion": 1e9, "trillion": 1e12,
}

const englishBase = `zero|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety`

var englishNumeralRun = regexp.MustCompile(`(?i)\b(?:` + englishBase + `)(?:(?:[\s-]+(?:and[\s-]+)?)(?:` + englishBase + `|hundred|thousand|million|billion|trillion))*\b`)

// ConvertNumerals rewrites native numeral words as digits so the extractor can
// treat "삼백오십만" and "three hundred fifty thousand" like "3500000" and
// "350000".
func ConvertNumerals(text string) string {
	text = convertKorean(text)
	return englishNumeralRun.ReplaceAllStringFunc(text, func(run string) string {
		value, ok := parseEnglishNumber(run)
		if !ok {
			return run
		}
		return strconv.FormatInt(value, 10)
	})
}

func convertKorean(text string) string {
	locs := koreanNumeralRun.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		run := text[loc[0]:loc[1]]
		if !hasKoreanUnit(run) || !atWordStart(text, loc[0]) {
			continue
		}
		value, ok := parseKoreanNumber(run)
		if !ok {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(strconv.FormatInt(value, 10))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func hasKoreanUnit(run string) bool {
	for _, r := range run {
		if _, ok := koreanSmallUnits[r]; ok {
			return true
		}
		if _, ok := koreanLargeUnits[r]; ok {
			return true
		}
	}
	return false
}

// atWordStart rejects runs glued to a preceding letter or digit ("3천만" is
// left for the mixed-form parser, "이백화점" style compounds are left alone).
func atWordStart(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	prev := []rune(text[:idx])
	r := prev[len(prev)-1]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func parseKoreanNumber(run string) (int64, bool) {
	var total, section, current int64
	for _, r := range run {
		if d, ok := koreanDigits[r]; ok {
			if current != 0 {
				return 0, false
			}
			current = d
			continue
		}
		if u, ok := koreanSmallUnits[r]; ok {
			if current == 0 {
				current = 1
			}
			section += current * u
			current = 0
			continue
		}
		if u, ok := koreanLargeUnits[r]; ok {
			section += current
			if section == 0 {
				section = 1
			}
			total += section * u
			section, current = 0, 0
			continue
		}
		return 0, false
	}
	return total + section + current, true
}

func parseEnglishNumber(run string) (int64, bool) {
	words := strings.FieldsFunc(strings.ToLower(run), func(r rune) bool {
		return r == ' ' || r == '-' || unicode.IsSpace(r)
	})
	var total, current int64
	seen := false
	for _, w := range words {
		if w == "and" {
			continue
		}
		if v, ok := englishNumberWords[w]; ok {
			current += v
			seen = true
			continue
		}
		scale, ok := englishScaleWords[w]
		if !ok {
			return 0, false
		}
		if current == 0 {
			current = 1
		}
		if scale == 100 {
			current *= scale
			continue
		}
		total += current * scale
		current = 0
	}
	if !seen {
		return 0, false
	}
	return total + current, true
}

// scaleMultiplier resolves a Korean or English scale word such as 천만 or
// million.
func scaleMultiplier(scale string) float64 {
	scale = strings.ToLower(strings.TrimSpace(scale))
	if scale == "" {
		return 1
	}
	if v, ok := englishScaleWords[scale]; ok {
		return float64(v)
	}
	mult := float64(1)
	small := float64(1)
	for _, r := range scale {
		if u, ok := koreanSmallUnits[r]; ok {
			small = float64(u)
			continue
		}
		if u, ok := koreanLargeUnits[r]; ok {
			mult = small * float64(u)
			small = 1
		}
	}
	if small != 1 {
		mult *= small
	}
	return mult
}
