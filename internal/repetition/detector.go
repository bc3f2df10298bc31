// Package repetition finds repeated sentences, repeated phrases and
// paraphrased sentences in a draft body.
package repetition

import (
	"sort"
	"strings"

	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/textnorm"
)

// Config holds every threshold the detectors use.
type Config struct {
	MinSentenceRunes int     `json:"min_sentence_runes"`
	ExactMinRunes    int     `json:"exact_min_runes"`
	PhraseMinWords   int     `json:"phrase_min_words"`
	PhraseMaxWords   int     `json:"phrase_max_words"`
	PhraseMinRunes   int     `json:"phrase_min_runes"`
	PhraseMinCount   int     `json:"phrase_min_count"`
	NearMinRunes     int     `json:"near_min_runes"`
	NearThreshold    float64 `json:"near_threshold"`
	NearUpper        float64 `json:"near_upper"`
	TokenMinRunes    int     `json:"token_min_runes"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinSentenceRunes: 5,
		ExactMinRunes:    20,
		PhraseMinWords:   3,
		PhraseMaxWords:   6,
		PhraseMinRunes:   10,
		PhraseMinCount:   3,
		NearMinRunes:     25,
		NearThreshold:    0.6,
		NearUpper:        0.95,
		TokenMinRunes:    2,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinSentenceRunes <= 0 {
		c.MinSentenceRunes = def.MinSentenceRunes
	}
	if c.ExactMinRunes <= 0 {
		c.ExactMinRunes = def.ExactMinRunes
	}
	if c.PhraseMinWords <= 0 {
		c.PhraseMinWords = def.PhraseMinWords
	}
	if c.PhraseMaxWords < c.PhraseMinWords {
		c.PhraseMaxWords = max(def.PhraseMaxWords, c.PhraseMinWords)
	}
	if c.PhraseMinRunes <= 0 {
		c.PhraseMinRunes = def.PhraseMinRunes
	}
	if c.PhraseMinCount <= 1 {
		c.PhraseMinCount = def.PhraseMinCount
	}
	if c.NearMinRunes <= 0 {
		c.NearMinRunes = def.NearMinRunes
	}
	if c.NearThreshold <= 0 {
		c.NearThreshold = def.NearThreshold
	}
	if c.NearUpper <= c.NearThreshold {
		c.NearUpper = def.NearUpper
	}
	if c.TokenMinRunes <= 0 {
		c.TokenMinRunes = def.TokenMinRunes
	}
	return c
}

// Detector runs the three repetition checks.
type Detector struct {
	cfg Config
}

// New returns a detector; zero config fields take their defaults.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Config exposes the effective thresholds.
func (d *Detector) Config() Config {
	return d.cfg
}

// ExactDuplicate is a sentence that occurs more than once.
type ExactDuplicate struct {
	Sentence string `json:"sentence"`
	Count    int    `json:"count"`
}

// PhraseDuplicate is a word sequence repeated across the body.
type PhraseDuplicate struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// NearDuplicate is a pair of sentences that say nearly the same thing.
type NearDuplicate struct {
	First      string  `json:"first"`
	Second     string  `json:"second"`
	Similarity float64 `json:"similarity"`
}

func (d *Detector) sentences(text string) []string {
	return textnorm.Sentences(text, d.cfg.MinSentenceRunes)
}

func sentenceKey(s string) string {
	return textnorm.Compact(textnorm.TrimTerminal(s))
}

// Exact reports normalised sentences that appear at least twice, in the order
// they first appear.
func (d *Detector) Exact(text string) []ExactDuplicate {
	counts := make(map[string]int)
	first := make(map[string]string)
	var order []string
	for _, s := range d.sentences(text) {
		if textnorm.RuneLen(s) < d.cfg.ExactMinRunes {
			continue
		}
		key := sentenceKey(s)
		if _, ok := first[key]; !ok {
			first[key] = s
			order = append(order, key)
		}
		counts[key]++
	}
	var out []ExactDuplicate
	for _, key := range order {
		if counts[key] >= 2 {
			out = append(out, ExactDuplicate{Sentence: first[key], Count: counts[key]})
		}
	}
	return out
}

// Phrases reports word windows repeated at least PhraseMinCount times. Windows
// never cross a sentence boundary, and a phrase already covered by a longer
// flagged phrase is not reported again.
func (d *Detector) Phrases(text string) []PhraseDuplicate {
	counts := make(map[string]int)
	var order []string
	for _, s := range d.sentences(text) {
		words := textnorm.Words(s)
		for size := d.cfg.PhraseMinWords; size <= d.cfg.PhraseMaxWords; size++ {
			for i := 0; i+size <= len(words); i++ {
				phrase := strings.Join(words[i:i+size], " ")
				if textnorm.RuneLen(phrase) < d.cfg.PhraseMinRunes {
					continue
				}
				if counts[phrase] == 0 {
					order = append(order, phrase)
				}
				counts[phrase]++
			}
		}
	}

	var flagged []PhraseDuplicate
	for _, phrase := range order {
		if counts[phrase] >= d.cfg.PhraseMinCount {
			flagged = append(flagged, PhraseDuplicate{Phrase: phrase, Count: counts[phrase]})
		}
	}

	byLength := append([]PhraseDuplicate(nil), flagged...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Phrase) > len(byLength[j].Phrase)
	})
	var out []PhraseDuplicate
	for _, p := range flagged {
		covered := false
		for _, longer := range byLength {
			if len(longer.Phrase) <= len(p.Phrase) {
				break
			}
			if strings.Contains(" "+longer.Phrase+" ", " "+p.Phrase+" ") {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	return out
}

// Near reports sentence pairs whose word-set Jaccard similarity falls in
// [NearThreshold, NearUpper). Pairs with the same normalised text belong to
// Exact and are skipped.
func (d *Detector) Near(text string) []NearDuplicate {
	type entry struct {
		text  string
		key   string
		words map[string]struct{}
	}
	var entries []entry
	seen := make(map[string]struct{})
	for _, s := range d.sentences(text) {
		if textnorm.RuneLen(s) < d.cfg.NearMinRunes {
			continue
		}
		key := sentenceKey(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		entries = append(entries, entry{text: s, key: key, words: d.wordSet(s)})
	}

	var out []NearDuplicate
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			sim := Jaccard(entries[i].words, entries[j].words)
			if sim >= d.cfg.NearThreshold && sim < d.cfg.NearUpper {
				out = append(out, NearDuplicate{
					First:      entries[i].text,
					Second:     entries[j].text,
					Similarity: sim,
				})
			}
		}
	}
	return out
}

func (d *Detector) wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range textnorm.Words(s) {
		if textnorm.RuneLen(w) >= d.cfg.TokenMinRunes {
			set[w] = struct{}{}
		}
	}
	return set
}

// Jaccard is |a∩b| / |a∪b|; two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// Check runs every detector and folds the findings into one result.
func (d *Detector) Check(text string) scoring.Result {
	result := scoring.Pass()
	exact := d.Exact(text)
	phrases := d.Phrases(text)
	near := d.Near(text)

	for _, e := range exact {
		result.Fail("exact_duplicate", "%q x%d", e.Sentence, e.Count)
	}
	for _, p := range phrases {
		result.Fail("phrase_duplicate", "%q x%d", p.Phrase, p.Count)
	}
	for _, n := range near {
		result.Fail("near_duplicate", "%q ~ %q (%.2f)", n.First, n.Second, n.Similarity)
	}
	result.Details["exact"] = exact
	result.Details["phrases"] = phrases
	result.Details["near"] = near
	return result
}
