package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// VagueHit is a vague or sensational term found in a title.
type VagueHit struct {
	Term     string `json:"term"`
	Severity int    `json:"severity"`
}

// VagueTerms is a severity-keyed term list. Severity 2 and above fails a
// title; severity 1 only warns.
type VagueTerms struct {
	terms map[int][]string
}

// DefaultVagueTerms returns the built-in Korean and English list.
func DefaultVagueTerms() *VagueTerms {
	return &VagueTerms{terms: map[int][]string{
		3: {"충격", "대박", "경악", "shocking", "you won't believe"},
		2: {"여러 가지", "이것저것", "무조건", "various things", "some stuff", "amazing"},
		1: {"다양한", "관련", "소식", "update", "thoughts on", "various"},
	}}
}

// NewVagueTerms constructs a term list from the provided JSON file.
func NewVagueTerms(path string) (*VagueTerms, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read vague terms: %w", err)
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal vague terms: %w", err)
	}
	terms := make(map[int][]string)
	for k, v := range raw {
		severity := atoiSafe(k)
		var list []string
		for _, term := range v {
			term = normalizeTerm(term)
			if term != "" {
				list = append(list, term)
			}
		}
		if len(list) > 0 {
			terms[severity] = list
		}
	}
	return &VagueTerms{terms: terms}, nil
}

// Find returns every listed term contained in text, most severe first.
func (v *VagueTerms) Find(text string) []VagueHit {
	if v == nil {
		return nil
	}
	haystack := normalizeTerm(text)
	var hits []VagueHit
	seen := make(map[string]struct{})
	for severity := 5; severity >= 1; severity-- {
		for _, term := range v.terms[severity] {
			if term == "" || !strings.Contains(haystack, term) {
				continue
			}
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			hits = append(hits, VagueHit{Term: term, Severity: severity})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Severity > hits[j].Severity })
	return hits
}

// Terms exposes the raw severity map (primarily for testing).
func (v *VagueTerms) Terms() map[int][]string {
	return v.terms
}

// Validate ensures the list has at least one term.
func (v *VagueTerms) Validate() error {
	if v == nil {
		return errors.New("vague terms are nil")
	}
	if len(v.terms) == 0 {
		return errors.New("vague terms missing")
	}
	return nil
}

func normalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

func atoiSafe(s string) int {
	var n int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
