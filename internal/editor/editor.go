// Package editor is the deterministic last pass over a draft. It enforces the
// hard constraints (commitment phrasing, paragraph count, structure, length,
// keyword coverage, title bounds) without calling a model, so the result is
// compliant even when every model call failed.
package editor

import (
	"campaign-compliance/internal/rules"
	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/textnorm"
)

// Draft is a title and a body of <h2>/<p> markup.
type Draft struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Change records one edit.
type Change struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// Config holds the hard-constraint bands.
type Config struct {
	MinParagraphs     int                   `json:"min_paragraphs"`
	MaxParagraphs     int                   `json:"max_paragraphs"`
	MaxParagraphRunes int                   `json:"max_paragraph_runes"`
	MinSections       int                   `json:"min_sections"`
	MaxSections       int                   `json:"max_sections"`
	LengthTolerance   float64               `json:"length_tolerance"`
	FallbackMinRunes  int                   `json:"fallback_min_runes"`
	Title             scoring.TitleConfig   `json:"title"`
	Keywords          scoring.KeywordConfig `json:"keywords"`
}

// DefaultConfig returns the production bands.
func DefaultConfig() Config {
	return Config{
		MinParagraphs:     5,
		MaxParagraphs:     10,
		MaxParagraphRunes: 400,
		MinSections:       2,
		MaxSections:       3,
		LengthTolerance:   0.2,
		FallbackMinRunes:  300,
		Title:             scoring.DefaultTitleConfig(),
		Keywords:          scoring.DefaultKeywordConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinParagraphs <= 0 {
		c.MinParagraphs = def.MinParagraphs
	}
	if c.MaxParagraphs < c.MinParagraphs {
		c.MaxParagraphs = max(def.MaxParagraphs, c.MinParagraphs)
	}
	if c.MaxParagraphRunes <= 0 {
		c.MaxParagraphRunes = def.MaxParagraphRunes
	}
	if c.MinSections <= 0 {
		c.MinSections = def.MinSections
	}
	if c.MaxSections < c.MinSections {
		c.MaxSections = max(def.MaxSections, c.MinSections)
	}
	if c.LengthTolerance <= 0 || c.LengthTolerance >= 1 {
		c.LengthTolerance = def.LengthTolerance
	}
	if c.FallbackMinRunes <= 0 {
		c.FallbackMinRunes = def.FallbackMinRunes
	}
	if c.Title.MinRunes <= 0 {
		c.Title.MinRunes = def.Title.MinRunes
	}
	if c.Title.MaxRunes < c.Title.MinRunes {
		c.Title.MaxRunes = max(def.Title.MaxRunes, c.Title.MinRunes)
	}
	if c.Title.KeywordWindow <= 0 {
		c.Title.KeywordWindow = def.Title.KeywordWindow
	}
	if c.Keywords.CharsPerOccurrence <= 0 {
		c.Keywords = def.Keywords
	}
	return c
}

// Input carries the request context the editor needs.
type Input struct {
	TargetChars    int               `json:"target_chars"`
	PrimaryKeyword string            `json:"primary_keyword"`
	Keywords       []scoring.Keyword `json:"keywords"`
	Category       string            `json:"category"`
	Headings       []string          `json:"headings"`
}

// Editor applies the hard-constraint steps in a fixed order.
type Editor struct {
	cfg        Config
	neutralize rules.Table
	style      rules.Table
}

// New returns an editor with the default rewrite tables.
func New(cfg Config) *Editor {
	return &Editor{
		cfg:        cfg.withDefaults(),
		neutralize: DefaultNeutralizeRules(),
		style:      DefaultStyleRules(),
	}
}

// WithRules merges the neutralize and style tier rules of table over the
// rewrite tables. A rule with a default's name replaces it.
func (e *Editor) WithRules(table rules.Table) *Editor {
	clone := *e
	clone.neutralize = e.neutralize.Merge(table.Tier(rules.TierNeutralize))
	clone.style = e.style.Merge(table.Tier(rules.TierStyle))
	return &clone
}

// Config exposes the effective configuration.
func (e *Editor) Config() Config {
	return e.cfg
}

// Apply runs every step and returns the edited draft with a log of changes.
// A body with no paragraphs is returned unchanged.
func (e *Editor) Apply(draft Draft, in Input) (Draft, []Change) {
	doc, ok := parseDocument(draft.Body)
	if !ok {
		return draft, nil
	}
	lang := detectLanguage(draft.Title + draft.Body + in.PrimaryKeyword)
	var changes []Change

	title, fired := e.neutralizeText(draft.Title)
	changes = append(changes, fired...)
	changes = append(changes, e.neutralizeDocument(&doc)...)
	changes = append(changes, e.balanceParagraphs(&doc)...)
	changes = append(changes, e.ensureStructure(&doc, in, lang)...)
	changes = append(changes, e.fitLength(&doc, in.TargetChars, lang)...)
	changes = append(changes, e.rebalanceKeywords(&doc, in.Keywords, lang)...)
	changes = append(changes, e.varyStyle(&doc)...)

	fixed, titleChanges := e.fixTitle(title, in.PrimaryKeyword, lang)
	changes = append(changes, titleChanges...)

	return Draft{Title: fixed, Body: doc.render()}, changes
}

func detectLanguage(text string) string {
	if textnorm.HasHangul(text) {
		return "ko"
	}
	return "en"
}
