// Package markup converts model output into the heading/paragraph body format
// and back into editable blocks.
package markup

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"

	"campaign-compliance/internal/textnorm"
)

// Kind is a block type.
type Kind string

const (
	Heading   Kind = "h2"
	Paragraph Kind = "p"
)

// Block is one heading or paragraph of plain text.
type Block struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

var (
	blockPattern = regexp.MustCompile(`(?is)<(h[1-6]|p|li)\b[^>]*>(.*?)</(?:h[1-6]|p|li)>`)
	tagPresence  = regexp.MustCompile(`(?i)<(h[1-6]|p)\b[^>]*>`)
)

// ToHTML renders markdown with goldmark.
func ToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HasBlocks reports whether text already carries heading or paragraph tags.
func HasBlocks(text string) bool {
	return tagPresence.MatchString(text)
}

// Parse reads heading, paragraph and list-item elements in document order.
// Lists flatten into paragraphs and every heading level becomes Heading. Text
// without any block tags is split into paragraphs on line breaks.
func Parse(markup string) []Block {
	var blocks []Block
	matches := blockPattern.FindAllStringSubmatch(markup, -1)
	if len(matches) == 0 {
		for _, line := range strings.Split(textnorm.StripTags(markup), "\n") {
			if line = textnorm.Collapse(line); line != "" {
				blocks = append(blocks, Block{Kind: Paragraph, Text: line})
			}
		}
		return blocks
	}
	for _, m := range matches {
		text := textnorm.Collapse(textnorm.StripTags(m[2]))
		if text == "" {
			continue
		}
		kind := Paragraph
		if strings.HasPrefix(strings.ToLower(m[1]), "h") {
			kind = Heading
		}
		blocks = append(blocks, Block{Kind: kind, Text: text})
	}
	return blocks
}

// Render writes blocks as <h2>/<p> markup, one element per line.
func Render(blocks []Block) string {
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		tag := string(block.Kind)
		if block.Kind != Heading {
			tag = string(Paragraph)
		}
		b.WriteString("<" + tag + ">")
		b.WriteString(html.EscapeString(block.Text))
		b.WriteString("</" + tag + ">")
	}
	return b.String()
}

// Normalize turns a model's body, markdown or tagged, into canonical
// <h2>/<p> markup.
func Normalize(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", nil
	}
	if !HasBlocks(body) {
		rendered, err := ToHTML(body)
		if err != nil {
			return "", err
		}
		body = rendered
	}
	return Render(Parse(body)), nil
}

// Count returns the number of headings and paragraphs.
func Count(blocks []Block) (headings, paragraphs int) {
	for _, b := range blocks {
		if b.Kind == Heading {
			headings++
		} else {
			paragraphs++
		}
	}
	return headings, paragraphs
}

// PlainText converts reference material to plain text. format is "markdown",
// "html" or anything else for text taken as-is.
func PlainText(content, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "md", "markdown":
		rendered, err := ToHTML(content)
		if err != nil {
			return "", err
		}
		return textnorm.StripTags(rendered), nil
	case "html", "htm":
		return textnorm.StripTags(content), nil
	default:
		return strings.TrimSpace(content), nil
	}
}
