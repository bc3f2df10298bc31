package store

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ReferenceDoc is one piece of source material numbers in a draft must trace
// back to.
type ReferenceDoc struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Owner     string    `gorm:"size:128;index" json:"owner"`
	Topic     string    `gorm:"size:256;index" json:"topic"`
	Title     string    `gorm:"size:256" json:"title"`
	Source    string    `gorm:"size:512" json:"source"`
	SourceKey string    `gorm:"size:700;uniqueIndex" json:"-"`
	Content   string    `gorm:"type:text" json:"content"`
	Chars     int       `json:"chars"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Guideline is the running summary of house style and past critic findings
// for one owner.
type Guideline struct {
	Owner     string    `gorm:"primaryKey;size:128" json:"owner"`
	Summary   string    `gorm:"type:text" json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func (r *ReferenceDoc) prepare() {
	r.Owner = strings.TrimSpace(r.Owner)
	r.Topic = strings.TrimSpace(r.Topic)
	r.Title = strings.TrimSpace(r.Title)
	r.Source = strings.TrimSpace(r.Source)
	r.Content = strings.TrimSpace(r.Content)
	r.SourceKey = normalizeKey(r.Owner) + "|" + normalizeKey(r.Source)
	r.Chars = utf8.RuneCountInString(r.Content)
}
