package api

import (
	"strings"
	"time"

	"campaign-compliance/internal/editor"
	"campaign-compliance/internal/pipeline"
	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/speechlaw"
	"campaign-compliance/internal/store"
)

// RequestSpec carries the fields shared by draft, validate and edit requests.
type RequestSpec struct {
	Owner          string            `json:"owner"`
	Topic          string            `json:"topic"`
	Instructions   string            `json:"instructions"`
	PrimaryKeyword string            `json:"primary_keyword"`
	Keywords       []scoring.Keyword `json:"keywords"`
	Category       string            `json:"category"`
	Headings       []string          `json:"headings"`
	TargetChars    int               `json:"target_chars"`
	Stage          string            `json:"stage"`
	Status         string            `json:"status"`
	References     []string          `json:"references"`
}

// stage prefers an explicit stage and falls back to the declared status.
func (r RequestSpec) stage() speechlaw.Stage {
	if strings.TrimSpace(r.Stage) != "" {
		return speechlaw.ParseStage(r.Stage)
	}
	return speechlaw.StageFromStatus(r.Status)
}

func (r RequestSpec) pipelineRequest(references []string, guidelines string) pipeline.Request {
	keywords := make([]scoring.Keyword, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		kw.Text = strings.TrimSpace(kw.Text)
		if kw.Text == "" {
			continue
		}
		if kw.Role == "" {
			kw.Role = scoring.RoleUser
		}
		keywords = append(keywords, kw)
	}
	primary := strings.TrimSpace(r.PrimaryKeyword)
	if primary != "" && !hasKeyword(keywords, primary) {
		keywords = append([]scoring.Keyword{{Text: primary, Role: scoring.RoleUser}}, keywords...)
	}
	return pipeline.Request{
		Topic:          strings.TrimSpace(r.Topic),
		Instructions:   strings.TrimSpace(r.Instructions),
		PrimaryKeyword: primary,
		Keywords:       keywords,
		Category:       strings.TrimSpace(r.Category),
		Headings:       r.Headings,
		TargetChars:    r.TargetChars,
		Stage:          r.stage(),
		References:     references,
		Guidelines:     guidelines,
	}
}

func hasKeyword(keywords []scoring.Keyword, text string) bool {
	for _, kw := range keywords {
		if strings.EqualFold(kw.Text, text) {
			return true
		}
	}
	return false
}

// DraftRequest starts a full pipeline run.
type DraftRequest struct {
	RequestSpec
	// SkipSearch disables the remote reference lookup for this request.
	SkipSearch bool `json:"skip_search"`
}

// DraftResponse is the outcome of a run.
type DraftResponse struct {
	RunID            string                 `json:"run_id"`
	Title            string                 `json:"title"`
	Body             string                 `json:"body"`
	Score            int                    `json:"score"`
	Reviewed         bool                   `json:"reviewed"`
	Recommendation   scoring.Recommendation `json:"recommendation"`
	Fallback         bool                   `json:"fallback"`
	Stage            speechlaw.Stage        `json:"stage"`
	ReferenceCount   int                    `json:"reference_count"`
	DraftAttempts    int                    `json:"draft_attempts"`
	CriticCalls      int                    `json:"critic_calls"`
	CorrectionRounds int                    `json:"correction_rounds"`
	Summary          pipeline.Summary       `json:"summary"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

func newDraftResponse(result pipeline.Result, stage speechlaw.Stage, refs int) DraftResponse {
	return DraftResponse{
		RunID:            result.RunID,
		Title:            result.Draft.Title,
		Body:             result.Draft.Body,
		Score:            result.Score,
		Reviewed:         result.Reviewed,
		Recommendation:   result.Recommendation,
		Fallback:         result.Fallback,
		Stage:            stage,
		ReferenceCount:   refs,
		DraftAttempts:    result.DraftAttempts,
		CriticCalls:      result.CriticCalls,
		CorrectionRounds: result.CorrectionRounds,
		Summary:          result.Summary,
		ProcessingTimeMs: result.ProcessingTimeMs,
	}
}

// CheckRequest carries a caller draft for /validate and /edit.
type CheckRequest struct {
	RequestSpec
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (r CheckRequest) draft() editor.Draft {
	return editor.Draft{Title: strings.TrimSpace(r.Title), Body: r.Body}
}

// CheckResponse reports detector results for a caller draft.
type CheckResponse struct {
	Title   string           `json:"title"`
	Body    string           `json:"body"`
	Stage   speechlaw.Stage  `json:"stage"`
	Passed  bool             `json:"passed"`
	Summary pipeline.Summary `json:"summary"`
}

// ReferenceRequest stores one reference document.
type ReferenceRequest struct {
	Owner   string `json:"owner"`
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	Content string `json:"content"`
	Format  string `json:"format"`
}

// ReferenceListResponse is one page of stored references.
type ReferenceListResponse struct {
	Items []ReferenceDTO `json:"items"`
	Total int64          `json:"total"`
}

// ReferenceDTO is the API representation of a stored reference.
type ReferenceDTO struct {
	ID        uint      `json:"id"`
	Owner     string    `json:"owner"`
	Topic     string    `json:"topic"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Content   string    `json:"content,omitempty"`
	Chars     int       `json:"chars"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toReferenceDTO(doc store.ReferenceDoc, withContent bool) ReferenceDTO {
	dto := ReferenceDTO{
		ID:        doc.ID,
		Owner:     doc.Owner,
		Topic:     doc.Topic,
		Title:     doc.Title,
		Source:    doc.Source,
		Chars:     doc.Chars,
		UpdatedAt: doc.UpdatedAt,
	}
	if withContent {
		dto.Content = doc.Content
	}
	return dto
}

// GuidelineRequest replaces an owner's guideline summary.
type GuidelineRequest struct {
	Summary string `json:"summary"`
}
