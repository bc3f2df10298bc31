package pipeline

import "time"

// Stage is one state of a run.
type Stage string

const (
	StageDrafting     Stage = "DRAFTING"
	StageBasicCheck   Stage = "BASIC_CHECK"
	StageEditorReview Stage = "EDITOR_REVIEW"
	StageCorrecting   Stage = "CORRECTING"
	StageFinalizing   Stage = "FINALIZING"
	StageCompleted    Stage = "COMPLETED"
)

// StageEvent is published every time a run enters a stage.
type StageEvent struct {
	RunID   string    `json:"run_id"`
	Stage   Stage     `json:"stage"`
	Attempt int       `json:"attempt,omitempty"`
	Round   int       `json:"round,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Observer receives stage events. It runs on the orchestrator goroutine and
// must not block.
type Observer func(StageEvent)
