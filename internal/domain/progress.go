package domain

import "time"

// ProgressEventType discriminates what a progress event carries.
type ProgressEventType string

const (
	ProgressStageStarted   ProgressEventType = "stage-started"
	ProgressStageCompleted ProgressEventType = "stage-completed"
	ProgressCompleted      ProgressEventType = "completed"
	ProgressFailed         ProgressEventType = "failed"
)

// ProgressEvent is an ephemeral message about one task's stage progress.
// Events are delivered to live subscribers only and never persisted.
// Seq is stamped by the task runner and increases monotonically per task.
type ProgressEvent struct {
	TaskID    string            `json:"task_id"`
	Seq       uint64            `json:"seq"`
	Type      ProgressEventType `json:"type"`
	Stage     AnalysisStage     `json:"stage,omitempty"`
	Progress  int               `json:"progress"` // 0-100
	Message   string            `json:"message,omitempty"`
	Result    JSONB             `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Terminal reports whether this is the last event a task will ever publish.
func (e ProgressEvent) Terminal() bool {
	return e.Type == ProgressCompleted || e.Type == ProgressFailed
}
