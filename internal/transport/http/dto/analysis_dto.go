package dto

import (
	"time"

	"github.com/codelens/backend/internal/domain"
)

type EnqueueAnalysisResponse struct {
	TaskID string `json:"task_id"`
}

type TaskStatusResponse struct {
	TaskID        string            `json:"task_id"`
	ProjectID     uint              `json:"project_id"`
	Status        domain.TaskStatus `json:"status"`
	Progress      int               `json:"progress"`
	PartialResult domain.JSONB      `json:"partial_result,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TaskToStatusResponse shapes a task row for polling clients. Progress is
// derived from how many stage results have landed relative to the pipeline
// length.
func TaskToStatusResponse(task *domain.AnalysisTask, totalStages int) TaskStatusResponse {
	progress := 0
	if totalStages > 0 {
		progress = len(task.Stages) * 100 / totalStages
	}
	if task.Status == domain.TaskStatusCompleted {
		progress = 100
	}

	return TaskStatusResponse{
		TaskID:        task.ID,
		ProjectID:     task.ProjectID,
		Status:        task.Status,
		Progress:      progress,
		PartialResult: task.Stages,
		Error:         task.Error,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}
}

func TasksToStatusResponse(tasks []domain.AnalysisTask, totalStages int) []TaskStatusResponse {
	responses := make([]TaskStatusResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = TaskToStatusResponse(&task, totalStages)
	}
	return responses
}

type StatsResponse struct {
	Projects   int64            `json:"projects"`
	Tasks      map[string]int64 `json:"tasks"`
	TasksTotal int64            `json:"tasks_total"`
}

// Stream message kinds. The first frame on a progress socket is always the
// snapshot; every later frame is an event.
const (
	StreamKindSnapshot = "snapshot"
	StreamKindEvent    = "event"
)

type StreamSnapshot struct {
	Kind string             `json:"kind"`
	Task TaskStatusResponse `json:"task"`
}

type StreamEvent struct {
	Kind  string               `json:"kind"`
	Event domain.ProgressEvent `json:"event"`
}
