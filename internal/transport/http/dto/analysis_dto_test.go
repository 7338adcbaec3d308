package dto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codelens/backend/internal/domain"
)

func TestTaskToStatusResponseProgress(t *testing.T) {
	task := &domain.AnalysisTask{
		ID:        "task-1",
		ProjectID: 7,
		Status:    domain.TaskStatusAnalyzingDocs,
		Stages: domain.JSONB{
			"code":       map[string]interface{}{"total_files": 10},
			"deployment": map[string]interface{}{"detected": false},
		},
	}

	resp := TaskToStatusResponse(task, 3)
	require.Equal(t, "task-1", resp.TaskID)
	require.Equal(t, uint(7), resp.ProjectID)
	require.Equal(t, domain.TaskStatusAnalyzingDocs, resp.Status)
	require.Equal(t, 66, resp.Progress)
	require.Len(t, resp.PartialResult, 2)
}

func TestTaskToStatusResponseCompleted(t *testing.T) {
	task := &domain.AnalysisTask{
		ID:     "task-1",
		Status: domain.TaskStatusCompleted,
		Stages: domain.JSONB{
			"code":       map[string]interface{}{},
			"deployment": map[string]interface{}{},
			"docs":       map[string]interface{}{},
		},
	}

	resp := TaskToStatusResponse(task, 3)
	require.Equal(t, 100, resp.Progress)
}

func TestTaskToStatusResponseFailedKeepsPartialProgress(t *testing.T) {
	task := &domain.AnalysisTask{
		ID:     "task-1",
		Status: domain.TaskStatusFailed,
		Error:  "deployment stage: boom",
		Stages: domain.JSONB{"code": map[string]interface{}{}},
	}

	resp := TaskToStatusResponse(task, 3)
	require.Equal(t, 33, resp.Progress)
	require.Equal(t, "deployment stage: boom", resp.Error)
}

func TestTaskToStatusResponseQueued(t *testing.T) {
	task := &domain.AnalysisTask{
		ID:     "task-1",
		Status: domain.TaskStatusQueued,
		Stages: make(domain.JSONB),
	}

	resp := TaskToStatusResponse(task, 3)
	require.Zero(t, resp.Progress)

	// A zero pipeline length must not divide by zero.
	resp = TaskToStatusResponse(task, 0)
	require.Zero(t, resp.Progress)
}

func TestTasksToStatusResponse(t *testing.T) {
	tasks := []domain.AnalysisTask{
		{ID: "a", Status: domain.TaskStatusQueued, Stages: make(domain.JSONB)},
		{ID: "b", Status: domain.TaskStatusCompleted, Stages: make(domain.JSONB)},
	}
	responses := TasksToStatusResponse(tasks, 3)
	require.Len(t, responses, 2)
	require.Equal(t, "a", responses[0].TaskID)
	require.Equal(t, 100, responses[1].Progress)
}
