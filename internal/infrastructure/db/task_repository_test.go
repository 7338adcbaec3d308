package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
	"github.com/codelens/backend/internal/infrastructure/logger"
)

func seedProject(t *testing.T, database *gorm.DB, name string) *domain.Project {
	t.Helper()
	project := &domain.Project{Name: name, Path: "imports/" + name}
	require.NoError(t, NewProjectRepository(database, logger.NewNop()).Create(context.Background(), project))
	return project
}

func seedTask(t *testing.T, repo ports.TaskRepository, projectID uint, status domain.TaskStatus) *domain.AnalysisTask {
	t.Helper()
	task := &domain.AnalysisTask{
		ID:        uuid.New().String(),
		Status:    status,
		Stages:    make(domain.JSONB),
		ProjectID: projectID,
	}
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}

func TestTaskRepositoryCreateAndGet(t *testing.T) {
	database := newTestDB(t)
	project := seedProject(t, database, "demo")
	repo := NewTaskRepository(database, logger.NewNop())
	ctx := context.Background()

	task := seedTask(t, repo, project.ID, domain.TaskStatusQueued)

	loaded, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, task.ID, loaded.ID)
	require.Equal(t, domain.TaskStatusQueued, loaded.Status)
	require.Equal(t, project.ID, loaded.ProjectID)

	_, err = repo.GetByID(ctx, uuid.New().String())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskRepositoryUpdatePersistsStages(t *testing.T) {
	database := newTestDB(t)
	project := seedProject(t, database, "demo")
	repo := NewTaskRepository(database, logger.NewNop())
	ctx := context.Background()

	task := seedTask(t, repo, project.ID, domain.TaskStatusQueued)

	stages := domain.JSONB{
		"code": map[string]interface{}{"total_files": float64(12), "truncated": false},
	}
	require.NoError(t, repo.Update(ctx, task.ID, domain.TaskStatusAnalyzingDeployment, stages, ""))

	loaded, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusAnalyzingDeployment, loaded.Status)
	require.Empty(t, loaded.Error)

	// Stage payloads survive the jsonb round trip.
	code, ok := loaded.Stages["code"].(map[string]interface{})
	require.True(t, ok, "stages: %#v", loaded.Stages)
	require.Equal(t, float64(12), code["total_files"])
	require.Equal(t, false, code["truncated"])

	require.NoError(t, repo.Update(ctx, task.ID, domain.TaskStatusFailed, stages, "docs stage: boom"))
	failed, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusFailed, failed.Status)
	require.Equal(t, "docs stage: boom", failed.Error)
}

func TestTaskRepositoryUpdateUnknownID(t *testing.T) {
	database := newTestDB(t)
	repo := NewTaskRepository(database, logger.NewNop())

	err := repo.Update(context.Background(), uuid.New().String(), domain.TaskStatusCompleted, nil, "")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskRepositoryGetByProjectID(t *testing.T) {
	database := newTestDB(t)
	alpha := seedProject(t, database, "alpha")
	beta := seedProject(t, database, "beta")
	repo := NewTaskRepository(database, logger.NewNop())
	ctx := context.Background()

	seedTask(t, repo, alpha.ID, domain.TaskStatusCompleted)
	seedTask(t, repo, alpha.ID, domain.TaskStatusFailed)
	seedTask(t, repo, beta.ID, domain.TaskStatusQueued)

	tasks, err := repo.GetByProjectID(ctx, alpha.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		require.Equal(t, alpha.ID, task.ProjectID)
	}

	tasks, err = repo.GetByProjectID(ctx, beta.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	tasks, err = repo.GetByProjectID(ctx, 9999)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestTaskRepositoryFailRunning(t *testing.T) {
	database := newTestDB(t)
	project := seedProject(t, database, "demo")
	repo := NewTaskRepository(database, logger.NewNop())
	ctx := context.Background()

	queued := seedTask(t, repo, project.ID, domain.TaskStatusQueued)
	running := seedTask(t, repo, project.ID, domain.TaskStatusAnalyzingDocs)
	completed := seedTask(t, repo, project.ID, domain.TaskStatusCompleted)

	count, err := repo.FailRunning(ctx, "interrupted by server restart")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	for _, id := range []string{queued.ID, running.ID} {
		task, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.TaskStatusFailed, task.Status)
		require.Equal(t, "interrupted by server restart", task.Error)
	}

	untouched, err := repo.GetByID(ctx, completed.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusCompleted, untouched.Status)
	require.Empty(t, untouched.Error)

	// Idempotent: a second boot with a clean table changes nothing.
	count, err = repo.FailRunning(ctx, "interrupted by server restart")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestTaskRepositoryDeleteTerminalBefore(t *testing.T) {
	database := newTestDB(t)
	project := seedProject(t, database, "demo")
	repo := NewTaskRepository(database, logger.NewNop())
	ctx := context.Background()

	oldCompleted := seedTask(t, repo, project.ID, domain.TaskStatusCompleted)
	oldFailed := seedTask(t, repo, project.ID, domain.TaskStatusFailed)
	oldRunning := seedTask(t, repo, project.ID, domain.TaskStatusAnalyzingCode)
	freshCompleted := seedTask(t, repo, project.ID, domain.TaskStatusCompleted)

	stale := time.Now().Add(-48 * time.Hour)
	for _, id := range []string{oldCompleted.ID, oldFailed.ID, oldRunning.ID} {
		require.NoError(t, database.Model(&domain.AnalysisTask{}).
			Where("id = ?", id).
			Update("updated_at", stale).Error)
	}

	count, err := repo.DeleteTerminalBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	_, err = repo.GetByID(ctx, oldCompleted.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.GetByID(ctx, oldFailed.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Old but still running is never reaped; fresh terminal rows stay.
	_, err = repo.GetByID(ctx, oldRunning.ID)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, freshCompleted.ID)
	require.NoError(t, err)
}

func TestTaskRepositoryCountByStatus(t *testing.T) {
	database := newTestDB(t)
	project := seedProject(t, database, "demo")
	repo := NewTaskRepository(database, logger.NewNop())
	ctx := context.Background()

	seedTask(t, repo, project.ID, domain.TaskStatusCompleted)
	seedTask(t, repo, project.ID, domain.TaskStatusCompleted)
	seedTask(t, repo, project.ID, domain.TaskStatusFailed)
	seedTask(t, repo, project.ID, domain.TaskStatusAnalyzingLLM)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, counts[domain.TaskStatusCompleted])
	require.EqualValues(t, 1, counts[domain.TaskStatusFailed])
	require.EqualValues(t, 1, counts[domain.TaskStatusAnalyzingLLM])
	require.NotContains(t, counts, domain.TaskStatusQueued)
}
