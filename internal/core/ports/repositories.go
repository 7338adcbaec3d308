package ports

import (
	"context"
	"time"

	"github.com/codelens/backend/internal/domain"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id uint) (*domain.Project, error)
	GetByName(ctx context.Context, name string) (*domain.Project, error)
	GetAll(ctx context.Context) ([]domain.Project, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id uint) error
}

type TaskRepository interface {
	Create(ctx context.Context, task *domain.AnalysisTask) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisTask, error)
	GetByProjectID(ctx context.Context, projectID uint) ([]domain.AnalysisTask, error)
	// Update persists status, accumulated stage results and error detail in a
	// single immediate write; unknown ids surface as gorm.ErrRecordNotFound.
	Update(ctx context.Context, id string, status domain.TaskStatus, stages domain.JSONB, errDetail string) error
	// FailRunning marks every non-terminal task failed with the given reason.
	// Used at boot so no poller is left waiting on a stage nobody is driving.
	FailRunning(ctx context.Context, reason string) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error)
}
