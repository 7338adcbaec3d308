package ports

import (
	"context"

	"github.com/codelens/backend/internal/domain"
)

type ProjectService interface {
	CreateProject(ctx context.Context, input CreateProjectInput) (*domain.Project, error)
	GetProjects(ctx context.Context) ([]domain.Project, error)
	GetProjectByID(ctx context.Context, id uint) (*domain.Project, error)
	DeleteProject(ctx context.Context, id uint) error
	// SyncProject re-pulls the tree of a remote-sourced project.
	SyncProject(ctx context.Context, id uint) (*domain.Project, error)
}

type CreateProjectInput struct {
	Name        string
	Path        string
	Description string
	Remote      *RemoteSourceInput
}

type RemoteSourceInput struct {
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey string
	Path       string
}

type AnalysisService interface {
	// StartAnalysis validates the project, inserts a queued task and launches
	// its runner goroutine. Returns the task id immediately.
	StartAnalysis(ctx context.Context, projectID uint) (string, error)
	GetTask(ctx context.Context, taskID string) (*domain.AnalysisTask, error)
	GetProjectTasks(ctx context.Context, projectID uint) ([]domain.AnalysisTask, error)
	// RecoverInterrupted fails tasks a previous process left mid-flight.
	RecoverInterrupted(ctx context.Context) (int64, error)
}

// Analyzer is one stage of the deep-analysis pipeline. Implementations must
// honor ctx cancellation; the runner bounds every invocation with a timeout.
type Analyzer interface {
	Stage() domain.AnalysisStage
	Analyze(ctx context.Context, project *domain.Project) (domain.JSONB, error)
}
