package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
	"github.com/codelens/backend/internal/infrastructure/logger"
)

const defaultStageTimeout = 2 * time.Minute

type analysisService struct {
	taskRepo     ports.TaskRepository
	projectRepo  ports.ProjectRepository
	broadcaster  *Broadcaster
	analyzers    []ports.Analyzer
	log          *logger.Logger
	stageTimeout time.Duration
}

type AnalysisServiceConfig struct {
	TaskRepo     ports.TaskRepository
	ProjectRepo  ports.ProjectRepository
	Broadcaster  *Broadcaster
	Analyzers    []ports.Analyzer
	Logger       *logger.Logger
	StageTimeout time.Duration
}

func NewAnalysisService(cfg AnalysisServiceConfig) ports.AnalysisService {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = defaultStageTimeout
	}
	return &analysisService{
		taskRepo:     cfg.TaskRepo,
		projectRepo:  cfg.ProjectRepo,
		broadcaster:  cfg.Broadcaster,
		analyzers:    cfg.Analyzers,
		log:          cfg.Logger,
		stageTimeout: cfg.StageTimeout,
	}
}

// ==================== Public API ====================

func (s *analysisService) StartAnalysis(ctx context.Context, projectID uint) (string, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrProjectNotFound
		}
		return "", err
	}
	if len(s.analyzers) == 0 {
		return "", ErrNoAnalyzers
	}

	task := &domain.AnalysisTask{
		ID:        uuid.New().String(),
		Status:    domain.TaskStatusQueued,
		Stages:    make(domain.JSONB),
		ProjectID: project.ID,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return "", err
	}

	s.log.Infow("analysis_enqueued",
		"task_id", task.ID,
		"project_id", project.ID,
		"stages", len(s.analyzers),
	)

	go s.run(task, project)

	return task.ID, nil
}

func (s *analysisService) GetTask(ctx context.Context, taskID string) (*domain.AnalysisTask, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *analysisService) GetProjectTasks(ctx context.Context, projectID uint) ([]domain.AnalysisTask, error) {
	if _, err := s.projectRepo.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return s.taskRepo.GetByProjectID(ctx, projectID)
}

func (s *analysisService) RecoverInterrupted(ctx context.Context) (int64, error) {
	count, err := s.taskRepo.FailRunning(ctx, "interrupted by server restart")
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Warnw("analysis_recovered_interrupted", "count", count)
	}
	return count, nil
}

// ==================== Runner ====================

// run drives one task through the fixed stage pipeline. It owns the task row
// and the per-task sequence counter; nothing else writes either. The runner
// is detached from any request context on purpose: subscriber disconnects
// must never cancel an analysis.
func (s *analysisService) run(task *domain.AnalysisTask, project *domain.Project) {
	ctx := context.Background()
	var seq uint64
	total := len(s.analyzers)

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("analysis_runner_panic", "task_id", task.ID, "panic", r)
			seq++
			s.finish(ctx, task, seq, fmt.Errorf("%w: %v", ErrStagePanicked, r))
		}
	}()

	for i, analyzer := range s.analyzers {
		stage := analyzer.Stage()

		// Persist the stage status before announcing it, so a poll racing the
		// event can never be ahead of the store.
		if err := s.taskRepo.Update(ctx, task.ID, stage.Status(), task.Stages, ""); err != nil {
			s.log.Errorw("analysis_persist_failed", "task_id", task.ID, "stage", stage, "error", err)
			seq++
			s.finish(ctx, task, seq, fmt.Errorf("persisting %s stage: %w", stage, err))
			return
		}

		seq++
		s.broadcaster.Publish(domain.ProgressEvent{
			TaskID:    task.ID,
			Seq:       seq,
			Type:      domain.ProgressStageStarted,
			Stage:     stage,
			Progress:  i * 100 / total,
			Message:   fmt.Sprintf("%s analysis started", stage),
			Timestamp: time.Now(),
		})
		s.log.Infow("analysis_stage_start", "task_id", task.ID, "stage", stage)

		started := time.Now()
		result, err := s.runStage(analyzer, project)
		if err != nil {
			s.log.Errorw("analysis_stage_failed",
				"task_id", task.ID,
				"stage", stage,
				"duration", time.Since(started).Round(time.Millisecond).String(),
				"error", err,
			)
			seq++
			s.finish(ctx, task, seq, fmt.Errorf("%s stage: %w", stage, err))
			return
		}

		task.Stages[string(stage)] = map[string]interface{}(result)
		if err := s.taskRepo.Update(ctx, task.ID, stage.Status(), task.Stages, ""); err != nil {
			s.log.Errorw("analysis_persist_failed", "task_id", task.ID, "stage", stage, "error", err)
			seq++
			s.finish(ctx, task, seq, fmt.Errorf("persisting %s result: %w", stage, err))
			return
		}

		seq++
		s.broadcaster.Publish(domain.ProgressEvent{
			TaskID:    task.ID,
			Seq:       seq,
			Type:      domain.ProgressStageCompleted,
			Stage:     stage,
			Progress:  (i + 1) * 100 / total,
			Message:   fmt.Sprintf("%s analysis completed", stage),
			Result:    result,
			Timestamp: time.Now(),
		})
		s.log.Infow("analysis_stage_done",
			"task_id", task.ID,
			"stage", stage,
			"duration", time.Since(started).Round(time.Millisecond).String(),
		)
	}

	seq++
	s.finish(ctx, task, seq, nil)
}

// runStage invokes one analyzer under the stage timeout. The analyzer runs in
// its own goroutine behind a done channel, so even an implementation that
// ignores ctx cancellation cannot hold the pipeline past the deadline.
func (s *analysisService) runStage(analyzer ports.Analyzer, project *domain.Project) (domain.JSONB, error) {
	stageCtx, cancel := context.WithTimeout(context.Background(), s.stageTimeout)
	defer cancel()

	type outcome struct {
		result domain.JSONB
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrStagePanicked, r)}
			}
		}()
		result, err := analyzer.Analyze(stageCtx, project)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-stageCtx.Done():
		return nil, fmt.Errorf("%w after %s", ErrStageTimeout, s.stageTimeout)
	case out := <-done:
		return out.result, out.err
	}
}

// finish writes the terminal state, publishes the terminal event and closes
// the task's topic. A nil cause means completion.
func (s *analysisService) finish(ctx context.Context, task *domain.AnalysisTask, seq uint64, cause error) {
	event := domain.ProgressEvent{
		TaskID:    task.ID,
		Seq:       seq,
		Progress:  len(task.Stages) * 100 / len(s.analyzers),
		Timestamp: time.Now(),
	}

	if cause == nil {
		event.Type = domain.ProgressCompleted
		event.Progress = 100
		event.Message = "Analysis completed"
		event.Result = task.Stages
		if err := s.taskRepo.Update(ctx, task.ID, domain.TaskStatusCompleted, task.Stages, ""); err != nil {
			s.log.Errorw("analysis_persist_failed", "task_id", task.ID, "error", err)
		}
		s.log.Infow("analysis_completed", "task_id", task.ID, "stages", len(task.Stages))
	} else {
		event.Type = domain.ProgressFailed
		event.Message = "Analysis failed"
		event.Error = cause.Error()
		if err := s.taskRepo.Update(ctx, task.ID, domain.TaskStatusFailed, task.Stages, cause.Error()); err != nil {
			s.log.Errorw("analysis_persist_failed", "task_id", task.ID, "error", err)
		}
		s.log.Warnw("analysis_failed", "task_id", task.ID, "error", cause)
	}

	s.broadcaster.Publish(event)
	s.broadcaster.CloseTask(task.ID)
}
