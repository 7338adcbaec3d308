package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/infrastructure/logger"
)

// RetentionService deletes terminal analysis tasks older than the configured
// age on a cron schedule. Running tasks are never touched.
type RetentionService struct {
	taskRepo ports.TaskRepository
	log      *logger.Logger
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
}

type RetentionServiceConfig struct {
	TaskRepo ports.TaskRepository
	Logger   *logger.Logger
	Schedule string
	MaxAge   time.Duration
}

func NewRetentionService(cfg RetentionServiceConfig) *RetentionService {
	return &RetentionService{
		taskRepo: cfg.TaskRepo,
		log:      cfg.Logger,
		schedule: cfg.Schedule,
		maxAge:   cfg.MaxAge,
	}
}

// Start schedules the sweep. Fails only when the cron expression is invalid.
func (s *RetentionService) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.runScheduled); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infow("retention_started", "schedule", s.schedule, "max_age", s.maxAge.String())
	return nil
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (s *RetentionService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep deletes terminal tasks older than the retention window and returns
// how many rows went away.
func (s *RetentionService) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.maxAge)
	count, err := s.taskRepo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Infow("retention_sweep_done", "deleted", count, "cutoff", cutoff.Format(time.RFC3339))
	}
	return count, nil
}

func (s *RetentionService) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Errorw("retention_sweep_failed", "error", err)
	}
}
