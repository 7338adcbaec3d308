package services

import (
	"context"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
)

// StatsOverview is the dashboard landing-page aggregate.
type StatsOverview struct {
	Projects int64
	Tasks    map[domain.TaskStatus]int64
}

// StatsService aggregates counts for the dashboard overview.
type StatsService struct {
	projectRepo ports.ProjectRepository
	taskRepo    ports.TaskRepository
}

func NewStatsService(projectRepo ports.ProjectRepository, taskRepo ports.TaskRepository) *StatsService {
	return &StatsService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
	}
}

func (s *StatsService) Overview(ctx context.Context) (*StatsOverview, error) {
	projects, err := s.projectRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsOverview{Projects: projects, Tasks: tasks}, nil
}
