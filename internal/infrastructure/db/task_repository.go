package db

import (
	"context"
	"time"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
	"github.com/codelens/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type taskRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepository(db *gorm.DB, log *logger.Logger) ports.TaskRepository {
	return &taskRepository{db: db, log: log}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.AnalysisTask) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		r.log.Errorw("task_repo_create_failed", "task_id", task.ID, "project_id", task.ProjectID, "error", err)
		return err
	}
	r.log.Infow("task_repo_create_ok", "task_id", task.ID, "project_id", task.ProjectID)
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisTask, error) {
	var task domain.AnalysisTask
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		r.log.Warnw("task_repo_get_failed", "task_id", id, "error", err)
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) GetByProjectID(ctx context.Context, projectID uint) ([]domain.AnalysisTask, error) {
	var tasks []domain.AnalysisTask
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Limit(50).
		Find(&tasks).Error
	if err != nil {
		r.log.Errorw("task_repo_list_by_project_failed", "project_id", projectID, "error", err)
		return nil, err
	}
	return tasks, nil
}

// Update writes status, stage results and error detail in one immediate
// UPDATE so concurrent status polls always observe the latest committed
// state. An unknown id comes back as gorm.ErrRecordNotFound.
func (r *taskRepository) Update(ctx context.Context, id string, status domain.TaskStatus, stages domain.JSONB, errDetail string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.AnalysisTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": status,
			"stages": stages,
			"error":  errDetail,
		})
	if res.Error != nil {
		r.log.Errorw("task_repo_update_failed", "task_id", id, "status", status, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warnw("task_repo_update_missing", "task_id", id)
		return gorm.ErrRecordNotFound
	}
	r.log.Infow("task_repo_update_ok", "task_id", id, "status", status)
	return nil
}

func (r *taskRepository) FailRunning(ctx context.Context, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.AnalysisTask{}).
		Where("status NOT IN ?", []domain.TaskStatus{domain.TaskStatusCompleted, domain.TaskStatusFailed}).
		Updates(map[string]interface{}{
			"status": domain.TaskStatusFailed,
			"error":  reason,
		})
	if res.Error != nil {
		r.log.Errorw("task_repo_fail_running_failed", "error", res.Error)
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Warnw("task_repo_fail_running_ok", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func (r *taskRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ?", []domain.TaskStatus{domain.TaskStatusCompleted, domain.TaskStatusFailed}).
		Where("updated_at < ?", cutoff).
		Delete(&domain.AnalysisTask{})
	if res.Error != nil {
		r.log.Errorw("task_repo_delete_terminal_failed", "error", res.Error)
		return 0, res.Error
	}
	r.log.Infow("task_repo_delete_terminal_ok", "count", res.RowsAffected, "cutoff", cutoff)
	return res.RowsAffected, nil
}

func (r *taskRepository) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	type statusCount struct {
		Status domain.TaskStatus
		Count  int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&domain.AnalysisTask{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		r.log.Errorw("task_repo_count_by_status_failed", "error", err)
		return nil, err
	}

	counts := make(map[domain.TaskStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
