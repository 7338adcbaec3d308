package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/core/services"
	"github.com/codelens/backend/internal/infrastructure/logger"
	"github.com/codelens/backend/internal/transport/http/dto"
)

type AnalysisHandler struct {
	service     ports.AnalysisService
	logger      *logger.Logger
	totalStages int
}

func NewAnalysisHandler(service ports.AnalysisService, logger *logger.Logger, totalStages int) *AnalysisHandler {
	return &AnalysisHandler{
		service:     service,
		logger:      logger,
		totalStages: totalStages,
	}
}

// StartDeepAnalysis enqueues an analysis task and returns its id immediately.
func (h *AnalysisHandler) StartDeepAnalysis(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		h.logger.Warnw("analysis_start_invalid_id")
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid project id",
		})
	}

	h.logger.Infow("analysis_start_request", "project_id", id)
	taskID, err := h.service.StartAnalysis(c.Context(), uint(id))
	if err != nil {
		if err == services.ErrProjectNotFound {
			h.logger.Warnw("analysis_start_project_not_found", "project_id", id)
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "project not found",
			})
		}
		h.logger.Errorw("analysis_start_failed", "project_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	h.logger.Infow("analysis_start_accepted", "project_id", id, "task_id", taskID)
	return c.Status(fiber.StatusAccepted).JSON(dto.EnqueueAnalysisResponse{
		TaskID: taskID,
	})
}

// GetTaskStatus serves the polling endpoint with the last committed state.
func (h *AnalysisHandler) GetTaskStatus(c *fiber.Ctx) error {
	taskID := c.Params("id")
	if taskID == "" {
		h.logger.Warnw("task_status_missing_id")
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "task id is required",
		})
	}

	task, err := h.service.GetTask(c.Context(), taskID)
	if err != nil {
		if err == services.ErrTaskNotFound {
			h.logger.Warnw("task_status_not_found", "task_id", taskID)
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "task not found",
			})
		}
		h.logger.Errorw("task_status_failed", "task_id", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(dto.TaskToStatusResponse(task, h.totalStages))
}

// GetProjectTasks lists a project's analysis history, newest first.
func (h *AnalysisHandler) GetProjectTasks(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		h.logger.Warnw("project_tasks_invalid_id")
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid project id",
		})
	}

	tasks, err := h.service.GetProjectTasks(c.Context(), uint(id))
	if err != nil {
		if err == services.ErrProjectNotFound {
			h.logger.Warnw("project_tasks_not_found", "project_id", id)
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "project not found",
			})
		}
		h.logger.Errorw("project_tasks_failed", "project_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(dto.TasksToStatusResponse(tasks, h.totalStages))
}
