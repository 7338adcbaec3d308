package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codelens/backend/internal/core/services"
	"github.com/codelens/backend/internal/infrastructure/logger"
	"github.com/codelens/backend/internal/transport/http/dto"
)

type StatsHandler struct {
	stats  *services.StatsService
	logger *logger.Logger
}

func NewStatsHandler(stats *services.StatsService, logger *logger.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	overview, err := h.stats.Overview(c.Context())
	if err != nil {
		h.logger.Errorw("stats_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	tasks := make(map[string]int64, len(overview.Tasks))
	var total int64
	for status, count := range overview.Tasks {
		tasks[string(status)] = count
		total += count
	}

	return c.JSON(dto.StatsResponse{
		Projects:   overview.Projects,
		Tasks:      tasks,
		TasksTotal: total,
	})
}
