package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/core/services"
	"github.com/codelens/backend/internal/infrastructure/logger"
	"github.com/codelens/backend/internal/transport/http/dto"
)

type ProjectHandler struct {
	service ports.ProjectService
	logger  *logger.Logger
}

func NewProjectHandler(service ports.ProjectService, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{service: service, logger: logger}
}

func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	var req dto.CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("project_create_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if details := req.Validate(); len(details) > 0 {
		h.logger.Warnw("project_create_validation_failed", "details", details)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: details,
		})
	}

	input := ports.CreateProjectInput{
		Name:        req.Name,
		Path:        req.Path,
		Description: req.Description,
	}
	if req.Remote != nil {
		input.Remote = &ports.RemoteSourceInput{
			Host:       req.Remote.Host,
			Port:       req.Remote.GetPort(),
			User:       req.Remote.Username,
			Password:   req.Remote.Password,
			PrivateKey: req.Remote.PrivateKey,
			Path:       req.Remote.Path,
		}
	}

	h.logger.Infow("project_create_request", "name", req.Name, "remote", req.Remote != nil)
	project, err := h.service.CreateProject(c.Context(), input)
	if err != nil {
		if err == services.ErrProjectAlreadyExists {
			h.logger.Warnw("project_create_conflict", "name", req.Name)
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: "project with this name already exists",
			})
		}
		if err == services.ErrProjectInvalidInput || err == services.ErrProjectPathMissing {
			h.logger.Warnw("project_create_bad_request", "name", req.Name, "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
		if errors.Is(err, services.ErrProjectImportFailed) {
			h.logger.Errorw("project_create_import_failed", "name", req.Name, "error", err)
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
		h.logger.Errorw("project_create_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	h.logger.Infow("project_create_success", "id", project.ID, "name", project.Name)
	return c.Status(fiber.StatusCreated).JSON(dto.ProjectToResponse(project))
}

func (h *ProjectHandler) GetProjects(c *fiber.Ctx) error {
	projects, err := h.service.GetProjects(c.Context())
	if err != nil {
		h.logger.Errorw("projects_list_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(dto.ProjectsToResponse(projects))
}

func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		h.logger.Warnw("project_get_invalid_id")
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid project id",
		})
	}

	project, err := h.service.GetProjectByID(c.Context(), uint(id))
	if err != nil {
		if err == services.ErrProjectNotFound {
			h.logger.Warnw("project_get_not_found", "id", id)
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "project not found",
			})
		}
		h.logger.Errorw("project_get_failed", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(dto.ProjectToResponse(project))
}

func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		h.logger.Warnw("project_delete_invalid_id")
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid project id",
		})
	}

	h.logger.Infow("project_delete_request", "id", id)
	if err := h.service.DeleteProject(c.Context(), uint(id)); err != nil {
		if err == services.ErrProjectNotFound {
			h.logger.Warnw("project_delete_not_found", "id", id)
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "project not found",
			})
		}
		h.logger.Errorw("project_delete_failed", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	h.logger.Infow("project_delete_success", "id", id)
	return c.JSON(dto.SuccessResponse{
		Message: "project deleted successfully",
	})
}

func (h *ProjectHandler) SyncProject(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		h.logger.Warnw("project_sync_invalid_id")
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid project id",
		})
	}

	h.logger.Infow("project_sync_request", "id", id)
	project, err := h.service.SyncProject(c.Context(), uint(id))
	if err != nil {
		if err == services.ErrProjectNotFound {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "project not found",
			})
		}
		if err == services.ErrProjectNotRemote {
			h.logger.Warnw("project_sync_not_remote", "id", id)
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
		if errors.Is(err, services.ErrProjectImportFailed) {
			h.logger.Errorw("project_sync_import_failed", "id", id, "error", err)
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
		h.logger.Errorw("project_sync_failed", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	h.logger.Infow("project_sync_success", "id", id)
	return c.JSON(dto.ProjectToResponse(project))
}
