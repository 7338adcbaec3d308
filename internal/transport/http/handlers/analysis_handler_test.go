package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/core/services"
	"github.com/codelens/backend/internal/domain"
	"github.com/codelens/backend/internal/infrastructure/logger"
	"github.com/codelens/backend/internal/transport/http/dto"
)

// stubAnalysisService scripts the service layer so handler tests only
// exercise transport concerns.
type stubAnalysisService struct {
	startFn func(ctx context.Context, projectID uint) (string, error)
	getFn   func(ctx context.Context, taskID string) (*domain.AnalysisTask, error)
	listFn  func(ctx context.Context, projectID uint) ([]domain.AnalysisTask, error)
}

func (s *stubAnalysisService) StartAnalysis(ctx context.Context, projectID uint) (string, error) {
	return s.startFn(ctx, projectID)
}

func (s *stubAnalysisService) GetTask(ctx context.Context, taskID string) (*domain.AnalysisTask, error) {
	return s.getFn(ctx, taskID)
}

func (s *stubAnalysisService) GetProjectTasks(ctx context.Context, projectID uint) ([]domain.AnalysisTask, error) {
	return s.listFn(ctx, projectID)
}

func (s *stubAnalysisService) RecoverInterrupted(context.Context) (int64, error) {
	return 0, nil
}

var _ ports.AnalysisService = (*stubAnalysisService)(nil)

func newAnalysisTestApp(svc ports.AnalysisService) *fiber.App {
	app := fiber.New()
	handler := NewAnalysisHandler(svc, logger.NewNop(), 3)
	app.Post("/api/v1/projects/:id/deep-analysis", handler.StartDeepAnalysis)
	app.Get("/api/v1/projects/:id/analyses", handler.GetProjectTasks)
	app.Get("/api/v1/analysis/:id/status", handler.GetTaskStatus)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStartDeepAnalysisAccepted(t *testing.T) {
	svc := &stubAnalysisService{
		startFn: func(_ context.Context, projectID uint) (string, error) {
			require.Equal(t, uint(7), projectID)
			return "task-123", nil
		},
	}
	app := newAnalysisTestApp(svc)

	resp := doRequest(t, app, fiber.MethodPost, "/api/v1/projects/7/deep-analysis", nil)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var body dto.EnqueueAnalysisResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "task-123", body.TaskID)
}

func TestStartDeepAnalysisUnknownProject(t *testing.T) {
	svc := &stubAnalysisService{
		startFn: func(context.Context, uint) (string, error) {
			return "", services.ErrProjectNotFound
		},
	}
	app := newAnalysisTestApp(svc)

	resp := doRequest(t, app, fiber.MethodPost, "/api/v1/projects/999/deep-analysis", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestStartDeepAnalysisInvalidID(t *testing.T) {
	app := newAnalysisTestApp(&stubAnalysisService{})

	resp := doRequest(t, app, fiber.MethodPost, "/api/v1/projects/not-a-number/deep-analysis", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStartDeepAnalysisServiceError(t *testing.T) {
	svc := &stubAnalysisService{
		startFn: func(context.Context, uint) (string, error) {
			return "", errors.New("insert failed")
		},
	}
	app := newAnalysisTestApp(svc)

	resp := doRequest(t, app, fiber.MethodPost, "/api/v1/projects/1/deep-analysis", nil)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestGetTaskStatus(t *testing.T) {
	svc := &stubAnalysisService{
		getFn: func(_ context.Context, taskID string) (*domain.AnalysisTask, error) {
			require.Equal(t, "task-123", taskID)
			return &domain.AnalysisTask{
				ID:        "task-123",
				ProjectID: 7,
				Status:    domain.TaskStatusAnalyzingDocs,
				Stages: domain.JSONB{
					"code":       map[string]interface{}{"total_files": float64(12)},
					"deployment": map[string]interface{}{"detected": true},
				},
			}, nil
		},
	}
	app := newAnalysisTestApp(svc)

	resp := doRequest(t, app, fiber.MethodGet, "/api/v1/analysis/task-123/status", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body dto.TaskStatusResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "task-123", body.TaskID)
	require.Equal(t, domain.TaskStatusAnalyzingDocs, body.Status)
	require.Equal(t, 66, body.Progress)
	require.Contains(t, body.PartialResult, "code")
	require.Contains(t, body.PartialResult, "deployment")
	require.Empty(t, body.Error)
}

func TestGetTaskStatusNotFound(t *testing.T) {
	svc := &stubAnalysisService{
		getFn: func(context.Context, string) (*domain.AnalysisTask, error) {
			return nil, services.ErrTaskNotFound
		},
	}
	app := newAnalysisTestApp(svc)

	resp := doRequest(t, app, fiber.MethodGet, "/api/v1/analysis/ghost/status", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body dto.ErrorResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "task not found", body.Error)
}

func TestGetProjectTasksHistory(t *testing.T) {
	svc := &stubAnalysisService{
		listFn: func(_ context.Context, projectID uint) ([]domain.AnalysisTask, error) {
			require.Equal(t, uint(7), projectID)
			return []domain.AnalysisTask{
				{ID: "newer", Status: domain.TaskStatusCompleted, ProjectID: 7, Stages: make(domain.JSONB)},
				{ID: "older", Status: domain.TaskStatusFailed, ProjectID: 7, Error: "code stage: boom"},
			}, nil
		},
	}
	app := newAnalysisTestApp(svc)

	resp := doRequest(t, app, fiber.MethodGet, "/api/v1/projects/7/analyses", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body []dto.TaskStatusResponse
	decodeBody(t, resp, &body)
	require.Len(t, body, 2)
	require.Equal(t, "newer", body[0].TaskID)
	require.Equal(t, 100, body[0].Progress)
	require.Equal(t, "code stage: boom", body[1].Error)
}

func TestGetProjectTasksUnknownProjectID(t *testing.T) {
	svc := &stubAnalysisService{
		listFn: func(context.Context, uint) ([]domain.AnalysisTask, error) {
			return nil, services.ErrProjectNotFound
		},
	}
	app := newAnalysisTestApp(svc)

	resp := doRequest(t, app, fiber.MethodGet, "/api/v1/projects/999/analyses", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
