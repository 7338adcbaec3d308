package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/codelens/backend/internal/config"
	"github.com/codelens/backend/internal/core/analyzers"
	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/core/services"
	"github.com/codelens/backend/internal/infrastructure/db"
	"github.com/codelens/backend/internal/infrastructure/logger"
	"github.com/codelens/backend/internal/infrastructure/remote"
	"github.com/codelens/backend/internal/transport/http/handlers"
	httpmw "github.com/codelens/backend/internal/transport/http/middleware"
)

type RouterConfig struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Config *config.Config
}

// Services exposes the long-lived services main drives across the process
// lifecycle: startup reconciliation, retention scheduling, shutdown.
type Services struct {
	Analysis  ports.AnalysisService
	Retention *services.RetentionService
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) *Services {
	// Repositories
	projectRepo := db.NewProjectRepository(cfg.DB, cfg.Logger)
	taskRepo := db.NewTaskRepository(cfg.DB, cfg.Logger)

	// Analyzer pipeline in its fixed stage order
	pipeline := analyzers.BuildPipeline(cfg.Config.Analysis, cfg.Config.Workspace.Root, cfg.Logger)

	// Services
	broadcaster := services.NewBroadcaster(cfg.Logger, cfg.Config.Analysis.EventBuffer)

	projectService := services.NewProjectService(services.ProjectServiceConfig{
		Repository:    projectRepo,
		Logger:        cfg.Logger,
		WorkspaceRoot: cfg.Config.Workspace.Root,
		EncryptionKey: cfg.Config.Security.EncryptionKey,
		ImportLimits: remote.DownloadLimits{
			MaxFileSize: cfg.Config.Workspace.MaxImportFileSize,
			MaxTotal:    cfg.Config.Workspace.MaxImportTotal,
			MaxEntries:  cfg.Config.Workspace.MaxImportEntries,
		},
		EnableLocks: cfg.Config.Features.EnableLocks,
	})

	analysisService := services.NewAnalysisService(services.AnalysisServiceConfig{
		TaskRepo:     taskRepo,
		ProjectRepo:  projectRepo,
		Broadcaster:  broadcaster,
		Analyzers:    pipeline,
		Logger:       cfg.Logger,
		StageTimeout: cfg.Config.Analysis.StageTimeout,
	})

	retentionService := services.NewRetentionService(services.RetentionServiceConfig{
		TaskRepo: taskRepo,
		Logger:   cfg.Logger,
		Schedule: cfg.Config.Retention.Schedule,
		MaxAge:   cfg.Config.Retention.MaxAge,
	})

	statsService := services.NewStatsService(projectRepo, taskRepo)

	// Handlers
	projectHandler := handlers.NewProjectHandler(projectService, cfg.Logger)
	analysisHandler := handlers.NewAnalysisHandler(analysisService, cfg.Logger, len(pipeline))
	streamHandler := handlers.NewStreamHandler(analysisService, broadcaster, cfg.Logger, len(pipeline))
	statsHandler := handlers.NewStatsHandler(statsService, cfg.Logger)

	// WebSocket routes: reject plain HTTP on /ws before any handler runs
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws/analysis/:id", streamHandler.HandleAnalysisStream())

	// API v1 routes
	api := app.Group("/api/v1")

	projects := api.Group("/projects", httpmw.AdminAuth(cfg.Config))
	projects.Post("/", projectHandler.CreateProject)
	projects.Get("/", projectHandler.GetProjects)
	projects.Get("/:id", projectHandler.GetProject)
	projects.Delete("/:id", projectHandler.DeleteProject)
	projects.Post("/:id/sync", projectHandler.SyncProject)
	projects.Post("/:id/deep-analysis", analysisHandler.StartDeepAnalysis)
	projects.Get("/:id/analyses", analysisHandler.GetProjectTasks)

	analysis := api.Group("/analysis", httpmw.AdminAuth(cfg.Config))
	analysis.Get("/:id/status", analysisHandler.GetTaskStatus)

	api.Get("/stats", httpmw.AdminAuth(cfg.Config), statsHandler.GetStats)

	return &Services{
		Analysis:  analysisService,
		Retention: retentionService,
	}
}
