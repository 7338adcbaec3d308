package handlers

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/core/services"
	"github.com/codelens/backend/internal/infrastructure/logger"
	"github.com/codelens/backend/internal/transport/http/dto"
)

const snapshotReadTimeout = 5 * time.Second

type StreamHandler struct {
	analysis    ports.AnalysisService
	broadcaster *services.Broadcaster
	logger      *logger.Logger
	totalStages int
}

func NewStreamHandler(analysis ports.AnalysisService, broadcaster *services.Broadcaster, logger *logger.Logger, totalStages int) *StreamHandler {
	return &StreamHandler{
		analysis:    analysis,
		broadcaster: broadcaster,
		logger:      logger,
		totalStages: totalStages,
	}
}

// HandleAnalysisStream serves one task's progress over a WebSocket: first a
// point-in-time snapshot frame, then events in publish order until the
// terminal event. A client disconnect only detaches the subscriber; the
// analysis itself keeps running.
func (h *StreamHandler) HandleAnalysisStream() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		taskID := c.Params("id")

		// Subscribe before reading the snapshot. An event published on the
		// boundary can then show up in both, but can never be missed.
		sub := h.broadcaster.Subscribe(taskID)
		defer h.broadcaster.Unsubscribe(sub)

		ctx, cancel := context.WithTimeout(context.Background(), snapshotReadTimeout)
		task, err := h.analysis.GetTask(ctx, taskID)
		cancel()
		if err != nil {
			h.logger.Warnw("stream_task_not_found", "task_id", taskID)
			_ = c.WriteJSON(dto.ErrorResponse{Error: "task not found"})
			_ = c.Close()
			return
		}

		snapshot := dto.StreamSnapshot{
			Kind: dto.StreamKindSnapshot,
			Task: dto.TaskToStatusResponse(task, h.totalStages),
		}
		if err := c.WriteJSON(snapshot); err != nil {
			_ = c.Close()
			return
		}

		h.logger.Infow("stream_attached", "task_id", taskID, "status", task.Status)

		if task.Status.Terminal() {
			_ = c.Close()
			return
		}

		// Drain client reads so a disconnect is noticed; inbound payloads
		// are ignored.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				h.logger.Infow("stream_client_gone", "task_id", taskID)
				return
			case event, ok := <-sub.Events():
				if !ok {
					_ = c.Close()
					return
				}
				if err := c.WriteJSON(dto.StreamEvent{Kind: dto.StreamKindEvent, Event: event}); err != nil {
					h.logger.Warnw("stream_write_failed", "task_id", taskID, "error", err)
					return
				}
				if event.Terminal() {
					h.logger.Infow("stream_finished", "task_id", taskID, "type", event.Type)
					_ = c.Close()
					return
				}
			}
		}
	})
}
