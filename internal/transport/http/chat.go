package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/naavyaberiwal-glitch/myAI3/internal/domain"
	"github.com/naavyaberiwal-glitch/myAI3/internal/orchestrator"
)

// Handler handles chat HTTP requests.
type Handler struct {
	orch *orchestrator.Orchestrator
}

// NewHandler creates a new handler.
func NewHandler(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/chat", h.Chat)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// Chat runs one streaming turn over the submitted history.
// POST /v1/chat
//
// The response is a single SSE stream; each stream event is written as an
// event/data pair and flushed immediately so partial text and in-flight tool
// activity render without waiting for the whole turn. Client disconnect
// cancels the underlying request context, which cancels the turn.
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "messages is required"})
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming not supported")
	}

	ctx := c.Request().Context()

	err := h.orch.Run(ctx, req.Messages, func(ev domain.StreamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Response().Writer, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		log.Printf("ERROR: turn failed: %v", err)
		// Best effort: the stream may already be broken.
		ev := domain.StreamEvent{Type: domain.EventTypeError, Error: err.Error()}
		if data, mErr := json.Marshal(ev); mErr == nil {
			fmt.Fprintf(c.Response().Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}

	return nil
}
