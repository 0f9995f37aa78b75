// Package http provides the HTTP server for the chat orchestrator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/naavyaberiwal-glitch/myAI3/internal/orchestrator"
)

// NewServer creates and configures the chat HTTP server.
func NewServer(orch *orchestrator.Orchestrator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := NewHandler(orch)
	h.RegisterRoutes(e)

	return e
}
