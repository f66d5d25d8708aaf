package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct{}

func (h *HealthHandler) Register(g *echo.Group) {
	g.GET("/live", h.live)
	g.GET("/ready", h.ready)
}

func (h *HealthHandler) live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthHandler) ready(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
