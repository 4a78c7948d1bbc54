package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mall-admin/internal/store"
)

// Health is the liveness probe.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// HealthHandler serves the readiness probe.
type HealthHandler struct {
	store store.Store
}

func NewHealthHandler(st store.Store) *HealthHandler {
	if st == nil {
		panic("nil store passed to NewHealthHandler")
	}
	return &HealthHandler{store: st}
}

// Ready reports 503 while the store is unreachable.
func (h *HealthHandler) Ready(c echo.Context) error {
	p, ok := h.store.(store.Pinger)
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}
