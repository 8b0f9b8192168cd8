package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pawtrail/pushgate/internal/ingress"
)

// DiagnosticsRoutes exposes per-tenant admission telemetry.
type DiagnosticsRoutes struct {
	router *ingress.Router
}

// NewDiagnosticsRoutes constructs diagnostics routes.
func NewDiagnosticsRoutes(router *ingress.Router) *DiagnosticsRoutes {
	return &DiagnosticsRoutes{router: router}
}

// RegisterRoutes registers diagnostics endpoints.
func (d *DiagnosticsRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/diagnostics/:tenant", d.handleTelemetry)
}

func (d *DiagnosticsRoutes) handleTelemetry(c echo.Context) error {
	counters, ok := d.router.TelemetrySnapshot(c.Param("tenant"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no telemetry for tenant"})
	}
	return c.JSON(http.StatusOK, counters)
}
