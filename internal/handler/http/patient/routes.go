package patient

import (
	"github.com/labstack/echo/v4"
)

// SetupRoutes registers patient routes with the Echo instance
func (h *PatientHandler) SetupRoutes(e *echo.Echo) {
	e.POST("/api/patients", h.HandleRegister)
	e.POST("/api/appointments", h.HandleBook)
	e.GET("/api/appointments/:id/status", h.HandleStatus)
}
