package admin

import (
	"github.com/labstack/echo/v4"
)

// SetupRoutes registers admin routes with the Echo instance
// The passkey route is open; everything else under /api/admin needs a bearer token.
func (h *AdminHandler) SetupRoutes(e *echo.Echo) {
	e.POST("/api/admin/passkey", h.HandlePasskey)

	g := e.Group("/api/admin", RequireBearer())
	g.GET("/dashboard", h.HandleDashboard)
	g.GET("/appointments", h.HandleListAppointments)
	g.PATCH("/appointments/:id", h.HandleUpdateAppointment)
	g.GET("/users", h.HandleListUsers)
	g.DELETE("/users/:id", h.HandleDeleteUser)
}
