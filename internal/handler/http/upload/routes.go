package upload

import (
	"github.com/labstack/echo/v4"
)

// SetupRoutes registers the upload route with the Echo instance
func (h *UploadHandler) SetupRoutes(e *echo.Echo) {
	e.POST("/api/uploads", h.HandleUpload)
}
