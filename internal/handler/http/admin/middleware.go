package admin

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"clinic-bff/internal/handler/http/proxy"
)

// RequireBearer rejects requests without a bearer token. The token itself is
// verified by the backend, which receives it unchanged.
func RequireBearer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if len(auth) <= 7 || !strings.EqualFold(auth[:7], "Bearer ") || strings.TrimSpace(auth[7:]) == "" {
				return c.JSON(http.StatusUnauthorized, proxy.ErrorResponse{Error: "missing bearer token"})
			}
			return next(c)
		}
	}
}
