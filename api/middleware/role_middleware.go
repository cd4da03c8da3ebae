package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// RequireRole admits requests whose authenticated role is one of roles. It must run
// after the orchestrator has attached the session token.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			currentRole, ok := RoleFromContext(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorBody("Authentication required"))
			}
			if !slices.Contains(roles, currentRole) {
				return c.JSON(http.StatusForbidden, errorBody("Insufficient permissions"))
			}
			return next(c)
		}
	}
}

func errorBody(message string) map[string]any {
	return map[string]any{"success": false, "message": message}
}
