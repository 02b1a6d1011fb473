package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Roles carried in the JWT "role" claim.
const (
	RoleGate     = "GATE"     // entry/exit terminals: start and complete sessions
	RoleOperator = "OPERATOR" // staff: everything a gate can do plus cancel and overrides
)

// RequireRole returns a middleware function that enforces that the
// authenticated caller has one of the specified roles. It assumes JWTAuth
// has stored the role in the context. Requests with a missing or unknown
// role are aborted with 403 Forbidden.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
