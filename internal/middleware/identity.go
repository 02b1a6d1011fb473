package middleware

// identity.go extracts the caller identity placed in the context by JWTAuth.
// It is shared by the rate limiter and the handlers that record who performed
// an operator action.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Subject returns the JWT subject of the caller, or "anon" when the request
// is not authenticated. Numeric subjects are rendered in decimal.
func Subject(c echo.Context) string {
	switch v := c.Get(CtxSubject).(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return "anon"
}
