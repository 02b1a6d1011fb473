package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/handler"
	"github.com/iliyamo/smart-parking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication:
// liveness at /healthz and readiness (database ping) at /readyz.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterParking registers the session endpoints under /v1. Every route
// requires a valid access token. Gates and operators may open, close and
// inspect sessions; cancellation and status overrides are operator-only.
// Entry is rate limited per lot and caller, availability is served through
// the response cache. rdb may be nil, which disables both.
func RegisterParking(e *echo.Echo, h *handler.ParkingHandler, jwtSecret string, rdb *redis.Client, rl config.RateLimitConfig, cache *middleware.ResponseCache) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleGate, middleware.RoleOperator))

	g.POST("/lots/:lotId/entries", h.Entry, middleware.NewTokenBucket(rl, rdb))
	g.GET("/lots/:lotId/availability", h.Availability, cache.Middleware())

	g.GET("/tokens/:id", h.GetToken)
	g.GET("/tokens/:id/quote", h.Quote)
	g.GET("/tokens/:id/receipt", h.Receipt)
	g.POST("/tokens/:id/complete", h.Complete)

	ops := middleware.RequireRole(middleware.RoleOperator)
	g.POST("/tokens/:id/cancel", h.Cancel, ops)
	g.PATCH("/tokens/:id/status", h.UpdateStatus, ops)
}
