// Package http wires the operator API routes and middleware.
package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Stats          *handlers.StatsHandler
	Transcripts    *handlers.TranscriptsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. Probes are open; everything under
// /api/v1 requires a bearer token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	api.Get("/stats", auth.RequireRole(), cfg.Stats.Get)
	api.Get("/transcripts/search", auth.RequireRole(auth.RoleOperator), cfg.Transcripts.Search)
}
