package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campuscode-api/internal/config"
	"github.com/noah-isme/campuscode-api/internal/handler"
	"github.com/noah-isme/campuscode-api/internal/middleware"
	"github.com/noah-isme/campuscode-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProblemHandler     *handler.ProblemHandler
	GradingHandler     *handler.GradingHandler
	MeHandler          *handler.MeHandler
	LeaderboardHandler *handler.LeaderboardHandler
	AdminHandler       *handler.AdminHandler
	JWTMiddleware      fiber.Handler
	SubmitLimiter      fiber.Handler
	HealthProbes       []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api/v2", jwtMiddleware, middleware.RequireUser())

	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(api.Group("/problems"))
	}

	if deps.GradingHandler != nil {
		guards := make([]fiber.Handler, 0, 1)
		if deps.SubmitLimiter != nil {
			guards = append(guards, deps.SubmitLimiter)
		}
		deps.GradingHandler.Register(api, guards...)
	}

	if deps.MeHandler != nil {
		deps.MeHandler.Register(api.Group("/me"))
	}

	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(api.Group("/leaderboard"))
	}

	if deps.AdminHandler != nil {
		deps.AdminHandler.Register(api.Group("/admin"))
	}
}
