package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ibistek-uty/incubation-api/internal/api/http/handlers"
	"github.com/ibistek-uty/incubation-api/internal/auth"
	"github.com/ibistek-uty/incubation-api/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	ServiceName string
	Version     string
	APIPrefix   string
	Health      *handlers.HealthHandler
	Auth        *handlers.AuthHandler
	Users       *handlers.UsersHandler
	Gate        *auth.Gate
}

// RegisterRoutes wires HTTP routes. The gate runs on every API route so
// handlers and guards always see a derived identity (or anonymous); guards
// are attached per route group.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": cfg.ServiceName,
			"version": cfg.Version,
		})
	})
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group(cfg.APIPrefix, cfg.Gate.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", auth.RequireAuthenticated(), cfg.Auth.Me)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	authGroup.Post("/password/change", auth.RequireAuthenticated(), cfg.Auth.ChangePassword)

	users := api.Group("/users", auth.RequireRole(domain.RoleAdmin))
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)
}
