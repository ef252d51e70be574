package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-access-service/internal/api/http/handlers"
	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/domain"
)

// Route policies. Each protected route declares one at wiring time.
var (
	// AdminOnly guards the full listing.
	AdminOnly = auth.NewPolicy([]domain.UserRole{domain.UserRoleAdmin}, nil)
	// AdminOrSelf lets admins act on anyone and users act on themselves.
	AdminOrSelf = auth.NewPolicy(
		[]domain.UserRole{domain.UserRoleAdmin},
		[]domain.UserRole{domain.UserRoleUser},
	)
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Users         *handlers.UsersHandler
	Authenticator *auth.Authenticator
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	guard := cfg.Authenticator.Handle

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", guard, cfg.Auth.Logout)

	users := api.Group("/user")
	users.Post("/", cfg.Users.Register)
	users.Get("/", guard, auth.RequirePolicy(AdminOnly, ""), cfg.Users.List)
	users.Get("/:id", guard, auth.RequirePolicy(AdminOrSelf, "id"), cfg.Users.Get)
	users.Post("/:id/block", guard, auth.RequirePolicy(AdminOrSelf, "id"), cfg.Users.Block)
}
