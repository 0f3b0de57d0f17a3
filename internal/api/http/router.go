package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-directory/internal/api/http/handlers"
	"github.com/spec-kit/user-directory/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Every /api/users route sits behind the
// bearer middleware plus a matrix guard; static segments are registered
// before the :id parameter so they are not swallowed by it.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	users := app.Group("/api/users", cfg.AuthMiddleware.Handle)

	users.Get("/", auth.Require(auth.ActionListUsers), cfg.Users.List)
	users.Get("/all", auth.Require(auth.ActionListAllUsers), cfg.Users.ListAll)
	users.Get("/search", auth.Require(auth.ActionSearchUsers), cfg.Users.Search)
	users.Get("/statistics", auth.Require(auth.ActionViewStatistics), cfg.Users.Statistics)
	users.Get("/role/:role", auth.Require(auth.ActionListByRole), cfg.Users.ListByRole)
	users.Get("/status/:status", auth.Require(auth.ActionListByStatus), cfg.Users.ListByStatus)
	users.Get("/username/:username", auth.Require(auth.ActionGetUserByUsername), cfg.Users.GetByUsername)
	users.Get("/email/:email", auth.Require(auth.ActionGetUserByEmail), cfg.Users.GetByEmail)
	users.Post("/", auth.Require(auth.ActionCreateUser), cfg.Users.Create)

	users.Get("/:id", auth.Require(auth.ActionGetUser), cfg.Users.Get)
	users.Put("/:id", auth.Require(auth.ActionUpdateUser), cfg.Users.Update)
	users.Delete("/:id", auth.Require(auth.ActionDeleteUser), cfg.Users.Delete)
	users.Patch("/:id/activate", auth.Require(auth.ActionActivateUser), cfg.Users.Activate)
	users.Patch("/:id/deactivate", auth.Require(auth.ActionDeactivateUser), cfg.Users.Deactivate)
	users.Patch("/:id/suspend", auth.Require(auth.ActionSuspendUser), cfg.Users.Suspend)
	users.Patch("/:id/role/:role", auth.Require(auth.ActionChangeRole), cfg.Users.ChangeRole)
}
