package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/handlers"
	"github.com/coverdeskhq/coverdesk/internal/middleware"
	"github.com/coverdeskhq/coverdesk/internal/models"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
)

// Handlers collects everything RegisterRoutes mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Users       *handlers.UserHandler
	Clients     *handlers.ClientHandler
	Policies    *handlers.PolicyHandler
	Claims      *handlers.ClaimHandler
	Dashboard   *handlers.DashboardHandler
	Reports     *handlers.ReportHandler
	Settings    *handlers.SettingHandler
	Maintenance *handlers.MaintenanceHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	authenticator *auth.Authenticator,
	cookieName string,
	logger *slog.Logger,
) {
	// Unknown routes and wrong methods answer with the same JSON envelope
	// as every other failure.
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteMethodNotAllowed(w)
	})

	// Rate limiting config for the login endpoint
	rateLimitConfig := middleware.DefaultLoginRateLimit()

	// Public routes - no session required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/api/auth/login", h.Auth.Login)

	// Logging out with a dead or missing session still succeeds. The
	// session is resolved best-effort for the activity log, and the CSRF
	// check applies only when a live session was found.
	router.With(
		auth.OptionalAuth(authenticator, cookieName),
		middleware.OptionalCSRFProtection(logger),
	).Post("/api/auth/logout", h.Auth.Logout)

	// Report downloads carry their own signed token instead of a session,
	// so browsers can follow the link without the cookie.
	router.Get("/api/reports/download", h.Reports.Download)

	// Cron endpoints authenticate with a bearer secret
	router.Post("/api/maintenance/cleanup", h.Maintenance.RunMaintenance)
	router.Post("/api/maintenance/reports/run", h.Maintenance.RunReports)

	// Protected routes - session required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(authenticator, cookieName))
		r.Use(middleware.CSRFProtection(logger))

		// Any authenticated user
		r.Get("/api/auth/validate", h.Auth.Validate)
		r.Post("/api/claims", h.Claims.File)

		// Staff routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAnyRole(models.RoleAdmin, models.RoleAgent))

			r.Get("/api/clients", h.Clients.List)
			r.Post("/api/clients", h.Clients.Create)
			r.Get("/api/clients/{id}", h.Clients.Get)
			r.Put("/api/clients/{id}", h.Clients.Update)
			r.Delete("/api/clients/{id}", h.Clients.Delete)

			r.Get("/api/policies", h.Policies.List)
			r.Post("/api/policies", h.Policies.Create)
			r.Get("/api/policies/{id}", h.Policies.Get)
			r.Put("/api/policies/{id}", h.Policies.Update)
			r.Delete("/api/policies/{id}", h.Policies.Delete)

			r.Get("/api/claims", h.Claims.List)
			r.Get("/api/claims/{id}", h.Claims.Get)
			r.Put("/api/claims/{id}/status", h.Claims.UpdateStatus)

			r.Get("/api/dashboard/stats", h.Dashboard.Summary)
			r.Get("/api/dashboard/activity", h.Dashboard.Activity)

			r.Get("/api/reports/summary", h.Reports.Summary)
			r.Get("/api/reports/schedule", h.Reports.Schedule)
			r.Post("/api/reports/generate", h.Reports.Generate)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))

			r.Get("/api/users", h.Users.List)
			r.Post("/api/users", h.Users.Create)
			r.Get("/api/users/{id}", h.Users.Get)
			r.Put("/api/users/{id}", h.Users.Update)
			r.Delete("/api/users/{id}", h.Users.Delete)

			r.Delete("/api/claims/{id}", h.Claims.Delete)

			r.Post("/api/auth/totp/setup", h.Auth.BeginTOTPSetup)
			r.Post("/api/auth/totp/enable", h.Auth.ConfirmTOTPSetup)

			r.Put("/api/reports/schedule", h.Reports.UpsertSchedule)
			r.Delete("/api/reports/schedule/{taskType}", h.Reports.DeleteSchedule)

			r.Get("/api/settings", h.Settings.List)
			r.Get("/api/settings/{key}", h.Settings.Get)
			r.Put("/api/settings/{key}", h.Settings.Update)
		})
	})
}
