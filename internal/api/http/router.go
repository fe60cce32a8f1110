package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/streetfix/resolve-service/internal/api/http/handlers"
	"github.com/streetfix/resolve-service/internal/auth"
	"github.com/streetfix/resolve-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Staff          *handlers.StaffHandler
	Neighbors      *handlers.NeighborsHandler
	Notifications  *handlers.NotificationsHandler
	Media          *handlers.MediaHandler
	AuthMiddleware *auth.AuthMiddleware
}

// NewApp builds the fiber app. Immutable copies params and bodies out of the reused
// request buffer, since the in-memory store keeps the strings handlers pass it.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		Immutable:             true,
	})
}

// RegisterRoutes wires HTTP routes. Role checks use the role stored on the account, not
// the one in the token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	authed := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	authed.Get("/me", cfg.Users.Me)
	authed.Get("/profiles/:id", cfg.Users.Profile)
	authed.Post("/media/uploads", cfg.Media.CreateUpload)
	authed.Get("/notifications", cfg.Notifications.List)
	authed.Post("/notifications/read-all", cfg.Notifications.MarkAllRead)
	authed.Post("/notifications/:id/read", cfg.Notifications.MarkRead)
	authed.Get("/posts", cfg.Tickets.Feed)

	citizen := auth.RequireRoles(domain.RoleCitizen)
	authed.Post("/tickets", citizen, cfg.Tickets.SubmitTicket)
	authed.Post("/tickets/drafts", citizen, cfg.Tickets.SaveDraft)
	authed.Get("/tickets/mine", citizen, cfg.Tickets.ListMine)
	authed.Post("/tickets/:id/submit", citizen, cfg.Tickets.SubmitDraft)
	authed.Post("/posts", citizen, cfg.Tickets.CreatePost)
	authed.Get("/tickets/:id", cfg.Tickets.GetTicket)
	authed.Get("/tickets/:id/history", cfg.Tickets.GetHistory)

	dispatch := authed.Group("/dispatch", auth.RequireRoles(domain.RoleDispatcher))
	dispatch.Get("/tickets", cfg.StaffTickets.ListDispatch)
	dispatch.Get("/tickets/:id/candidates", cfg.StaffTickets.Candidates)
	dispatch.Post("/tickets/:id/assign", cfg.StaffTickets.Assign)
	dispatch.Post("/tickets/:id/auto-assign", cfg.StaffTickets.AutoAssign)
	dispatch.Post("/tickets/:id/review", cfg.StaffTickets.Review)
	dispatch.Post("/tickets/:id/merge", cfg.StaffTickets.Merge)
	dispatch.Get("/staff", cfg.Staff.ListStaff)
	dispatch.Post("/staff", cfg.Staff.CreateStaff)
	dispatch.Put("/engineers/:id/zone", cfg.Staff.SetZone)

	engineer := authed.Group("/engineer", auth.RequireRoles(domain.RoleEngineer))
	engineer.Get("/jobs", cfg.StaffTickets.EngineerJobs)
	engineer.Post("/jobs/:id/start", cfg.StaffTickets.StartWork)
	engineer.Post("/jobs/:id/resolve", cfg.StaffTickets.Resolve)
	engineer.Put("/status", cfg.Users.SetEngineerStatus)
	engineer.Put("/location", cfg.Users.UpdateLocation)

	qa := authed.Group("/qa", auth.RequireRoles(domain.RoleQA))
	qa.Get("/tickets", cfg.StaffTickets.QAQueue)
	qa.Post("/tickets/:id/verify", cfg.StaffTickets.Verify)
	qa.Post("/tickets/:id/reopen", cfg.StaffTickets.Reopen)

	neighbors := authed.Group("/neighbors", auth.RequireRoles(domain.RoleCitizen))
	neighbors.Get("", cfg.Neighbors.List)
	neighbors.Post("/requests", cfg.Neighbors.SendRequest)
	neighbors.Get("/requests", cfg.Neighbors.ListRequests)
	neighbors.Post("/requests/:id/accept", cfg.Neighbors.Accept)
	neighbors.Post("/requests/:id/decline", cfg.Neighbors.Decline)
	neighbors.Delete("/requests/:id", cfg.Neighbors.Clear)
	neighbors.Delete("/:id", cfg.Neighbors.Remove)
}
