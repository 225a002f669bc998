package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/handler"
	"github.com/iliyamo/it-helpdesk/internal/middleware"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// Deps carries everything the route table needs.  Cache and RateLimit may
// be nil, in which case the routes run without them.
type Deps struct {
	JWTSecret string
	Sessions  middleware.SessionValidator

	// Cache wraps anonymous knowledge-base reads.
	Cache echo.MiddlewareFunc
	// RateLimit guards public login and ticket intake.
	RateLimit echo.MiddlewareFunc

	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	PublicAuth    *handler.PublicAuthHandler
	Tickets       *handler.TicketHandler
	Inventory     *handler.InventoryHandler
	Reports       *handler.ReportHandler
	Articles      *handler.ArticleHandler
	Notifications *handler.NotificationHandler
}

// Role sets used across the route groups.
var (
	staffRoles  = []string{model.RoleAdmin, model.RoleITStaff}
	viewerRoles = []string{model.RoleAdmin, model.RoleITStaff, model.RoleManager}
)

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func orPass(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return passThrough
	}
	return mw
}

// Register mounts the whole API on e.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.Health)
	RegisterAuth(e, d)
	RegisterTickets(e, d)
	RegisterInventory(e, d)
	RegisterPortal(e, d)
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the internal (JWT) and public (x-user-token)
// authentication endpoints plus internal user administration.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Auth
	g := e.Group("/api/internal-auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts a refresh token in the body or a bearer token
	g.POST("/logout", a.Logout, middleware.OptionalAuth(d.JWTSecret))

	jwt := middleware.JWTAuth(d.JWTSecret)
	g.GET("/me", a.Me, jwt)
	g.GET("/users", a.ListUsers, jwt, middleware.RequireRole(viewerRoles...))
	g.POST("/users", a.CreateUser, jwt, middleware.RequireRole(model.RoleAdmin))
	g.PATCH("/users/:id", a.UpdateUser, jwt, middleware.RequireRole(model.RoleAdmin))

	p := d.PublicAuth
	pg := e.Group("/api/public-auth")
	pg.POST("/login", p.Login, orPass(d.RateLimit))
	pg.GET("/me", p.Me, middleware.PublicAuth(d.Sessions))
	pg.POST("/logout", p.Logout, middleware.PublicAuth(d.Sessions))
}
