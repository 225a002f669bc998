package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/middleware"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// RegisterTickets registers the ticket endpoints.  Every route accepts a
// staff bearer token or a public x-user-token; ownership of public
// requesters is checked in the service layer.
func RegisterTickets(e *echo.Echo, d Deps) {
	h := d.Tickets
	g := e.Group("/api/tickets", middleware.AnyAuth(d.JWTSecret, d.Sessions))

	g.GET("/priority", h.Priority)
	g.POST("", h.Create, orPass(d.RateLimit))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update, middleware.RequireRole(staffRoles...))
	g.DELETE("/:id", h.Delete, middleware.RequireRole(model.RoleAdmin))

	g.GET("/:id/messages", h.ListMessages)
	g.POST("/:id/messages", h.AddMessage)

	g.GET("/:id/attachments", h.ListAttachments)
	g.POST("/:id/attachments", h.Upload)
	g.GET("/:id/attachments/:attachmentId", h.Download)
}
