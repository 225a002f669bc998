package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/middleware"
)

// RegisterPortal registers reports, the knowledge base and notifications.
func RegisterPortal(e *echo.Echo, d Deps) {
	r := d.Reports
	rg := e.Group("/api/reports", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(viewerRoles...))
	rg.GET("/overview", r.Overview)
	rg.GET("/sla", r.SLA)
	rg.GET("/technicians", r.Technicians)
	rg.GET("/inventory", r.Inventory)

	// Reads are anonymous; a staff bearer additionally sees drafts and
	// bypasses the cache.
	a := d.Articles
	ag := e.Group("/api/information-articles")
	read := []echo.MiddlewareFunc{middleware.OptionalAuth(d.JWTSecret), orPass(d.Cache)}
	ag.GET("", a.List, read...)
	ag.GET("/categories", a.Categories, read...)
	ag.GET("/:id", a.Get, read...)
	write := []echo.MiddlewareFunc{middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(staffRoles...)}
	ag.POST("", a.Create, write...)
	ag.PUT("/:id", a.Update, write...)
	ag.DELETE("/:id", a.Delete, write...)

	n := d.Notifications
	ng := e.Group("/api/notifications", middleware.JWTAuth(d.JWTSecret))
	ng.GET("", n.List)
	ng.PATCH("/:id/read", n.MarkRead)
	ng.POST("/read-all", n.MarkAllRead)
}
