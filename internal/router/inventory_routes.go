package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/middleware"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// RegisterInventory registers equipment, term and consistency endpoints
// under /api/inventory.  Managers may read; admin and it_staff may write.
func RegisterInventory(e *echo.Echo, d Deps) {
	h := d.Inventory
	g := e.Group(
		"/api/inventory",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(viewerRoles...),
	)
	write := middleware.RequireRole(staffRoles...)

	// ---- Equipment ----
	g.GET("/equipment", h.ListEquipment)
	g.POST("/equipment", h.CreateEquipment, write)
	g.GET("/equipment/:id", h.GetEquipment)
	g.PATCH("/equipment/:id", h.UpdateEquipment, write)
	g.DELETE("/equipment/:id", h.DeleteEquipment, write)
	g.POST("/equipment/:id/status", h.ChangeStatus, write)

	// ---- Custody ----
	g.POST("/equipment/:id/deliver", h.Deliver, write)
	g.POST("/equipment/:id/return", h.Return, write)
	g.GET("/equipment/:id/terms", h.EquipmentTerms)
	g.GET("/equipment/:id/movements", h.Movements)
	g.GET("/return-checklist", h.ReturnChecklist)

	// ---- Terms ----
	g.GET("/terms", h.ListTerms)
	g.GET("/terms/:id", h.GetTerm)
	g.POST("/terms/:id/cancel", h.CancelTerm, write)

	// ---- Consistency ----
	g.GET("/consistency", h.Consistency, write)
	g.POST("/consistency/repair", h.Repair, middleware.RequireRole(model.RoleAdmin))
}
