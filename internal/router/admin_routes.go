package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// RegisterAdmin registers the admin console under /v1/admin.  Every route
// requires a valid JWT with the admin role.
func RegisterAdmin(e *echo.Echo, b *handler.BookingHandler, ev *handler.EventHandler, t *handler.TicketHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/bookings", b.AdminList)
	g.GET("/bookings/stats", b.AdminStats)
	g.PUT("/bookings/:id/status", b.AdminSetStatus)
	g.DELETE("/bookings/:id", b.Delete)

	g.POST("/tickets/verify", t.Verify)

	g.GET("/events", ev.List)
	g.GET("/events/overview", ev.Overview)
	g.POST("/events", ev.Create)
	g.PUT("/events/:id", ev.Update)
	g.DELETE("/events/:id", ev.Delete)
}
