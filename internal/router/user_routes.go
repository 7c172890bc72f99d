package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// RegisterUser registers booking endpoints for signed-in users.  Admins may
// use them too; ownership is enforced by the booking service.
func RegisterUser(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, t *handler.TicketHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/bookings", b.Create)
	g.GET("/bookings/mine", b.Mine)
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id/cancel", b.Cancel)
	g.DELETE("/bookings/:id", b.Delete)
	// Fallbacks for clients that cannot send DELETE.
	g.PUT("/bookings/:id/delete", b.Delete)
	g.POST("/bookings/:id/delete", b.Delete)
	g.GET("/bookings/:id/ticket", t.Download)

	g.POST("/payments/checkout", p.Checkout)
}
