package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, h *handler.Health) {
	e.GET("/healthz", h.Check)
}

// RegisterAuth registers the account endpoints.  Register and login are
// public; /v1/me needs a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
}

// RegisterPublic registers the unauthenticated catalogue and payment
// endpoints.  Catalogue reads go through the response cache.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler, p *handler.PaymentHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/events", cache)
	g.GET("", ev.List)
	g.GET("/:id", ev.Get)
	g.GET("/:id/availability", ev.GetAvailability)

	e.GET("/v1/payments/public-key", p.PublicKey)
	e.POST("/v1/payments/webhook", p.Webhook)
}
