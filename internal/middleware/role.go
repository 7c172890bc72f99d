package middleware // middleware holds request processing shared by every route group

import (
	"net/http" // status codes for the rejection response

	"github.com/labstack/echo/v4" // echo provides middleware chaining and the request context
)

// RequireRole returns a middleware that admits a request only when the
// role claim placed in the context by JWTAuth is one of roles.  Any other
// role, or a missing one, ends the request with 403 Forbidden.  It must be
// mounted after JWTAuth in the same chain.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build the allowed set once per route group, not per request.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true // presence is all that matters
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// JWTAuth stores the claim as a string; anything else counts as missing.
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				// Same envelope as the other handler errors so clients can switch on code.
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "FORBIDDEN"})
			}
			// Role accepted; hand over to the next handler in the chain.
			return next(c)
		}
	}
}
