package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID renders the user id stored by JWTAuth as a string, or
// "anon" when the request is unauthenticated.  The claim arrives as a JSON
// number, so float64 is the common case.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int:
		return strconv.Itoa(v)
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
