package handler // HTTP handlers for every route group

import (
	"context"      // per-check timeout
	"database/sql" // the MySQL pool is pinged directly
	"net/http"     // status codes
	"time"         // timeout duration

	"github.com/labstack/echo/v4"  // echo context and JSON rendering
	"github.com/redis/go-redis/v9" // optional Redis client
)

// Health reports liveness and the reachability of the backing stores.  The
// database is required; Redis is reported but optional.
type Health struct {
	DB    *sql.DB       // required store; down means 503
	Redis *redis.Client // nil when Redis was unreachable at startup
}

// Check serves GET /healthz for load balancers and monitoring.
func (h *Health) Check(c echo.Context) error {
	// Both pings share one deadline so a hung store cannot stall the health check.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	out := echo.Map{"status": "ok", "database": "up", "redis": "disabled"}
	status := http.StatusOK
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			// Without the database no booking can be served.
			out["status"], out["database"] = "degraded", "down"
			status = http.StatusServiceUnavailable
		}
	}
	if h.Redis != nil {
		out["redis"] = "up"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			out["redis"] = "down" // reported only; caches fall back to the database
		}
	}
	return c.JSON(status, out)
}
