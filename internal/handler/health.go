package handler // HTTP handlers for the reservation API

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and monitoring
// systems.  It answers "ok" with HTTP 200 as long as the process serves.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
