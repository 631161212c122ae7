package router // package router wires HTTP routes to their handlers

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/travel-package-reservation/internal/config"
    "github.com/iliyamo/travel-package-reservation/internal/handler"
    "github.com/iliyamo/travel-package-reservation/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication or
// dependencies beyond the process itself.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterStorefront registers the anonymous booking flow.  Quotes are
// pure reads and sit behind the Redis response cache; the write endpoints
// share the token-bucket rate limiter so one misbehaving client cannot
// hog the serializable transaction budget.
func RegisterStorefront(e *echo.Echo, q *handler.QuoteHandler, b *handler.BookingHandler, rdb *redis.Client) {
    limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    e.GET("/v1/quote", q.Quote, limiter, cache)

    g := e.Group("/v1/bookings", limiter)
    g.POST("", b.Create)
    g.GET("/:code", b.Get)
    g.POST("/:code/confirm", b.Confirm)
    g.POST("/:code/cancel", b.Cancel)
}

// RegisterAuth registers the back-office session endpoints.  Register,
// login and the refresh flows need no existing session; /v1/me requires a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    g.POST("/refresh", a.Refresh)
    g.POST("/refresh-access", a.RefreshAccess)
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.RequireRole("AGENT", "ADMIN"))
    auth.GET("/me", a.Me)
}

// RegisterAdmin registers agent-facing booking management under
// /v1/admin.  Every route requires a valid access token and an operator
// role; the manual sweep and code allocation are admin-only.
func RegisterAdmin(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
    g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole("AGENT", "ADMIN"))
    g.GET("/bookings/:code", b.Get)
    g.POST("/bookings/:code/payment", b.RecordPayment)

    admin := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole("ADMIN"))
    admin.POST("/sweep", b.Sweep)
    admin.POST("/codes", b.AllocateCode)
}
