package main // Entry point package

import (
    "context"
    "log"
    "os/signal"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/travel-package-reservation/internal/config"
    "github.com/iliyamo/travel-package-reservation/internal/database"
    "github.com/iliyamo/travel-package-reservation/internal/handler"
    "github.com/iliyamo/travel-package-reservation/internal/queue"
    "github.com/iliyamo/travel-package-reservation/internal/repository"
    "github.com/iliyamo/travel-package-reservation/internal/router"
    "github.com/iliyamo/travel-package-reservation/internal/service"
)

func main() {
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis backs the rate limiter and the quote cache; both degrade to
    // pass-through when it is unreachable.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Println("redis unavailable; rate limiting and response cache disabled")
    }

    publisher := queue.NewPublisher()
    go func() {
        if err := queue.StartBookingConsumer(); err != nil {
            log.Printf("queue consumer stopped: %v", err)
        }
    }()

    bookings := service.NewBookingService(
        repository.NewStore(db),
        publisher,
        cfg.CodePrefix,
        time.Duration(cfg.HoldTTLHours)*time.Hour,
    )
    pricing := service.NewPricingService(repository.NewPriceRepo(db), cfg.DefaultCurrency)

    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e)
    router.RegisterStorefront(e, handler.NewQuoteHandler(pricing), handler.NewBookingHandler(bookings), rdb)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)), cfg.JWTSecret)
    router.RegisterAdmin(e, handler.NewBookingHandler(bookings), cfg.JWTSecret)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    // Expired holds are also cancelled passively on read; the sweeper just
    // keeps inventory from sitting on dead holds between reads.
    go sweepLoop(ctx, bookings, time.Duration(cfg.SweepIntervalMin)*time.Minute)

    go func() {
        addr := ":" + cfg.Port
        log.Printf("listening on %s (env=%s)", addr, cfg.Env)
        if err := e.Start(addr); err != nil {
            log.Printf("http server: %v", err)
            stop()
        }
    }()

    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Printf("shutdown: %v", err)
    }
}

func sweepLoop(ctx context.Context, bookings *service.BookingService, every time.Duration) {
    ticker := time.NewTicker(every)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
            swept, err := bookings.SweepExpired(sweepCtx)
            cancel()
            if err != nil {
                log.Printf("sweep: %v", err)
                continue
            }
            if swept > 0 {
                log.Printf("sweep: cancelled %d expired holds", swept)
            }
        }
    }
}
