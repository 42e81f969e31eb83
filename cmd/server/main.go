package main // Entry point package

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/cinema-reservation/internal/config"
    "github.com/iliyamo/cinema-reservation/internal/database"
    "github.com/iliyamo/cinema-reservation/internal/handler"
    "github.com/iliyamo/cinema-reservation/internal/logger"
    "github.com/iliyamo/cinema-reservation/internal/middleware"
    "github.com/iliyamo/cinema-reservation/internal/payment"
    "github.com/iliyamo/cinema-reservation/internal/queue"
    "github.com/iliyamo/cinema-reservation/internal/repository"
    "github.com/iliyamo/cinema-reservation/internal/router"
    "github.com/iliyamo/cinema-reservation/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real env vars win

    cfg := config.Load()
    log := logger.New(cfg.Env, cfg.LogLevel)

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Error("database connection failed", "error", err)
        os.Exit(1)
    }
    defer db.Close()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if cfg.AutoMigrate {
        if err := database.Migrate(ctx, db); err != nil {
            log.Error("schema migration failed", "error", err)
            os.Exit(1)
        }
    }

    halls := repository.NewHallRepo(db)
    movies := repository.NewMovieRepo(db)
    users := repository.NewUserRepo(db)
    reservations := repository.NewReservationRepo(db, cfg.Timezone)

    if cfg.SeedHalls {
        n, err := halls.Seed(ctx, repository.DefaultSeedLayout)
        if err != nil {
            log.Error("seeding halls failed", "error", err)
            os.Exit(1)
        }
        if n > 0 {
            log.Info("seeded halls", "count", n)
        }
    }

    // Redis is optional: without it rate limiting and caching are off and
    // the screening lock is in-process.
    rdb := config.NewRedisClient(config.LoadRedisConfig())
    if rdb == nil {
        log.Warn("redis unavailable; using in-process screening lock")
    } else {
        defer rdb.Close()
    }

    var locker service.Locker = service.NewLocalLocker()
    if rdb != nil {
        locker = service.NewRedisLocker(rdb, cfg.LockTTL)
    }

    stripe := payment.NewStripe(cfg.StripeSecretKey)
    if !stripe.Enabled() {
        log.Warn("STRIPE_SECRET_KEY not set; reservations cannot be paid")
    }

    clock := service.SystemClock{}
    svcOpts := []service.Option{
        service.WithHoldTTL(cfg.HoldTTL),
        service.WithLocation(cfg.Timezone),
        service.WithCurrency(cfg.Currency),
        service.WithLocker(locker),
    }
    sweepOpts := []service.SweeperOption{service.WithSweepInterval(cfg.SweepInterval)}
    if cfg.RabbitURL != "" {
        pub := queue.NewPublisher(cfg.RabbitURL, cfg.EventQueue, log)
        svcOpts = append(svcOpts, service.WithPublisher(pub))
        sweepOpts = append(sweepOpts, service.WithSweeperPublisher(pub))

        consumer := queue.NewConsumer(cfg.RabbitURL, cfg.EventQueue, cfg.EventLogPath, log)
        go func() {
            if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
                log.Error("event consumer stopped", "error", err)
            }
        }()
    }

    sweeper, err := service.NewSweeper(reservations, clock, log, sweepOpts...)
    if err != nil {
        log.Error("create hold sweeper failed", "error", err)
        os.Exit(1)
    }
    if err := sweeper.Start(); err != nil {
        log.Error("start hold sweeper failed", "error", err)
        os.Exit(1)
    }
    defer func() {
        if err := sweeper.Shutdown(); err != nil {
            log.Warn("hold sweeper shutdown", "error", err)
        }
    }()

    payments := service.NewPaymentCoordinator(stripe, reservations)
    resSvc := service.NewReservationService(reservations, halls, movies, payments, sweeper, clock, log, svcOpts...)
    avail := service.NewAvailabilityService(halls, movies, reservations, cfg.Timezone)

    e := echo.New()
    e.HideBanner = true
    e.Validator = handler.NewValidator()
    e.Use(echomw.Recover())
    e.Use(middleware.RequestID())
    e.Use(middleware.RequestLogger(log))

    limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
    cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log)

    router.RegisterRoutes(e, db)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, log), cfg.JWTSecret, limit)
    router.RegisterPublic(e, handler.NewPublicHandler(halls, movies, log), handler.NewSeatHandler(avail, log), cache, limit)
    router.RegisterCustomer(e, handler.NewCustomerHandler(resSvc, log), cfg.JWTSecret, limit)
    router.RegisterAdmin(e, handler.NewAdminReservationHandler(resSvc, log), cfg.JWTSecret, limit)
    router.RegisterWebhooks(e, handler.NewWebhookHandler(resSvc, cfg.StripeWebhookSecret, log))

    go func() {
        addr := ":" + cfg.Port
        log.Info("listening", "addr", addr, "env", cfg.Env)
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Error("http server failed", "error", err)
            stop()
        }
    }()

    <-ctx.Done()
    log.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Error("http shutdown failed", "error", err)
    }
}
