package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/spf13/cobra"

    "github.com/iliyamo/notes-marketplace/internal/config"
    "github.com/iliyamo/notes-marketplace/internal/database"
    "github.com/iliyamo/notes-marketplace/internal/dbx"
    "github.com/iliyamo/notes-marketplace/internal/generation"
    "github.com/iliyamo/notes-marketplace/internal/handler"
    "github.com/iliyamo/notes-marketplace/internal/logging"
    "github.com/iliyamo/notes-marketplace/internal/middleware"
    "github.com/iliyamo/notes-marketplace/internal/payment"
    "github.com/iliyamo/notes-marketplace/internal/queue"
    "github.com/iliyamo/notes-marketplace/internal/repository"
    "github.com/iliyamo/notes-marketplace/internal/router"
    "github.com/iliyamo/notes-marketplace/internal/service"
    "github.com/iliyamo/notes-marketplace/internal/storage"
)

func serveCmd() *cobra.Command {
    var migrate bool
    cmd := &cobra.Command{
        Use:   "serve",
        Short: "Run the HTTP API",
        RunE: func(cmd *cobra.Command, args []string) error {
            return runServe(cmd.Context(), migrate)
        },
    }
    cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
    return cmd
}

func runServe(ctx context.Context, migrate bool) error {
    cfg := config.Load()
    log := logging.NewSlogLogger(logging.New(logConfig(cfg.Log), nil)).With("env", cfg.Env)

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        return fmt.Errorf("open database: %w", err)
    }
    defer db.Close()
    if migrate {
        if err := database.Migrate(ctx, db); err != nil {
            return fmt.Errorf("migrate: %w", err)
        }
    }

    // Redis backs the rate limiter and the search cache; both are skipped
    // when it is unreachable.
    rdb := config.NewRedisClient(config.LoadRedisConfig())
    if rdb == nil {
        log.Warn(ctx, "redis unavailable, running without rate limit and search cache")
    } else {
        defer rdb.Close()
    }
    cache := middleware.NewSearchCache(config.LoadCacheConfig(), rdb)

    store, err := storage.NewS3Store(ctx, storage.Config{
        Region:     cfg.Storage.Region,
        Endpoint:   cfg.Storage.Endpoint,
        AccessKey:  cfg.Storage.AccessKey,
        SecretKey:  cfg.Storage.SecretKey,
        Bucket:     cfg.Storage.Bucket,
        PresignTTL: cfg.Storage.PresignTTL,
    })
    if err != nil {
        return fmt.Errorf("object storage: %w", err)
    }

    var events queue.Publisher = queue.NopPublisher{}
    if cfg.AMQP.URL != "" {
        events = queue.NewAMQPPublisher(cfg.AMQP.URL, log.With("component", "publisher"))
    }

    deps := service.Deps{
        Tx:        dbx.NewTransactor(db, nil),
        Repos:     repository.NewMySQLManager(),
        Log:       log,
        Events:    events,
        Payments:  payment.NewSimulated(),
        Store:     store,
        Generator: generation.NewPool(newGenerator(cfg.AI, log), cfg.AI.Workers),
        Search:    cache,
        Auth: service.AuthConfig{
            JWTSecret:      cfg.JWTSecret,
            AccessTTLMin:   cfg.AccessTTLMin,
            RefreshTTLDays: cfg.RefreshTTLDays,
            BcryptCost:     cfg.BcryptCost,
        },
    }
    users := service.NewUserService(deps)

    e := echo.New()
    e.HideBanner = true
    e.Use(echomw.Recover())
    e.Use(middleware.RequestLogger(log))
    e.Use(echomw.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes+(2<<20), 10)))

    router.Register(e, router.Handlers{
        Auth:      handler.NewAuthHandler(users),
        Notes:     handler.NewNoteHandler(service.NewNoteService(deps), cfg.MaxUploadBytes),
        Purchases: handler.NewPurchaseHandler(service.NewPurchaseService(deps)),
        Comments:  handler.NewCommentHandler(service.NewCommentService(deps)),
        Profile:   handler.NewProfileHandler(users, service.NewEarningsService(deps)),
        Ready:     handler.Ready(db),
    }, router.Guards{
        JWTSecret:     cfg.JWTSecret,
        RateLimit:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
        AuthRateLimit: middleware.NewTokenBucket(config.LoadAuthRateLimitConfig(), rdb, log),
        SearchCache:   cache.Middleware(),
    })

    ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
    defer stop()

    addr := ":" + cfg.Port
    errCh := make(chan error, 1)
    go func() {
        log.Info(ctx, "listening", "addr", addr)
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errCh <- err
        }
        close(errCh)
    }()

    select {
    case err := <-errCh:
        return err
    case <-ctx.Done():
    }
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    log.Info(shutdownCtx, "shutting down")
    return e.Shutdown(shutdownCtx)
}

// newGenerator calls the model API when a key is configured and falls
// back to the offline heuristic otherwise.
func newGenerator(ai config.AIConfig, log logging.Logger) generation.Generator {
    if ai.APIKey == "" {
        log.Info(context.Background(), "OPENAI_API_KEY not set, using heuristic study content")
        return generation.NewHeuristicGenerator()
    }
    return generation.NewOpenAIGenerator(ai.APIKey,
        generation.WithBaseURL(strings.TrimRight(ai.BaseURL, "/")+"/chat/completions"),
        generation.WithModel(ai.Model),
        generation.WithHTTPClient(&http.Client{Timeout: ai.Timeout}),
    )
}
