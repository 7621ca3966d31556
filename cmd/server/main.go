package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/config"
	"github.com/iliyamo/movie-booking/internal/database"
	"github.com/iliyamo/movie-booking/internal/handler"
	"github.com/iliyamo/movie-booking/internal/lock"
	"github.com/iliyamo/movie-booking/internal/logger"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/queue"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/router"
	"github.com/iliyamo/movie-booking/internal/validate"
)

// store is what both repository implementations provide.
type store interface {
	booking.Store
	handler.CatalogStore
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	dotenvErr := godotenv.Load() // .env is optional; real env vars win

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if dotenvErr != nil {
		log.Info("no .env file loaded, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	var (
		st store
		db *sql.DB
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		st = repository.NewMemoryStore()
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db, err = database.Open(database.Options{
			User: cfg.DBUser, Password: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if cfg.DBMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info("database schema applied")
		}
		st = repository.NewMySQLStore(db)
	}

	// Redis is optional: without it the lock stays in-process and the
	// cache and rate limiter are skipped.
	rdb, rerr := config.NewRedisClient()
	if rerr != nil {
		log.Warn("redis unavailable, cache and rate limit disabled", zap.Error(rerr))
	} else {
		defer rdb.Close()
	}

	var locker booking.Locker = lock.NewLocal(cfg.LockWait)
	if cfg.LockBackend == config.LockRedis {
		if rdb == nil {
			log.Warn("LOCK_BACKEND=redis but redis is unavailable; using in-process lock")
		} else {
			locker = lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait, log.Named("lock"))
		}
	}

	// Events
	var publisher booking.EventPublisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		p := queue.NewPublisher(cfg.RabbitMQURL, log.Named("publisher"))
		defer p.Close()
		publisher = p

		consumer := queue.NewConsumer(cfg.RabbitMQURL, log.Named("consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", zap.Error(err))
			}
		}()
	}

	mgr := booking.NewManager(st, booking.Options{
		HoldTTL:   cfg.HoldTTL,
		Locker:    locker,
		Publisher: publisher,
		Logger:    log.Named("booking"),
	})

	sweeper := booking.NewSweeper(mgr, cfg.SweepSchedule, log.Named("sweeper"))
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log.Named("http")))

	deps := router.Deps{
		Bookings: handler.NewBookingHandler(mgr),
	}
	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	deps.Health = handler.Health(pinger)
	if rdb != nil {
		cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log.Named("cache"))
		deps.Catalog = handler.NewCatalogHandler(st, cache)
		deps.Cache = cache.Middleware()
		deps.RateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit"))
	} else {
		deps.Catalog = handler.NewCatalogHandler(st, nil)
	}
	router.RegisterRoutes(e, deps)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("store", cfg.StoreDriver), zap.String("lock", cfg.LockBackend))
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
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
