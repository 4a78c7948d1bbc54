package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/mall-admin/internal/cache"
	"github.com/iliyamo/mall-admin/internal/config"
	"github.com/iliyamo/mall-admin/internal/database"
	"github.com/iliyamo/mall-admin/internal/handler"
	"github.com/iliyamo/mall-admin/internal/logging"
	"github.com/iliyamo/mall-admin/internal/middleware"
	"github.com/iliyamo/mall-admin/internal/queue"
	"github.com/iliyamo/mall-admin/internal/repository"
	"github.com/iliyamo/mall-admin/internal/router"
	"github.com/iliyamo/mall-admin/internal/service"
	"github.com/iliyamo/mall-admin/internal/storage"
	"github.com/iliyamo/mall-admin/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(level(cfg.LogLevel), os.Stdout)
	logger := logging.New("mall-admin")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warnj(log.JSON{"msg": "redis unavailable; cache and rate limit disabled", "error": err.Error()})
		rdb = nil
	} else {
		defer rdb.Close()
	}
	gens := cache.NewGenerations(rdb, cfg.Cache.Prefix, logging.New("cache"))

	var auditor service.Auditor = queue.LogRecorder{Log: logging.New("audit")}
	if cfg.RabbitURL != "" {
		auditor = queue.NewPublisher(cfg.RabbitURL, cfg.AuditQueue, logging.New("audit"))
	}
	opts := service.Options{
		Atomic:          cfg.AtomicWrites,
		StrictLocks:     cfg.StrictLocks,
		OverlapOnCreate: cfg.OverlapOnCreate,
		Auditor:         auditor,
	}
	if gens != nil {
		opts.Invalidator = gens
	}

	uploader, err := storage.NewMediaUploader(ctx, cfg.Media.Bucket, cfg.Media.Region, cfg.Media.PublicBaseURL)
	if err != nil {
		return err
	}
	var media handler.MediaUploader
	if uploader.Enabled() {
		media = uploader
	}

	e := newEcho()
	router.RegisterRoutes(e, handler.NewHealthHandler(st))
	router.RegisterAdmin(e, router.Admin{
		JWTSecret:   cfg.JWTSecret,
		Currencies:  handler.NewCurrencyHandler(service.NewCurrencyPivotManager(st, withLogger(opts, "currency"))),
		Events:      handler.NewEventHandler(service.NewEventService(st, withLogger(opts, "event")), media),
		Assignments: handler.NewAssignmentHandler(service.NewAssignmentManager(st, withLogger(opts, "assignment"))),
		Categories:  handler.NewCategoryHandler(service.NewCategoryService(st, withLogger(opts, "category"))),
		Cache: func(ns string) echo.MiddlewareFunc {
			return middleware.NewRedisCache(cfg.Cache, rdb, gens, ns, logging.New("cache"))
		},
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, logging.New("ratelimit")),
	})

	errc := make(chan error, 1)
	go func() {
		logger.Infoj(log.JSON{"msg": "listening", "addr": ":" + cfg.Port, "env": cfg.Env, "store": cfg.StoreDriver,
			"atomic_writes": cfg.AtomicWrites, "redis": rdb != nil, "broker": cfg.RabbitURL != "", "media_uploads": media != nil})
		errc <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Infoj(log.JSON{"msg": "shutting down"})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func withLogger(o service.Options, prefix string) service.Options {
	o.Logger = logging.New(prefix)
	return o
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	httpLog := logging.New("http")
	e.Logger = httpLog
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := log.JSON{"msg": "request", "method": v.Method, "uri": v.URI, "status": v.Status,
				"latency_ms": v.Latency.Milliseconds(), "remote_ip": v.RemoteIP, "request_id": v.RequestID}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
				httpLog.Errorj(fields)
				return nil
			}
			httpLog.Infoj(fields)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	return e
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	schema := repository.Schema()
	if cfg.StoreDriver == config.DriverMemory {
		return store.NewMemStore(schema), func() {}, nil
	}
	db, err := database.Open(ctx, database.Options{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName})
	if err != nil {
		return nil, nil, err
	}
	return store.NewSQLStore(db, schema), func() { _ = db.Close() }, nil
}
