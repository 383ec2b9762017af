package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iliyamo/seminar-hall-booking/internal/booking"
	"github.com/iliyamo/seminar-hall-booking/internal/cache"
	"github.com/iliyamo/seminar-hall-booking/internal/config"
	"github.com/iliyamo/seminar-hall-booking/internal/database"
	"github.com/iliyamo/seminar-hall-booking/internal/handler"
	"github.com/iliyamo/seminar-hall-booking/internal/middleware"
	"github.com/iliyamo/seminar-hall-booking/internal/queue"
	"github.com/iliyamo/seminar-hall-booking/internal/repository"
	"github.com/iliyamo/seminar-hall-booking/internal/router"
	"github.com/iliyamo/seminar-hall-booking/internal/session"
	"github.com/iliyamo/seminar-hall-booking/internal/storage"
	"github.com/iliyamo/seminar-hall-booking/internal/telemetry"
)

func main() {
	cfg := config.Load()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup("seminar-hall-booking")
	defer func() { _ = shutdownTracing(context.Background()) }()

	if cfg.DBMigrate {
		if err := database.Migrate(cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; caching and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	imgCfg := config.LoadImageConfig()
	images, err := storage.NewImageResolver(ctx, imgCfg)
	if err != nil {
		log.Fatalf("image storage: %v", err)
	}

	var events queue.Publisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		pub := queue.NewAMQPPublisher(cfg.RabbitURL, cfg.EventBuffer)
		events = pub
		go func() { _ = pub.Run(ctx) }()
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, cfg.AuditLog); err != nil && ctx.Err() == nil {
				log.Printf("audit consumer stopped: %v", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	sessions := session.NewProvider(
		repository.NewProfileRepo(db),
		repository.NewTokenRepo(db),
		events,
		session.Options{
			Secret:         cfg.JWTSecret,
			AccessTTLMin:   cfg.AccessTTLMin,
			RefreshTTLDays: cfg.RefreshTTLDays,
			BcryptCost:     cfg.BcryptCost,
		},
	)
	sessions.Metrics = metrics

	var lists booking.ListCache
	if cacheCfg.Enabled {
		lists = cache.NewBookingLists(rdb, cacheCfg.Prefix, cacheCfg.ListTTL)
	}
	bookings := booking.NewService(
		repository.NewBookingRepo(db),
		repository.NewHallRepo(db),
		lists,
		events,
		images,
	)
	bookings.Strict = cfg.StrictTransitions
	bookings.Metrics = metrics

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("%s %s %d %s ip=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RemoteIP, v.Error)
				return nil
			}
			log.Printf("%s %s %d %s ip=%s", v.Method, v.URI, v.Status, v.Latency, v.RemoteIP)
			return nil
		},
	}))

	authH := handler.NewAuthHandler(sessions, cfg.AdminRegistrationCode)
	bookingH := handler.NewBookingHandler(bookings)

	router.RegisterRoutes(e, handler.Health(db), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.RegisterAuth(e, authH, sessions, middleware.NewTokenBucket(rlCfg, rdb))
	router.RegisterBookings(e, bookingH, authH, sessions, middleware.NewRedisCache(cacheCfg.ClampToImageExpiry(imgCfg), rdb))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(e, "seminar-hall-booking"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s (env=%s, db=%s, strict=%v)", srv.Addr, cfg.Env, cfg.DBDriver, cfg.StrictTransitions)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
