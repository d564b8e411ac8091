package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/redisx"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/seed"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.Load()
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	location, err := time.LoadLocation(config.String("CLINIC_TIMEZONE", "UTC"))
	if err != nil {
		logger.Error("invalid CLINIC_TIMEZONE", "err", err)
		panic(err)
	}

	var (
		store    storage.Store
		notifier notify.Dispatcher
		checks   []runtime.ReadyCheck
	)

	switch driver := config.String("STORE_DRIVER", "postgres"); driver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		store = storage.NewMemoryStore()
		notifier = notify.NewMemoryDispatcher(logger)
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}
		pool, err := db.Open(ctx, dbURL, db.Options{
			MaxConns:        int32(config.Int("DB_MAX_CONNS", 10)),
			MaxConnLifetime: config.Duration("DB_MAX_CONN_LIFETIME", time.Hour),
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		list, err := db.LoadMigrations(migrations.FS, ".")
		if err != nil {
			panic(err)
		}
		if err := db.Migrate(ctx, pool, list, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}

		store = storage.NewPgStore(pool)
		outboxRepo := outbox.NewRepository(pool)
		notifier = notify.NewOutboxDispatcher(outboxRepo)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		brokers := config.List("KAFKA_BROKERS", "")
		if len(brokers) == 0 {
			logger.Warn("KAFKA_BROKERS not set; notifications stay in the outbox")
		} else {
			writer := outbox.NewKafkaWriter(brokers)
			defer func() { _ = writer.Close() }()
			publisher := outbox.NewPublisher(outboxRepo, writer, logger, outbox.PublisherConfig{
				PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
				BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
			})
			go publisher.Run(ctx)
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
	default:
		logger.Error("unknown STORE_DRIVER", "driver", driver)
		panic("STORE_DRIVER must be postgres or memory")
	}

	if config.Bool("SEED_DEMO", false) {
		res, err := seed.Run(ctx, store, seed.Options{
			Doctors: config.Int("SEED_DOCTORS", 10),
			Days:    config.Int("SEED_DAYS", 7),
		})
		if err != nil {
			logger.Error("demo seed failed", "err", err)
		} else {
			logger.Info("demo data seeded", "doctors", len(res.Doctors), "windows", res.Windows)
		}
	}

	var locker redisx.Locker
	rateLimit := rateLimitMiddleware(logger, nil)
	if target := redisTarget(); target != "" {
		rdb, err := redisx.NewClient(ctx, target)
		if err != nil {
			logger.Warn("redis unavailable; slot locks disabled", "err", err)
		} else {
			defer func() { _ = rdb.Close() }()
			locker = redisx.NewLocker(rdb, config.Duration("SLOT_LOCK_TTL", 5*time.Second), "clinicbook:slot")
			rateLimit = rateLimitMiddleware(logger, httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, "clinicbook:rl"))
			checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
		}
	}

	if addr := config.String("NOTIFICATION_GRPC_ADDR", ""); addr != "" {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			logger.Warn("notification-service dial failed", "addr", addr, "err", err)
		} else {
			defer func() { _ = conn.Close() }()
			checks = append(checks, runtime.ReadyCheck{Name: "notification-service", Check: grpcx.HealthReadyCheck(conn, "")})
		}
	}

	api := handlers.New(handlers.Deps{
		Availability: availability.NewStore(store, logger),
		Slots:        availability.NewResolver(store),
		Booking: booking.NewCoordinator(store, locker, notifier, logger, booking.Config{
			Location:            location,
			RequireDeclaredSlot: config.Bool("BOOKING_REQUIRE_DECLARED_SLOT", false),
		}),
		Lifecycle: lifecycle.NewService(store, notifier, logger),
		Doctors:   store,
		Logger:    logger,
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/", api.Routes())

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader, handlers.HeaderActorKind, handlers.HeaderActorID},
			MaxAge:         10 * time.Minute,
		}),
		rateLimit,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	grpcSrv.SetServing(true, service)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go grpcSrv.Serve(lis)

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	grpcSrv.SetServing(false, service)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.Shutdown(shutdownCtx)
	logger.Info("servers stopped")
}

func redisTarget() string {
	if v := config.String("REDIS_URL", ""); v != "" {
		return v
	}
	return config.String("REDIS_ADDR", "")
}

// rateLimitMiddleware prefers the shared Redis window so limits hold across
// replicas, falling back to a per-process limiter.
func rateLimitMiddleware(logger *slog.Logger, shared *httpx.RedisRateLimiter) httpx.Middleware {
	if config.Bool("RATE_LIMIT_DISABLED", false) {
		return nil
	}
	if shared != nil {
		return shared.Middleware(logger, true)
	}
	return httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute).Middleware()
}
