package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/coursereviews/pkg/database"
	"github.com/utafrali/coursereviews/pkg/health"
	pkgkafka "github.com/utafrali/coursereviews/pkg/kafka"
	"github.com/utafrali/coursereviews/pkg/middleware"
	"github.com/utafrali/coursereviews/pkg/tracing"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/config"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/event"
	handler "github.com/utafrali/coursereviews/services/review/internal/handler/http"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
	"github.com/utafrali/coursereviews/services/review/internal/repository/memory"
	"github.com/utafrali/coursereviews/services/review/internal/repository/postgres"
	"github.com/utafrali/coursereviews/services/review/internal/service"
	"github.com/utafrali/coursereviews/services/review/migrations"
)

const serviceName = "review"

// idempotencyTTL bounds how long a consumed event ID is remembered.
const idempotencyTTL = 24 * time.Hour

// App wires together all dependencies and runs the review service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	repairConsumer *pkgkafka.Consumer
	stats          *service.StatsService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// Optional infrastructure (Redis, Kafka, tracing) is only dialed when enabled.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeClients()
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	store, err := a.openStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	loader, invalidator, err := a.openCache(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Kafka producer; a nil producer turns event publishing into a no-op.
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		if err := a.producer.Ping(ctx); err != nil {
			logger.Warn("kafka unreachable, continuing in degraded mode", slog.String("error", err.Error()))
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	// Build the dependency graph.
	coordinator := cache.NewCoordinator(invalidator, logger)
	events := event.NewProducer(a.producer, logger)

	stats := service.NewStatsService(store.Courses, store.Instructors, coordinator, cfg.StatsRefreshConcurrency, logger)
	interactions := service.NewInteractionService(store.Interactions, coordinator, events, logger)
	notifications := service.NewNotificationService(store.Notifications, store.Subscriptions, loader, coordinator, logger)
	svcs := handler.Services{
		Reviews:       service.NewReviewService(store, stats, interactions, notifications, coordinator, events, logger),
		Interactions:  interactions,
		Subscriptions: service.NewSubscriptionService(store.Subscriptions, coordinator, events, logger),
		Notifications: notifications,
		Listings:      service.NewListingService(store, loader, logger),
		Catalog:       service.NewCatalogService(store, loader, coordinator, logger),
		Stats:         stats,
	}
	a.stats = stats

	if cfg.KafkaEnabled {
		a.repairConsumer = a.newRepairConsumer(stats)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	a.stopBackground = stopBackground

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(bgCtx, svcs, handler.RouterConfig{
		ServiceName:    serviceName,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxRequestBodyBytes,
		CORS:           cors,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		CatalogMaxAge:  60,
	}, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// openStore connects the configured collection store.
func (a *App) openStore(ctx context.Context, healthHandler *health.Handler) (repository.Store, error) {
	cfg := a.cfg
	if cfg.StoreBackend == config.BackendMemory {
		a.logger.Warn("using in-memory store, data will not survive a restart")
		return memory.New().Repositories(), nil
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, a.logger)
	if err != nil {
		return repository.Store{}, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return repository.Store{}, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), a.logger)
	}

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	return postgres.NewStore(pool), nil
}

// openCache connects the Redis read cache, or falls back to reading through
// to the store on every request when caching is disabled.
func (a *App) openCache(ctx context.Context, healthHandler *health.Handler) (cache.Loader, cache.Invalidator, error) {
	cfg := a.cfg
	if !cfg.CacheEnabled {
		a.logger.Info("read cache disabled")
		return cache.Nop{}, cache.Nop{}, nil
	}

	client, err := database.NewRedisClient(ctx, cfg.Redis(), a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	rc := cache.NewRedisCache(client, cfg.CachePrefix, cfg.CacheTTL, cache.DefaultBreakerConfig(), a.logger)
	return rc, rc, nil
}

// newRepairConsumer subscribes the stats repairer to repair requests.
// Redelivered events are skipped by ID; failures go to the dead-letter topic.
func (a *App) newRepairConsumer(stats *service.StatsService) *pkgkafka.Consumer {
	var store pkgkafka.IdempotencyStore
	if a.redis != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.redis, a.cfg.CachePrefix+":events", idempotencyTTL)
	} else {
		store = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	}

	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	consumer := event.NewConsumer(stats, a.logger)
	return pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  a.cfg.KafkaGroupID,
		Topic:    event.TopicStatsRepairRequested,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(store, consumer.HandleStatsRepair, a.logger), a.dlq, a.logger)
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server, the repair consumer and the stats refresh job,
// then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start Kafka consumer.
	if a.repairConsumer != nil {
		go func() {
			if err := a.repairConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("stats repair consumer: %w", err)
			}
		}()
	}

	// Start background stats refresh job.
	if a.cfg.StatsRefreshInterval > 0 {
		go a.runStatsRefresh(ctx, a.cfg.StatsRefreshInterval)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// runStatsRefresh periodically recomputes every course's and instructor's
// stats from their reviews, repairing drift left by partial writes.
func (a *App) runStatsRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refreshStats(ctx)
		}
	}
}

func (a *App) refreshStats(ctx context.Context) {
	for _, t := range []domain.ReviewType{domain.ReviewTypeCourse, domain.ReviewTypeInstructor} {
		summary, err := a.stats.RecomputeAll(ctx, t)
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Error("stats refresh error", slog.String("type", string(t)), slog.String("error", err.Error()))
			}
			return
		}
		a.logger.Info("stats refreshed",
			slog.String("type", string(t)),
			slog.Int("total", summary.Total),
			slog.Int("failed", summary.Failed),
			slog.Duration("duration", summary.Duration),
		)
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer, DLQ writer and producer
// 4. Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if a.stopBackground != nil {
		a.stopBackground()
	}

	// 2. Flush pending spans.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3-4. Messaging, then storage.
	errs = append(errs, a.closeClients()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeClients releases every external client that was opened.
func (a *App) closeClients() []error {
	var errs []error
	closeWith := func(what string, fn func() error) {
		if err := fn(); err != nil {
			a.logger.Error(what+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.repairConsumer != nil {
		closeWith("kafka consumer", a.repairConsumer.Close)
		a.repairConsumer = nil
	}
	if a.dlq != nil {
		closeWith("kafka dlq", a.dlq.Close)
		a.dlq = nil
	}
	if a.producer != nil {
		closeWith("kafka producer", a.producer.Close)
		a.producer = nil
	}
	if a.redis != nil {
		closeWith("redis", a.redis.Close)
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return errs
}
