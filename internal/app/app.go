package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/alex-rublevsky/rublevsky-studio/internal/auth"
	"github.com/alex-rublevsky/rublevsky-studio/internal/config"
	"github.com/alex-rublevsky/rublevsky-studio/internal/event"
	handler "github.com/alex-rublevsky/rublevsky-studio/internal/handler/http"
	"github.com/alex-rublevsky/rublevsky-studio/internal/mailer"
	"github.com/alex-rublevsky/rublevsky-studio/internal/migrations"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository/postgres"
	redisrepo "github.com/alex-rublevsky/rublevsky-studio/internal/repository/redis"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/database"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/health"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/httpclient"
	pkgkafka "github.com/alex-rublevsky/rublevsky-studio/pkg/kafka"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/tracing"
)

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	pool            *pgxpool.Pool
	rdb             *redis.Client
	producer        *pkgkafka.Producer
	consumers       []*pkgkafka.Consumer
	httpServer      *http.Server
	shutdownTracing func(context.Context) error
	cancel          context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing(version))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)

	renderer, err := mailer.NewRenderer(mailer.Shop{
		Name:       cfg.ShopName,
		URL:        cfg.ShopURL,
		OwnerEmail: cfg.ShopOwnerEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := OpenPostgres(startCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.RunMigrations(startCtx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	rdb, err := database.NewRedisClient(startCtx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Kafka is optional: without brokers events are dropped.
	var (
		publisher pkgkafka.Publisher = pkgkafka.NopPublisher{}
		producer  *pkgkafka.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events are disabled")
	}

	sender := NewMailSender(cfg, logger)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	cartRepo := redisrepo.NewCartRepository(rdb, cfg.CartTTL)
	productCache := redisrepo.NewProductCache(rdb, cfg.ProductCacheTTL)

	// Services.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry)
	producerEvents := event.NewProducer(publisher, logger)
	svcs := handler.Services{
		Products: service.NewProductService(productRepo, productCache, producerEvents, logger, cfg.Currency),
		Catalog: service.NewCatalogService(
			postgres.NewCategoryRepository(pool),
			postgres.NewBrandRepository(pool),
			postgres.NewTeaCategoryRepository(pool),
			productCache,
			logger,
		),
		Blog: service.NewBlogService(postgres.NewBlogRepository(pool), productRepo, logger),
		Cart: service.NewCartService(cartRepo, productRepo, logger, cfg.CartTTL),
		Checkout: service.NewCheckoutService(cartRepo, productRepo, orderRepo, productCache, producerEvents, renderer, sender, logger,
			service.CheckoutConfig{
				Currency:          cfg.Currency,
				Shipping:          cfg.ShippingPolicy(),
				EmailTimeout:      cfg.MailTimeout,
				InlineOwnerAlerts: producer == nil,
			}),
		Orders: service.NewOrderService(orderRepo, productCache, producerEvents, logger),
		Auth:   service.NewAuthService(postgres.NewUserRepository(pool), jwtManager, logger),
	}

	// With a broker, owner alerts are delivered by the order.created
	// consumer; without one, checkout sends them inline.
	var consumers []*pkgkafka.Consumer
	if producer != nil {
		notify := event.NewConsumerHandler(renderer, sender, logger)
		idempotent := pkgkafka.IdempotentHandler(redisrepo.NewIdempotencyStore(rdb, cfg.IdempotencyTTL), notify.Handle, logger)
		consumers = event.NewConsumers(cfg.KafkaBrokers, idempotent, logger)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if producer != nil {
		healthHandler.RegisterOptional("kafka", producer.Ping)
	}

	// The router's background work stops with the app.
	runCtx, cancelRun := context.WithCancel(context.Background())
	router := handler.NewRouter(runCtx, svcs, jwtManager.Validator(), healthHandler, handler.RouterConfig{
		ServiceName:        config.ServiceName,
		CORSOrigins:        cfg.CORSOrigins,
		PprofCIDRs:         cfg.PprofCIDRs,
		RequestTimeout:     cfg.RequestTimeout,
		CatalogMaxAge:      cfg.CatalogMaxAge,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		rdb:             rdb,
		producer:        producer,
		consumers:       consumers,
		httpServer:      httpServer,
		shutdownTracing: shutdownTracing,
		cancel:          cancelRun,
	}, nil
}

// OpenPostgres connects to PostgreSQL with the configured settings.
func OpenPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL", slog.String("target", pgCfg.Target()))
	return pool, nil
}

// NewMailSender returns the instrumented sender selected by MAIL_TRANSPORT.
func NewMailSender(cfg *config.Config, logger *slog.Logger) mailer.Sender {
	var sender mailer.Sender
	switch cfg.MailTransport {
	case config.MailTransportSMTP:
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
		})
	case config.MailTransportAPI:
		httpCfg := httpclient.DefaultConfig()
		httpCfg.Timeout = cfg.MailTimeout
		client := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg),
			httpclient.DefaultCircuitBreakerConfig("mail-api"), logger)
		sender = mailer.NewAPISender(client, mailer.APIConfig{
			Endpoint: cfg.MailAPIURL,
			APIKey:   cfg.MailAPIKey,
			From:     cfg.MailFrom,
		})
	default:
		sender = mailer.NewLogSender(logger)
	}
	logger.Info("mail transport selected", slog.String("sender", sender.Name()))
	return mailer.Instrument(sender)
}

// Run starts the HTTP server and event consumers and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, c := range a.consumers {
		wg.Add(1)
		go func(c *pkgkafka.Consumer) {
			defer wg.Done()
			if err := c.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("kafka consumer stopped", slog.String("error", err.Error()))
			}
		}(c)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopConsumers()
	wg.Wait()

	if err := a.Shutdown(); err != nil {
		return err
	}
	return runErr
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.cancel()

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}
	a.pool.Close()

	if err := a.shutdownTracing(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
