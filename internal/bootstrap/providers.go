package bootstrap

import (
	chclient "hermes/internal/adapters/clickhouse"
	"hermes/internal/adapters/config"
	errnoop "hermes/internal/adapters/errors/noop"
	"hermes/internal/adapters/errors/sentry"
	"hermes/internal/adapters/kafka"
	"hermes/internal/adapters/providers"
	redisclient "hermes/internal/adapters/redis"
	"hermes/internal/api"
	"hermes/internal/api/health"
	proxyapi "hermes/internal/api/proxy"
	"hermes/internal/consumers"
	"hermes/internal/events"
	"hermes/internal/metrics"
	chrepo "hermes/internal/repository/clickhouse"
	"hermes/internal/router"
	proxysvc "hermes/internal/services/proxy"
	"hermes/internal/services/respcache"
	usagesvc "hermes/internal/services/usage"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the optional backends
func (c *Container) MustInitInfrastructure() {
	cfg := c.Config

	if cfg.Redis.Enabled {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			panic("failed to connect to redis: " + err.Error())
		}
		c.Redis = client
		c.Log.Infof("✓ Redis connected (%s)", cfg.Redis.Addr())
	}

	if cfg.ClickHouse.Enabled {
		client, err := chclient.NewClient(cfg.ClickHouse)
		if err != nil {
			panic("failed to connect to clickhouse: " + err.Error())
		}
		c.CH = client

		repo := chrepo.NewUsageRepository(client.Conn())
		if err := repo.EnsureSchema(c.Context); err != nil {
			panic("failed to ensure clickhouse schema: " + err.Error())
		}
		c.UsageRepo = repo
		c.Log.Infof("✓ ClickHouse connected (%s:%d)", cfg.ClickHouse.Host, cfg.ClickHouse.Port)
	}

	if cfg.Kafka.Enabled {
		c.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
		})
		c.Log.Infof("✓ Kafka producer configured (brokers: %v)", cfg.Kafka.Brokers)
	}
}

// ========================================
// Phase 3: Routing Layer
// ========================================

// MustInitRouting loads the model table and builds the router
func (c *Container) MustInitRouting() {
	cfg := c.Config

	models, defaultModel, err := config.LoadModels(cfg.Models.Path)
	if err != nil {
		panic("failed to load models config: " + err.Error())
	}

	var limiters *providers.RateLimiterFactory
	if c.Redis != nil {
		limiters = providers.NewRateLimiterFactory(c.Redis.Client())
	} else {
		limiters = providers.NewRateLimiterFactory(nil)
	}

	registry := providers.DefaultRegistry(providers.Deps{Limiters: limiters})

	rt, err := router.New(router.Config{
		Models:       models,
		DefaultModel: defaultModel,
	}, registry)
	if err != nil {
		panic("failed to build router: " + err.Error())
	}

	c.Router = rt
	if cfg.Retry.Enabled {
		c.Router = router.WithRetry(rt, router.RetryConfig{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Strategy:     router.RetryStrategy(cfg.Retry.Strategy),
			Multiplier:   cfg.Retry.Multiplier,
		})
		c.Log.Infof("✓ Retry decorator enabled (max retries: %d)", cfg.Retry.MaxRetries)
	}

	metrics.ModelsConfigured.Set(float64(len(models)))
}

// ========================================
// Phase 4: Services Layer
// ========================================

// MustInitServices wires usage accounting, caching and the proxy service
func (c *Container) MustInitServices() {
	cfg := c.Config

	// Usage sinks: Kafka when configured, otherwise direct ClickHouse.
	// With both enabled the consumer owns the ClickHouse write so records
	// are not stored twice.
	var usageCfg usagesvc.Config
	if c.KafkaProducer != nil {
		usageCfg.Publisher = events.NewUsagePublisher(c.KafkaProducer, c.Log)
	} else if c.UsageRepo != nil {
		usageCfg.Store = c.UsageRepo
	}

	c.UsageService = usagesvc.NewService(usageCfg)
	metrics.RegisterUsageCollector(c.UsageService)

	if cfg.Cache.Enabled {
		if c.Redis == nil {
			panic("response cache requires REDIS_ENABLED=true")
		}
		c.Cache = respcache.New(c.Redis, cfg.Cache.TTL)
		c.Log.Infof("✓ Response cache enabled (ttl: %v)", cfg.Cache.TTL)
	}

	c.ProxyService = proxysvc.NewService(c.Router, c.UsageService, c.Cache)
}

// ========================================
// Phase 5: Application Layer
// ========================================

// MustInitApplication builds HTTP handlers and the server
func (c *Container) MustInitApplication() {
	cfg := c.Config

	c.HealthHandler = health.New(c.Log, c.CH, c.Redis, cfg.App.Name, Version)

	proxyHandler := proxyapi.NewHandler(c.ProxyService, c.UsageService, c.Log)

	c.HTTPServer = api.NewServer(api.ServerConfig{
		Port:        cfg.Server.Port,
		ServiceName: cfg.App.Name,
		Version:     Version,
	}, proxyHandler, c.HealthHandler, c.Log)
}

// ========================================
// Phase 6: Background Processing
// ========================================

// MustInitBackground wires the usage consumer when the full pipeline is on
func (c *Container) MustInitBackground() {
	cfg := c.Config

	if !cfg.Kafka.Enabled || c.UsageRepo == nil {
		return
	}

	c.UsageKafkaConsumer = kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   kafka.TopicUsage,
	})

	c.UsageConsumer = consumers.NewUsageConsumer(c.UsageKafkaConsumer, c.UsageRepo, c.Log)
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}
