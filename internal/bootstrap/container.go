package bootstrap

import (
	"context"
	"sync"

	chclient "hermes/internal/adapters/clickhouse"
	"hermes/internal/adapters/config"
	"hermes/internal/adapters/kafka"
	redisclient "hermes/internal/adapters/redis"
	"hermes/internal/api"
	"hermes/internal/api/health"
	"hermes/internal/consumers"
	chrepo "hermes/internal/repository/clickhouse"
	"hermes/internal/router"
	proxysvc "hermes/internal/services/proxy"
	"hermes/internal/services/respcache"
	usagesvc "hermes/internal/services/usage"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (optional backends)
	CH    *chclient.Client
	Redis *redisclient.Client

	// Messaging
	KafkaProducer      *kafka.Producer
	UsageKafkaConsumer *kafka.Consumer

	// Domain Layer
	UsageRepo    *chrepo.UsageRepository
	Router       router.Routing
	UsageService *usagesvc.Service
	Cache        *respcache.Cache
	ProxyService *proxysvc.Service

	// Background Processing
	UsageConsumer *consumers.UsageConsumer

	// Application Layer
	HTTPServer    *api.Server
	HealthHandler *health.Handler

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Lifecycle: NewLifecycle(),
		WG:        &sync.WaitGroup{},
		Context:   ctx,
		Cancel:    cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRouting()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Run starts all long-running components. Blocks only inside goroutines:
// the caller waits for a shutdown signal.
func (c *Container) Run() error {
	// Batch writer runs standalone in direct-store mode. In consumer mode
	// the consumer owns its start/stop.
	if c.UsageRepo != nil && c.UsageConsumer == nil {
		c.UsageRepo.Start(c.Context)
	}

	if c.UsageConsumer != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := c.UsageConsumer.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Error("Usage consumer failed", "error", err)
			}
		}()
		c.Log.Info("✓ Usage consumer started")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Lifecycle.Shutdown(
		c.WG,
		c.Cancel,
		c.HTTPServer,
		c.UsageKafkaConsumer,
		c.UsageService,
		c.UsageRepo,
		c.KafkaProducer,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
