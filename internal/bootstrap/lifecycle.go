package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "hermes/internal/adapters/clickhouse"
	"hermes/internal/adapters/kafka"
	redisclient "hermes/internal/adapters/redis"
	"hermes/internal/api"
	chrepo "hermes/internal/repository/clickhouse"
	usagesvc "hermes/internal/services/usage"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// Shutdown performs coordinated cleanup of all components in the correct order:
// 1. HTTP server stops accepting requests
// 2. Context cancel signals background components
// 3. Kafka consumer closes, unblocking ReadMessage
// 4. Goroutines drain
// 5. Usage sinks flush (in-flight deliveries, then the batch writer)
// 6. Kafka producer closes after everything that publishes
// 7. Error tracker and logs flush
// 8. Database connections close last
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	cancel context.CancelFunc,
	httpServer *api.Server,
	usageKafkaConsumer *kafka.Consumer,
	usageService *usagesvc.Service,
	usageRepo *chrepo.UsageRepository,
	kafkaProducer *kafka.Producer,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server (5s timeout)
	// ========================================
	log.Info("[1/8] Stopping HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
	defer httpCancel()

	if err := httpServer.Shutdown(httpCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	} else {
		log.Info("✓ HTTP server stopped")
	}

	// ========================================
	// Step 2: Cancel application context
	// ========================================
	cancel()

	// ========================================
	// Step 3: Close Kafka Consumer
	// Critical: close BEFORE waiting for goroutines to unblock ReadMessage
	// ========================================
	log.Info("[2/8] Closing Kafka consumer...")
	if usageKafkaConsumer != nil {
		if err := usageKafkaConsumer.Close(); err != nil {
			log.Error("Kafka consumer close failed", "error", err)
		}
	}
	log.Info("✓ Kafka consumer closed")

	// ========================================
	// Step 4: Wait for Goroutines
	// ========================================
	log.Info("[3/8] Waiting for goroutines...")
	l.waitForGoroutines(wg, 5*time.Second, log)

	// ========================================
	// Step 5: Flush Usage Sinks
	// In-flight sink deliveries first, then the batch writer
	// ========================================
	log.Info("[4/8] Flushing usage sinks...")
	if usageService != nil {
		drainCtx, drainCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		if err := usageService.Close(drainCtx); err != nil {
			log.Warn("Usage sink drain timed out", "error", err)
		}
		drainCancel()
	}
	if usageRepo != nil {
		stopCtx, stopCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		if err := usageRepo.Stop(stopCtx); err != nil {
			log.Error("Usage batch writer stop failed", "error", err)
		}
		stopCancel()
	}
	log.Info("✓ Usage sinks flushed")

	// ========================================
	// Step 6: Close Kafka Producer
	// ========================================
	log.Info("[5/8] Closing Kafka producer...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 7: Flush Error Tracker
	// ========================================
	log.Info("[6/8] Flushing error tracker...")
	l.flushErrorTracker(errorTracker, shutdownCtx, log)

	// ========================================
	// Step 8: Sync Logs
	// ========================================
	log.Info("[7/8] Syncing logs...")
	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	} else {
		log.Info("✓ Logs synced")
	}

	// ========================================
	// Step 9: Close Database Connections
	// LAST - other components may need them during shutdown
	// ========================================
	log.Info("[8/8] Closing database connections...")
	l.closeDatabases(chClient, redisClient, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warn("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(tracker errors.Tracker, ctx context.Context, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Error("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

// closeDatabases closes all database connections
func (l *Lifecycle) closeDatabases(
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	log *logger.Logger,
) {
	var dbErrors []error

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "clickhouse"))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "redis"))
		}
	}

	if len(dbErrors) > 0 {
		log.Error("Database close errors", "errors", dbErrors)
	} else {
		log.Info("✓ Database connections closed")
	}
}
