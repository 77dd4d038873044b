package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	kafkaadapter "hermes/internal/adapters/kafka"
	"hermes/internal/domain/usage"
	chrepo "hermes/internal/repository/clickhouse"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// storeTimeout bounds a single buffered write so shutdown cannot hang on
// a stuck ClickHouse connection.
const storeTimeout = 5 * time.Second

// UsageConsumer reads usage events from Kafka and writes to ClickHouse in
// batches. This decouples request handling from ClickHouse availability.
type UsageConsumer struct {
	consumer  *kafkaadapter.Consumer
	usageRepo *chrepo.UsageRepository
	log       *logger.Logger
}

// NewUsageConsumer creates a new usage consumer
func NewUsageConsumer(
	consumer *kafkaadapter.Consumer,
	usageRepo *chrepo.UsageRepository,
	log *logger.Logger,
) *UsageConsumer {
	return &UsageConsumer{
		consumer:  consumer,
		usageRepo: usageRepo,
		log:       log,
	}
}

// Start consumes usage events until the context is cancelled. It owns the
// batch writer lifecycle: the writer starts here and is stopped with a
// final flush on any exit path.
func (c *UsageConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting usage consumer (writes to ClickHouse in batches)...")

	c.usageRepo.Start(ctx)

	defer func() {
		c.log.Info("Closing usage consumer...")
		if err := c.consumer.Close(); err != nil {
			c.log.Error("Failed to close usage consumer", "error", err)
		}
	}()

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.usageRepo.Stop(stopCtx); err != nil {
			c.log.Error("Failed to stop usage batch writer", "error", err)
		}
	}()

	err := c.consumer.Consume(ctx, c.handleUsageEvent)
	if ctx.Err() != nil {
		c.log.Info("Usage consumer stopped (context cancelled)")
		return nil
	}
	return err
}

// handleUsageEvent decodes one event and buffers it for batch insert
func (c *UsageConsumer) handleUsageEvent(ctx context.Context, msg kafka.Message) error {
	var rec usage.Record
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return errors.Wrap(err, "unmarshal usage event")
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	// Detached from the consume context so an in-flight write survives
	// shutdown, bounded so it cannot hang.
	storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := c.usageRepo.Store(storeCtx, &rec); err != nil {
		return errors.Wrap(err, "store usage record")
	}

	c.log.Debug("Usage event buffered for batch insert",
		"model", rec.Model,
		"operation", rec.Operation,
		"tokens", rec.TotalTokens,
		"cost_usd", rec.TotalCostUSD,
	)

	return nil
}
