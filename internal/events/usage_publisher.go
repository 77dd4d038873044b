package events

import (
	"context"

	"hermes/internal/adapters/kafka"
	"hermes/internal/domain/usage"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// UsagePublisher publishes usage records to Kafka
type UsagePublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewUsagePublisher creates a new usage event publisher
func NewUsagePublisher(producer *kafka.Producer, log *logger.Logger) *UsagePublisher {
	return &UsagePublisher{
		producer: producer,
		log:      log,
	}
}

// PublishUsage publishes a usage record, keyed by model so per-model
// ordering survives partitioning
func (p *UsagePublisher) PublishUsage(ctx context.Context, rec *usage.Record) error {
	if err := p.producer.Publish(ctx, kafka.TopicUsage, rec.Model, rec); err != nil {
		p.log.Error("Failed to publish usage event",
			"model", rec.Model,
			"event_id", rec.EventID,
			"error", err,
		)
		return errors.Wrap(err, "send usage event to kafka")
	}

	p.log.Debug("Usage event published",
		"model", rec.Model,
		"event_id", rec.EventID,
	)

	return nil
}
