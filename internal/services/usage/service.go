package usage

import (
	"context"
	"sync"
	"time"

	domain "hermes/internal/domain/usage"
	"hermes/pkg/logger"
)

// Publisher sends usage records to a message broker.
type Publisher interface {
	PublishUsage(ctx context.Context, rec *domain.Record) error
}

// Store persists usage records directly.
type Store interface {
	Store(ctx context.Context, rec *domain.Record) error
}

// sinkTimeout bounds delivery of a single record to the optional sinks.
const sinkTimeout = 5 * time.Second

// Service fans usage records out to the configured sinks.
//
// The in-memory tracker records synchronously on the request path. The
// optional Kafka publisher and ClickHouse store run in the background with
// their own timeout: a slow or failing sink costs the caller nothing.
type Service struct {
	tracker   *Tracker
	publisher Publisher
	store     Store
	log       *logger.Logger
	wg        sync.WaitGroup
}

// Config wires the optional sinks. Nil fields disable the sink.
type Config struct {
	Publisher Publisher
	Store     Store
}

// NewService creates a usage service with an empty tracker.
func NewService(cfg Config) *Service {
	return &Service{
		tracker:   NewTracker(),
		publisher: cfg.Publisher,
		store:     cfg.Store,
		log:       logger.Get().With("component", "usage_service"),
	}
}

// Record accounts for one proxied call. It never returns an error and never
// blocks on the broker or the database.
func (s *Service) Record(rec *domain.Record) {
	s.tracker.Record(rec)

	if s.publisher == nil && s.store == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()

		if s.publisher != nil {
			if err := s.publisher.PublishUsage(ctx, rec); err != nil {
				s.log.Warnf("Failed to publish usage record for %s: %v", rec.Model, err)
			}
		}

		if s.store != nil {
			if err := s.store.Store(ctx, rec); err != nil {
				s.log.Warnf("Failed to store usage record for %s: %v", rec.Model, err)
			}
		}
	}()
}

// Snapshot returns a copy of the per-model counters.
func (s *Service) Snapshot() map[string]domain.Summary {
	return s.tracker.Snapshot()
}

// TotalCost returns the accumulated USD cost across all models.
func (s *Service) TotalCost() float64 {
	return s.tracker.TotalCost()
}

// Close waits for in-flight sink deliveries, bounded by ctx.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
