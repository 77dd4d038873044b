package usage

import (
	"sync"

	domain "hermes/internal/domain/usage"
)

// Tracker accumulates per-model usage counters in memory.
// It is the always-on sink: every proxied call lands here regardless of
// whether Kafka or ClickHouse are configured.
type Tracker struct {
	mu     sync.Mutex
	models map[string]*domain.Summary
}

// NewTracker creates a new tracker instance.
func NewTracker() *Tracker {
	return &Tracker{models: make(map[string]*domain.Summary)}
}

// Record folds a usage record into the per-model counters.
func (t *Tracker) Record(rec *domain.Record) domain.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.models[rec.Model]
	if !ok {
		entry = &domain.Summary{Model: rec.Model}
		t.models[rec.Model] = entry
	}

	entry.Requests++
	if rec.Status == domain.StatusError {
		entry.Errors++
	}
	if rec.CacheHit {
		entry.CacheHits++
	}
	entry.PromptTokens += uint64(rec.PromptTokens)
	entry.CompletionTokens += uint64(rec.CompletionTokens)
	entry.TotalTokens += uint64(rec.TotalTokens)
	entry.TotalCostUSD += rec.TotalCostUSD

	return *entry
}

// Snapshot returns a copy of the current per-model counters.
func (t *Tracker) Snapshot() map[string]domain.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	copyMap := make(map[string]domain.Summary, len(t.models))
	for k, v := range t.models {
		copyMap[k] = *v
	}

	return copyMap
}

// TotalCost returns the accumulated USD cost across all models.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, v := range t.models {
		total += v.TotalCostUSD
	}

	return total
}
