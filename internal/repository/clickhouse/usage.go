package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	chbatch "hermes/pkg/clickhouse"
	"hermes/pkg/errors"
	"hermes/pkg/logger"

	"hermes/internal/domain/usage"
)

// UsageRepository persists usage records in ClickHouse.
//
// Writes go through a BatchWriter: records accumulate in memory and are
// inserted as one batch when the buffer fills or ages out. Single row
// inserts are pathological for ClickHouse, so Store never talks to the
// database directly.
type UsageRepository struct {
	conn        driver.Conn
	batchWriter *chbatch.BatchWriter[*usage.Record]
	log         *logger.Logger
}

// NewUsageRepository creates a usage repository with batching enabled
func NewUsageRepository(conn driver.Conn) *UsageRepository {
	repo := &UsageRepository{
		conn: conn,
		log:  logger.Get().With("component", "usage_repository"),
	}

	repo.batchWriter = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[*usage.Record]{
		FlushFunc:    repo.flushBatch,
		TableName:    "usage_events",
		MaxBatchSize: 500,
		MaxAge:       5 * time.Second,
	})

	return repo
}

// Start begins background flushing of buffered records
func (r *UsageRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop flushes remaining records and shuts the writer down
func (r *UsageRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Store buffers a usage record for batch insertion
func (r *UsageRepository) Store(ctx context.Context, rec *usage.Record) error {
	return r.batchWriter.Add(ctx, rec)
}

// EnsureSchema creates the usage_events table if it does not exist
func (r *UsageRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS usage_events (
			timestamp DateTime64(3),
			event_id String,
			request_id String,
			model LowCardinality(String),
			provider_kind LowCardinality(String),
			operation LowCardinality(String),
			prompt_tokens UInt32,
			completion_tokens UInt32,
			total_tokens UInt32,
			input_cost_usd Float64,
			output_cost_usd Float64,
			total_cost_usd Float64,
			status LowCardinality(String),
			error_kind LowCardinality(String),
			cache_hit Bool,
			latency_ms UInt32,
			created_at DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (model, timestamp)
	`

	if err := r.conn.Exec(ctx, query); err != nil {
		return errors.Wrap(err, "failed to create usage_events table")
	}

	return nil
}

// flushBatch writes accumulated records using ClickHouse native batch insert
func (r *UsageRepository) flushBatch(ctx context.Context, batch []*usage.Record) error {
	if len(batch) == 0 {
		return nil
	}

	query := `
		INSERT INTO usage_events (
			timestamp, event_id, request_id,
			model, provider_kind, operation,
			prompt_tokens, completion_tokens, total_tokens,
			input_cost_usd, output_cost_usd, total_cost_usd,
			status, error_kind, cache_hit,
			latency_ms, created_at
		) VALUES (
			?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?
		)
	`

	start := time.Now()

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Close()

	for _, rec := range batch {
		err := stmt.Append(
			rec.Timestamp, rec.EventID, rec.RequestID,
			rec.Model, rec.ProviderKind, rec.Operation,
			rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
			rec.InputCostUSD, rec.OutputCostUSD, rec.TotalCostUSD,
			rec.Status, rec.ErrorKind, rec.CacheHit,
			rec.LatencyMs, rec.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append usage record to batch")
		}
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrap(err, "failed to send usage batch")
	}

	r.log.Infof("Batch inserted %d usage records in %v", len(batch), time.Since(start))
	return nil
}

// GetModelSummaries aggregates usage per model since the given time
func (r *UsageRepository) GetModelSummaries(ctx context.Context, since time.Time) ([]usage.Summary, error) {
	query := `
		SELECT
			model,
			count() AS requests,
			countIf(status = 'error') AS errors,
			countIf(cache_hit) AS cache_hits,
			sum(prompt_tokens) AS prompt_tokens,
			sum(completion_tokens) AS completion_tokens,
			sum(total_tokens) AS total_tokens,
			sum(total_cost_usd) AS total_cost_usd
		FROM usage_events
		WHERE timestamp >= ?
		GROUP BY model
		ORDER BY total_cost_usd DESC
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model summaries")
	}
	defer rows.Close()

	var summaries []usage.Summary
	for rows.Next() {
		var s usage.Summary
		if err := rows.Scan(
			&s.Model, &s.Requests, &s.Errors, &s.CacheHits,
			&s.PromptTokens, &s.CompletionTokens, &s.TotalTokens,
			&s.TotalCostUSD,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan model summary")
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// GetTotalCost returns the total USD cost accrued since the given time
func (r *UsageRepository) GetTotalCost(ctx context.Context, since time.Time) (float64, error) {
	query := `
		SELECT sum(total_cost_usd)
		FROM usage_events
		WHERE timestamp >= ?
	`

	var total float64
	row := r.conn.QueryRow(ctx, query, since)
	if err := row.Scan(&total); err != nil {
		return 0, errors.Wrap(err, "failed to query total cost")
	}

	return total, nil
}
