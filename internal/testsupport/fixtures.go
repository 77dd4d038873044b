package testsupport

import (
	"time"

	"github.com/google/uuid"

	"hermes/internal/domain/usage"
)

// UsageRecordFixture provides builder pattern for creating test usage records
type UsageRecordFixture struct {
	rec usage.Record
}

// NewUsageRecordFixture creates a default usage record for testing
func NewUsageRecordFixture() *UsageRecordFixture {
	now := time.Now().Truncate(time.Millisecond)
	return &UsageRecordFixture{
		rec: usage.Record{
			Timestamp:        now,
			EventID:          uuid.NewString(),
			RequestID:        uuid.NewString(),
			Model:            "gpt-4o-mini",
			ProviderKind:     "openai-chat",
			Operation:        usage.OperationGenerate,
			PromptTokens:     120,
			CompletionTokens: 80,
			TotalTokens:      200,
			InputCostUSD:     0.000018,
			OutputCostUSD:    0.000048,
			TotalCostUSD:     0.000066,
			Status:           usage.StatusOK,
			LatencyMs:        850,
			CreatedAt:        now,
		},
	}
}

// WithModel sets the model and provider kind
func (f *UsageRecordFixture) WithModel(model, kind string) *UsageRecordFixture {
	f.rec.Model = model
	f.rec.ProviderKind = kind
	return f
}

// WithOperation sets the operation
func (f *UsageRecordFixture) WithOperation(op string) *UsageRecordFixture {
	f.rec.Operation = op
	return f
}

// WithTokens sets token counts
func (f *UsageRecordFixture) WithTokens(prompt, completion uint32) *UsageRecordFixture {
	f.rec.PromptTokens = prompt
	f.rec.CompletionTokens = completion
	f.rec.TotalTokens = prompt + completion
	return f
}

// WithCost sets input and output cost and recalculates the total
func (f *UsageRecordFixture) WithCost(input, output float64) *UsageRecordFixture {
	f.rec.InputCostUSD = input
	f.rec.OutputCostUSD = output
	f.rec.TotalCostUSD = input + output
	return f
}

// WithTimestamp sets the event timestamp
func (f *UsageRecordFixture) WithTimestamp(t time.Time) *UsageRecordFixture {
	f.rec.Timestamp = t
	f.rec.CreatedAt = t
	return f
}

// AsError marks the record as a failed call with the given error kind
func (f *UsageRecordFixture) AsError(kind string) *UsageRecordFixture {
	f.rec.Status = usage.StatusError
	f.rec.ErrorKind = kind
	f.rec.PromptTokens = 0
	f.rec.CompletionTokens = 0
	f.rec.TotalTokens = 0
	f.rec.InputCostUSD = 0
	f.rec.OutputCostUSD = 0
	f.rec.TotalCostUSD = 0
	return f
}

// AsCacheHit marks the record as served from cache
func (f *UsageRecordFixture) AsCacheHit() *UsageRecordFixture {
	f.rec.CacheHit = true
	f.rec.PromptTokens = 0
	f.rec.CompletionTokens = 0
	f.rec.TotalTokens = 0
	f.rec.InputCostUSD = 0
	f.rec.OutputCostUSD = 0
	f.rec.TotalCostUSD = 0
	return f
}

// Build returns the constructed record
func (f *UsageRecordFixture) Build() usage.Record {
	rec := f.rec
	rec.EventID = uuid.NewString()
	return rec
}

// BuildMany creates multiple records with sequential timestamps
func (f *UsageRecordFixture) BuildMany(count int) []usage.Record {
	records := make([]usage.Record, count)

	for i := 0; i < count; i++ {
		rec := f.Build()
		rec.Timestamp = f.rec.Timestamp.Add(time.Duration(i) * time.Second)
		rec.CreatedAt = rec.Timestamp
		records[i] = rec
	}

	return records
}
