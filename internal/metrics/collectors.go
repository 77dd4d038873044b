package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"hermes/internal/domain/usage"
)

// UsageSnapshotter exposes the per-model usage counters.
type UsageSnapshotter interface {
	Snapshot() map[string]usage.Summary
}

// UsageCollector exports the in-memory usage counters as gauges.
// Values are collected on scrape, so they stay consistent with the
// /v1/usage endpoint without double counting.
type UsageCollector struct {
	source UsageSnapshotter

	modelRequests *prometheus.Desc
	modelTokens   *prometheus.Desc
	modelCost     *prometheus.Desc
}

// RegisterUsageCollector registers the usage collector. Call once after Init.
func RegisterUsageCollector(source UsageSnapshotter) {
	prometheus.MustRegister(NewUsageCollector(source))
}

// NewUsageCollector creates a collector backed by the usage tracker
func NewUsageCollector(source UsageSnapshotter) *UsageCollector {
	return &UsageCollector{
		source: source,

		modelRequests: prometheus.NewDesc(
			"hermes_usage_requests",
			"Requests proxied per model since start",
			[]string{"model"}, nil,
		),
		modelTokens: prometheus.NewDesc(
			"hermes_usage_tokens",
			"Tokens consumed per model since start",
			[]string{"model"}, nil,
		),
		modelCost: prometheus.NewDesc(
			"hermes_usage_cost_usd",
			"USD cost accrued per model since start",
			[]string{"model"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *UsageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.modelRequests
	ch <- c.modelTokens
	ch <- c.modelCost
}

// Collect implements prometheus.Collector
func (c *UsageCollector) Collect(ch chan<- prometheus.Metric) {
	for model, summary := range c.source.Snapshot() {
		ch <- prometheus.MustNewConstMetric(
			c.modelRequests,
			prometheus.GaugeValue,
			float64(summary.Requests),
			model,
		)
		ch <- prometheus.MustNewConstMetric(
			c.modelTokens,
			prometheus.GaugeValue,
			float64(summary.TotalTokens),
			model,
		)
		ch <- prometheus.MustNewConstMetric(
			c.modelCost,
			prometheus.GaugeValue,
			summary.TotalCostUSD,
			model,
		)
	}
}
