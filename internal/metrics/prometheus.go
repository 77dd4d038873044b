package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request metrics
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_requests_total",
			Help: "Total number of proxied requests",
		},
		[]string{"model", "operation", "status"}, // status: success|error
	)

	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_request_latency_seconds",
			Help:    "End-to-end request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "operation"},
	)

	// Provider metrics
	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_provider_errors_total",
			Help: "Total number of provider call failures by kind",
		},
		[]string{"model", "kind"}, // kind: transport|remote|shape|rate_limited|other
	)

	Tokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_tokens_total",
			Help: "Total tokens reported by providers",
		},
		[]string{"model", "type"}, // type: input|output
	)

	Cost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_cost_usd_total",
			Help: "Total model cost in USD",
		},
		[]string{"model"},
	)

	// Cache metrics
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_cache_events_total",
			Help: "Response cache lookups by result",
		},
		[]string{"model", "result"}, // result: hit|miss
	)

	// Configuration metrics
	ModelsConfigured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hermes_models_configured",
			Help: "Number of models in the routing table",
		},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(RequestLatency)
	prometheus.MustRegister(ProviderErrors)
	prometheus.MustRegister(Tokens)
	prometheus.MustRegister(Cost)
	prometheus.MustRegister(CacheEvents)
	prometheus.MustRegister(ModelsConfigured)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records a proxied request outcome
func RecordRequest(model, operation string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	Requests.WithLabelValues(model, operation, status).Inc()
	RequestLatency.WithLabelValues(model, operation).Observe(latency.Seconds())
}

// RecordProviderError records a provider failure by kind
func RecordProviderError(model, kind string) {
	ProviderErrors.WithLabelValues(model, kind).Inc()
}

// RecordTokens records token usage reported by a provider
func RecordTokens(model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		Tokens.WithLabelValues(model, "input").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		Tokens.WithLabelValues(model, "output").Add(float64(completionTokens))
	}
}

// RecordCost records accrued USD cost
func RecordCost(model string, usd float64) {
	if usd > 0 {
		Cost.WithLabelValues(model).Add(usd)
	}
}

// RecordCacheEvent records a response cache lookup
func RecordCacheEvent(model string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheEvents.WithLabelValues(model, result).Inc()
}
