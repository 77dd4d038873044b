package kafka

// Topic definitions for Kafka event streaming
const (
	// Usage events, one message per proxied model call
	TopicUsage = "proxy.usage.v1"
)
