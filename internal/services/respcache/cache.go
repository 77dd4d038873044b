package respcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"hermes/internal/adapters/providers"
	"hermes/internal/adapters/redis"
	"hermes/pkg/logger"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// Entry is a cached generate response.
type Entry struct {
	Model string           `json:"model"`
	Text  string           `json:"text"`
	Raw   json.RawMessage  `json:"raw,omitempty"`
	Usage *providers.Usage `json:"usage,omitempty"`
}

// Cache stores generate responses in Redis, keyed by the full request shape.
// A cache failure is a miss: lookups and writes log and degrade, they never
// fail the proxied call.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// New creates a response cache with the given TTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		log:    logger.Get().With("component", "respcache"),
	}
}

// Key derives a stable cache key from the resolved model, the prompt and the
// merged options. Map keys are sorted during JSON encoding, so two requests
// with the same options in different order hash identically.
func Key(model, prompt string, options map[string]interface{}) string {
	opts, err := json.Marshal(options)
	if err != nil {
		opts = []byte("null")
	}

	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write(opts)

	return fmt.Sprintf("respcache:%s", hex.EncodeToString(h.Sum(nil)))
}

// Get looks up a cached response. The second return is false on miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool) {
	var entry Entry
	err := c.client.Get(ctx, key, &entry)
	if err != nil {
		if err != goredis.Nil {
			c.log.Warnf("Cache lookup failed for %s: %v", key, err)
		}
		return nil, false
	}

	return &entry, true
}

// Set stores a response under the key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, entry *Entry) {
	if err := c.client.Set(ctx, key, entry, c.ttl); err != nil {
		c.log.Warnf("Cache write failed for %s: %v", key, err)
	}
}
