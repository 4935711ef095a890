package categorize

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// labelKeyPrefix namespaces cached labels in Redis.
const labelKeyPrefix = "label:"

// LabelCache fronts the classification service with a Redis cache keyed by
// normalized description. A nil Redis client is tolerated: every lookup
// misses and every store is a no-op, so the engine runs without Redis.
type LabelCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewLabelCache creates a label cache. client may be nil.
func NewLabelCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *LabelCache {
	return &LabelCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached label for a normalized description, if present.
func (c *LabelCache) Get(ctx context.Context, description string) (Label, bool) {
	if c.client == nil {
		return Label{}, false
	}

	data, err := c.client.Get(ctx, labelKeyPrefix+description).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Label cache read failed")
		}
		return Label{}, false
	}

	var label Label
	if err := json.Unmarshal(data, &label); err != nil {
		c.logger.WithError(err).Warn("Corrupt label cache entry")
		return Label{}, false
	}
	return label, true
}

// Set stores a label for a normalized description. Failures are logged and
// swallowed: the cache is an optimization, never a dependency.
func (c *LabelCache) Set(ctx context.Context, description string, label Label) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(label)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal label for cache")
		return
	}
	if err := c.client.Set(ctx, labelKeyPrefix+description, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Label cache write failed")
	}
}
