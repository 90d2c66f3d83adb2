package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps recent credit reports in Redis. Failures degrade to a miss;
// the scorer never depends on the cache being up.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with the given TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func scoreKey(clientID int64) string {
	return fmt.Sprintf("credit:score:%d", clientID)
}

// Get returns a cached report, reporting a miss on any error.
func (c *Cache) Get(ctx context.Context, clientID int64) (*Report, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, scoreKey(clientID)).Bytes()
	if err != nil {
		return nil, false
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false
	}
	return &report, true
}

// Set stores a report for the TTL window.
func (c *Cache) Set(ctx context.Context, report *Report) {
	if c == nil || c.client == nil || report == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, scoreKey(report.ClientID), raw, c.ttl).Err()
}

// Invalidate removes a client's cached report.
func (c *Cache) Invalidate(ctx context.Context, clientID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, scoreKey(clientID)).Err()
}
