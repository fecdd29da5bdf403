package cache

import (
	"context"
	"fmt"
	"skillgate/internal/model"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitCache counts quiz starts per client IP and per email in fixed windows
type RateLimitCache interface {
	Check(ctx context.Context, ip, email string) (*model.RateLimitStatus, error)
	Record(ctx context.Context, ip, email string) error
}

// RateLimits are the per-window ceilings; zero disables a dimension
type RateLimits struct {
	Window   time.Duration
	PerIP    int
	PerEmail int
}

type rateLimitCache struct {
	client *redis.Client
	limits RateLimits
}

// NewRateLimitCache creates a new rate limit cache
func NewRateLimitCache(client *redis.Client, limits RateLimits) RateLimitCache {
	return &rateLimitCache{
		client: client,
		limits: limits,
	}
}

func (c *rateLimitCache) ipKey(ip string) string {
	return fmt.Sprintf("ratelimit:ip:%s", ip)
}

func (c *rateLimitCache) emailKey(email string) string {
	return fmt.Sprintf("ratelimit:email:%s", email)
}

// Check reports Limited when either counter has reached its ceiling.
// ResetAt is the latest expiry among the exhausted counters.
func (c *rateLimitCache) Check(ctx context.Context, ip, email string) (*model.RateLimitStatus, error) {
	status := &model.RateLimitStatus{}

	type dim struct {
		key   string
		limit int
	}
	var dims []dim
	if ip != "" && c.limits.PerIP > 0 {
		dims = append(dims, dim{c.ipKey(ip), c.limits.PerIP})
	}
	if email != "" && c.limits.PerEmail > 0 {
		dims = append(dims, dim{c.emailKey(email), c.limits.PerEmail})
	}

	for _, d := range dims {
		n, err := c.client.Get(ctx, d.key).Int()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rate counter: %w", err)
		}
		if n < d.limit {
			continue
		}

		status.Limited = true
		ttl, err := c.client.PTTL(ctx, d.key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read rate counter ttl: %w", err)
		}
		if ttl > 0 {
			reset := time.Now().Add(ttl)
			if status.ResetAt == nil || reset.After(*status.ResetAt) {
				status.ResetAt = &reset
			}
		}
	}
	return status, nil
}

// Record bumps both counters, starting the window on the first hit
func (c *rateLimitCache) Record(ctx context.Context, ip, email string) error {
	var keys []string
	if ip != "" {
		keys = append(keys, c.ipKey(ip))
	}
	if email != "" {
		keys = append(keys, c.emailKey(email))
	}

	for _, key := range keys {
		n, err := c.client.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to increment rate counter: %w", err)
		}
		if n == 1 {
			if err := c.client.Expire(ctx, key, c.limits.Window).Err(); err != nil {
				return fmt.Errorf("failed to set rate counter expiry: %w", err)
			}
		}
	}
	return nil
}
