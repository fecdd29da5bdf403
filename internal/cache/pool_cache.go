package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"skillgate/internal/model"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolCache holds a short-lived copy of a job's eligible question pool
type PoolCache interface {
	SetPool(ctx context.Context, jobID string, pool []model.EligibleSkill) error
	GetPool(ctx context.Context, jobID string) ([]model.EligibleSkill, error)
	DeletePool(ctx context.Context, jobID string) error
}

type poolCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPoolCache creates a new pool cache
func NewPoolCache(client *redis.Client, ttl time.Duration) PoolCache {
	return &poolCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *poolCache) key(jobID string) string {
	return fmt.Sprintf("job:%s:pool", jobID)
}

// poolEntry wraps the skills so a cached empty pool is told apart from a miss
type poolEntry struct {
	Skills []model.EligibleSkill `json:"skills"`
}

func (c *poolCache) SetPool(ctx context.Context, jobID string, pool []model.EligibleSkill) error {
	data, err := json.Marshal(poolEntry{Skills: pool})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(jobID), data, c.ttl).Err()
}

// GetPool returns nil, nil on a miss
func (c *poolCache) GetPool(ctx context.Context, jobID string) ([]model.EligibleSkill, error) {
	data, err := c.client.Get(ctx, c.key(jobID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry poolEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}
	if entry.Skills == nil {
		entry.Skills = []model.EligibleSkill{}
	}
	return entry.Skills, nil
}

func (c *poolCache) DeletePool(ctx context.Context, jobID string) error {
	return c.client.Del(ctx, c.key(jobID)).Err()
}
