package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// KPICache stores computed KPI results per tenant and local date.
type KPICache interface {
	Get(ctx context.Context, tenantID, date string) (*KPIResult, bool, error)
	Set(ctx context.Context, tenantID, date string, result *KPIResult) error
	Invalidate(ctx context.Context, tenantID, date string) error
}

type RedisKPICache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisKPICache(client *redis.Client, prefix string, ttl time.Duration) *RedisKPICache {
	return &RedisKPICache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisKPICache) key(tenantID, date string) string {
	return fmt.Sprintf("%s:kpi:%s:%s", c.prefix, tenantID, date)
}

func (c *RedisKPICache) Get(ctx context.Context, tenantID, date string) (*KPIResult, bool, error) {
	raw, err := c.client.Get(ctx, c.key(tenantID, date)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result KPIResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// unreadable entries are treated as a miss and overwritten
		return nil, false, nil
	}
	return &result, true, nil
}

func (c *RedisKPICache) Set(ctx context.Context, tenantID, date string, result *KPIResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(tenantID, date), raw, c.ttl).Err()
}

func (c *RedisKPICache) Invalidate(ctx context.Context, tenantID, date string) error {
	return c.client.Del(ctx, c.key(tenantID, date)).Err()
}
