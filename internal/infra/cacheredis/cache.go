// Package cacheredis backs the schema cache with Redis so cache
// invalidation on schema activation reaches every instance.
package cacheredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hspiira/timeline-sub001/internal/domain"
	"github.com/hspiira/timeline-sub001/internal/usecase"
)

const keyPrefix = "timeline:schema:"

type Cache struct {
	client *redis.Client
}

func New(addr, password string, db int) (*Cache, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{client: client}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.EventSchema, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var schema domain.EventSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		// A corrupt entry is a miss; the storage read repopulates it.
		_ = c.client.Del(ctx, keyPrefix+key).Err()
		return nil, false, nil
	}
	return &schema, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, schema domain.EventSchema, ttl time.Duration) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

var _ usecase.SchemaCache = (*Cache)(nil)
