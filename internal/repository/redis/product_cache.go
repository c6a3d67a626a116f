package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
)

const (
	productKeyPrefix = "product:slug:"
	flushBatch       = 100
)

// ProductCache caches storefront product detail documents by slug.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache creates a product cache whose entries live for ttl.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

// Get returns the cached product for slug, or nil on a miss.
func (c *ProductCache) Get(ctx context.Context, slug string) (*domain.Product, error) {
	data, err := c.client.Get(ctx, productKeyPrefix+slug).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get product: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// Set stores product under its slug.
func (c *ProductCache) Set(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	if err := c.client.Set(ctx, productKeyPrefix+product.Slug, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set product: %w", err)
	}
	return nil
}

// Invalidate drops the entries for slugs. Empty slugs are ignored.
func (c *ProductCache) Invalidate(ctx context.Context, slugs ...string) error {
	keys := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if s != "" {
			keys = append(keys, productKeyPrefix+s)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del product: %w", err)
	}
	return nil
}

// Flush drops every cached product. Keys are found with SCAN so a large
// cache does not block the server.
func (c *ProductCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, productKeyPrefix+"*", flushBatch).Iterator()
	keys := make([]string, 0, flushBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == flushBatch {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del products: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan products: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del products: %w", err)
		}
	}
	return nil
}
