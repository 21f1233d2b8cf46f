package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/piresc/topup/internal/pkg/constants"
	"github.com/piresc/topup/internal/pkg/database"
	"github.com/piresc/topup/internal/pkg/models"
)

// StatusCache keeps finalized transactions in Redis
type StatusCache struct {
	redis *database.RedisClient
	ttl   time.Duration
}

// NewStatusCache creates a Redis backed status cache
func NewStatusCache(cfg *models.Config, redisClient *database.RedisClient) *StatusCache {
	return &StatusCache{
		redis: redisClient,
		ttl:   cfg.Payments.CacheTTL,
	}
}

// Get returns the cached transaction, or nil on a miss
func (c *StatusCache) Get(ctx context.Context, reference string) (*models.Transaction, error) {
	data, err := c.redis.Get(ctx, fmt.Sprintf(constants.KeyPaymentStatus, reference))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached transaction: %w", err)
	}

	var tx models.Transaction
	if err := json.Unmarshal([]byte(data), &tx); err != nil {
		return nil, fmt.Errorf("failed to decode cached transaction: %w", err)
	}
	return &tx, nil
}

// Set caches a finalized transaction. Pending rows are never cached.
func (c *StatusCache) Set(ctx context.Context, tx *models.Transaction) error {
	if !tx.IsFinal() {
		return nil
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	if err := c.redis.Set(ctx, fmt.Sprintf(constants.KeyPaymentStatus, tx.Reference), data, c.ttl); err != nil {
		return fmt.Errorf("failed to cache transaction: %w", err)
	}
	return nil
}

// Invalidate drops the cached copy of a transaction
func (c *StatusCache) Invalidate(ctx context.Context, reference string) error {
	if err := c.redis.Delete(ctx, fmt.Sprintf(constants.KeyPaymentStatus, reference)); err != nil {
		return fmt.Errorf("failed to invalidate cached transaction: %w", err)
	}
	return nil
}
