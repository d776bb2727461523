package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists carts.
type Store interface {
	Items(ctx context.Context, tenantID, retailerID int64) ([]Item, error)
	Put(ctx context.Context, tenantID, retailerID int64, item Item) error
	Remove(ctx context.Context, tenantID, retailerID, productID int64) error
	Clear(ctx context.Context, tenantID, retailerID int64) error
}

// RedisStore keeps each cart in a hash keyed by product id.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs the store. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Key returns the hash key for a retailer's cart.
func Key(tenantID, retailerID int64) string {
	return fmt.Sprintf("cart:%d:%d", tenantID, retailerID)
}

func (s *RedisStore) Items(ctx context.Context, tenantID, retailerID int64) ([]Item, error) {
	raw, err := s.client.HGetAll(ctx, Key(tenantID, retailerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart: load: %w", err)
	}
	items := make([]Item, 0, len(raw))
	for _, v := range raw {
		var item Item
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			return nil, fmt.Errorf("cart: decode item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *RedisStore) Put(ctx context.Context, tenantID, retailerID int64, item Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	key := Key(tenantID, retailerID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.FormatInt(item.ProductID, 10), payload)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cart: save: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, tenantID, retailerID, productID int64) error {
	key := Key(tenantID, retailerID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, strconv.FormatInt(productID, 10))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cart: remove: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, tenantID, retailerID int64) error {
	if err := s.client.Del(ctx, Key(tenantID, retailerID)).Err(); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	return nil
}
