package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Cache stores one library per (session, owner). owner identifies the
// caller whose token fetched the list; Delete drops every owner of a session.
type Cache interface {
	Get(ctx context.Context, session, owner string) ([]domain.Purchase, error)
	Set(ctx context.Context, session, owner string, purchases []domain.Purchase) error
	Delete(ctx context.Context, session string) error
}

var ErrCacheMiss = errors.New("cache miss")

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, session, owner string) ([]domain.Purchase, error) {
	data, err := r.client.Get(ctx, cacheKey(session, owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var purchases []domain.Purchase
	if err := json.Unmarshal(data, &purchases); err != nil {
		return nil, fmt.Errorf("unmarshal library failed: %w", err)
	}
	return purchases, nil
}

func (r *RedisCache) Set(ctx context.Context, session, owner string, purchases []domain.Purchase) error {
	if purchases == nil {
		purchases = []domain.Purchase{}
	}
	data, err := json.Marshal(purchases)
	if err != nil {
		return fmt.Errorf("marshal library failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, cacheKey(session, owner), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, session string) error {
	iter := r.client.Scan(ctx, 0, sessionPattern(session), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// NopCache always misses. Used when no Redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string, string) ([]domain.Purchase, error) {
	return nil, ErrCacheMiss
}
func (NopCache) Set(context.Context, string, string, []domain.Purchase) error { return nil }
func (NopCache) Delete(context.Context, string) error                         { return nil }

func cacheKey(session, owner string) string {
	return fmt.Sprintf("library:%s:%s", session, owner)
}

func sessionPattern(session string) string {
	return fmt.Sprintf("library:%s:*", session)
}
