// Package dedup отсекает повторную обработку обратных вызовов платёжного шлюза
// с помощью ключей SETNX в Redis.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "gophermarket"

// Store описывает минимальный набор операций хранилища ключей.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// RedisStore реализует Store поверх go-redis.
type RedisStore struct {
	client cmdable
	raw    *redis.Client
}

// NewRedisStore подключается к Redis и проверяет соединение.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	raw := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: raw, raw: raw}, nil
}

// SetNX устанавливает ключ, только если его ещё нет.
func (s *RedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

// Del удаляет ключи.
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// Close закрывает соединение с Redis.
func (s *RedisStore) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

// Guard помечает идентификаторы как обработанные на время ttl.
// Нулевой *Guard ничего не помечает и всегда пропускает вызов.
type Guard struct {
	store Store
	ttl   time.Duration
	scope string
}

// NewGuard создаёт guard для пространства ключей scope.
func NewGuard(store Store, ttl time.Duration, scope string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("dedup store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Guard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark возвращает true, если id уже был помечен, иначе помечает его.
func (g *Guard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	if g == nil {
		return false, nil
	}
	if id == "" {
		return false, errors.New("id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(id), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set dedup key: %w", err)
	}
	return !set, nil
}

// Release снимает пометку, чтобы вызов можно было обработать повторно.
func (g *Guard) Release(ctx context.Context, id string) error {
	if g == nil {
		return nil
	}
	if id == "" {
		return errors.New("id is required")
	}
	return g.store.Del(ctx, g.key(id))
}

func (g *Guard) key(id string) string {
	return keyNamespace + ":dedup:" + g.scope + ":" + id
}
