package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss возвращается, когда значения по ключу нет.
var ErrMiss = errors.New("cache: miss")

// Cache — key-value кэш с TTL. Используется для имён товаров в списке заказов.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Key(parts ...string) string
}

type redisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedisCache подключается к Redis по адресу addr.
// namespace добавляется префиксом ко всем ключам.
func NewRedisCache(addr, namespace string) Cache {
	return &redisCache{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		namespace: namespace,
	}
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (c *redisCache) Key(parts ...string) string {
	key := c.namespace
	for _, part := range parts {
		key = fmt.Sprintf("%s:%s", key, part)
	}
	return key
}

var _ Cache = (*redisCache)(nil)
