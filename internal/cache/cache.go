package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userhub/accounts/internal/logger"
)

type Cache struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

// New connects to Redis at addr and verifies the connection.
func New(addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	c := NewWithClient(client)
	c.log.Info(ctx, "connected to redis", map[string]interface{}{"addr": addr})
	return c, nil
}

// NewWithClient wraps an existing client. Keys are namespaced with "accounts:".
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		prefix: "accounts:",
		log:    logger.Default().WithComponent("cache"),
	}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying connection for health checks.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// GetJSON decodes the value at key into dest. A miss returns (false, nil);
// connection failures return the error so callers can fall back.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		// A stale or foreign value is treated as a miss and dropped.
		c.log.Warn(ctx, "dropping undecodable cache entry", map[string]interface{}{"key": key})
		c.client.Del(ctx, c.prefix+key)
		return false, nil
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, b, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.client.Del(ctx, full...).Err()
}
