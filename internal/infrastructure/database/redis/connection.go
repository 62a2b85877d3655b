// internal/infrastructure/database/redis/connection.go
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/config"
)

// keyPrefix namespaces every key this service writes
const keyPrefix = "inventory"

// Client is the shared redis handle used for the lookup cache, balance locks and rate limiting
type Client struct {
	rdb *redis.Client
}

// NewConnection dials redis and pings it once
func NewConnection(cfg *config.Config, log logrus.FieldLogger) (*Client, error) {
	addr := cfg.GetRedisAddr()
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	c := &Client{rdb: rdb}
	if err := c.Health(context.Background()); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	log.WithFields(logrus.Fields{"addr": addr, "db": cfg.Redis.DB}).Info("✅ Redis connection established successfully")
	return c, nil
}

// Key joins parts under the service namespace, e.g. Key("item", "7") is "inventory:item:7"
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetClient returns the underlying go-redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Health pings redis, bounded to three seconds
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// MarkPresent records that key exists until ttl elapses
func (c *Client) MarkPresent(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, 1, ttl).Err()
}

// IsPresent reports whether key is set
func (c *Client) IsPresent(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// PutJSON stores value encoded as JSON
func (c *Client) PutJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// FetchJSON decodes the JSON value at key into dest. A missing key returns redis.Nil.
func (c *Client) FetchJSON(ctx context.Context, key string, dest any) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}
