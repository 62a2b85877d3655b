// internal/infrastructure/database/redis/lookup.go
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
)

// CachedLookup fronts a master-data lookup with a short-lived redis cache.
// Cache failures fall through to the wrapped lookup.
type CachedLookup struct {
	next   masterdata.Lookup
	client *Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewCachedLookup wraps next
func NewCachedLookup(next masterdata.Lookup, client *Client, ttl time.Duration, log logrus.FieldLogger) *CachedLookup {
	return &CachedLookup{next: next, client: client, ttl: ttl, log: log}
}

// Item implements masterdata.Lookup
func (c *CachedLookup) Item(ctx context.Context, id uint) (*masterdata.Item, error) {
	key := Key("item", strconv.FormatUint(uint64(id), 10))

	var item masterdata.Item
	err := c.client.FetchJSON(ctx, key, &item)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.log.WithError(err).WithField("key", key).Warn("master data cache read failed")
	}

	found, err := c.next.Item(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.client.PutJSON(ctx, key, found, c.ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("master data cache write failed")
	}
	return found, nil
}

// WarehouseExists implements masterdata.Lookup
func (c *CachedLookup) WarehouseExists(ctx context.Context, id uint) (bool, error) {
	return c.exists(ctx, "warehouse", id, c.next.WarehouseExists)
}

// VendorExists implements masterdata.Lookup
func (c *CachedLookup) VendorExists(ctx context.Context, id uint) (bool, error) {
	return c.exists(ctx, "vendor", id, c.next.VendorExists)
}

// CustomerExists implements masterdata.Lookup
func (c *CachedLookup) CustomerExists(ctx context.Context, id uint) (bool, error) {
	return c.exists(ctx, "customer", id, c.next.CustomerExists)
}

// exists caches positive answers only, so new master data shows up immediately
func (c *CachedLookup) exists(ctx context.Context, kind string, id uint, load func(context.Context, uint) (bool, error)) (bool, error) {
	key := Key(kind, strconv.FormatUint(uint64(id), 10))

	ok, err := c.client.IsPresent(ctx, key)
	if err == nil && ok {
		return true, nil
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("master data cache read failed")
	}

	found, err := load(ctx, id)
	if err != nil || !found {
		return found, err
	}
	if err := c.client.MarkPresent(ctx, key, c.ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("master data cache write failed")
	}
	return true, nil
}
