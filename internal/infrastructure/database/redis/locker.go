// internal/infrastructure/database/redis/locker.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

const lockRetryInterval = 25 * time.Millisecond

// Locker serializes balance keys across API instances with redis locks
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	log    logrus.FieldLogger
}

// NewLocker creates a distributed key locker. ttl bounds how long a crashed holder blocks a key.
func NewLocker(c *Client, ttl, wait time.Duration, log logrus.FieldLogger) *Locker {
	return &Locker{
		client: redislock.New(c.rdb),
		ttl:    ttl,
		wait:   wait,
		log:    log,
	}
}

// LockKey is the redis key guarding one balance
func LockKey(key ledger.BalanceKey) string {
	return Key("lock", "item", strconv.FormatUint(uint64(key.ItemID), 10), "warehouse", strconv.FormatUint(uint64(key.WarehouseID), 10))
}

// Lock obtains every key in sorted order and returns a release func
func (l *Locker) Lock(ctx context.Context, keys []ledger.BalanceKey) (func(), error) {
	sorted := ledger.SortedKeys(keys)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	opts := &redislock.Options{RetryStrategy: redislock.LinearBackoff(lockRetryInterval)}
	held := make([]*redislock.Lock, 0, len(sorted))
	for _, key := range sorted {
		lock, err := l.client.Obtain(waitCtx, LockKey(key), l.ttl, opts)
		if err != nil {
			l.release(held)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
				return nil, apperror.Conflict("timed out waiting for lock on %s", key).
					WithDetail("item_id", strconv.FormatUint(uint64(key.ItemID), 10)).
					WithDetail("warehouse_id", strconv.FormatUint(uint64(key.WarehouseID), 10))
			}
			return nil, fmt.Errorf("failed to obtain lock on %s: %w", key, err)
		}
		held = append(held, lock)
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *Locker) release(held []*redislock.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.WithError(err).WithField("key", held[i].Key()).Warn("failed to release redis lock")
		}
	}
}
