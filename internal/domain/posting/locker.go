// internal/domain/posting/locker.go
package posting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

// KeyLocker serializes work on balance keys. Lock takes every key in sorted
// order and returns a release func; a wait that runs out is a conflict.
type KeyLocker interface {
	Lock(ctx context.Context, keys []ledger.BalanceKey) (func(), error)
}

// LocalLocker keeps one in-process mutex per key. Different keys never wait on each other.
type LocalLocker struct {
	wait  time.Duration
	mu    sync.Mutex
	locks map[ledger.BalanceKey]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates a locker that waits at most wait per call (0 = until ctx ends)
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		wait:  wait,
		locks: make(map[ledger.BalanceKey]*keyLock),
	}
}

// Lock acquires all keys in sorted order
func (l *LocalLocker) Lock(ctx context.Context, keys []ledger.BalanceKey) (func(), error) {
	sorted := ledger.SortedKeys(keys)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	held := make([]ledger.BalanceKey, 0, len(sorted))
	for _, key := range sorted {
		if err := l.acquire(waitCtx, key); err != nil {
			l.releaseAll(held)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, apperror.Conflict("timed out waiting for lock on %s", key).
					WithDetail("item_id", itoa(key.ItemID)).
					WithDetail("warehouse_id", itoa(key.WarehouseID))
			}
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held) }) }, nil
}

func (l *LocalLocker) acquire(ctx context.Context, key ledger.BalanceKey) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, kl)
		return ctx.Err()
	}
}

func (l *LocalLocker) releaseAll(keys []ledger.BalanceKey) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		kl := l.locks[keys[i]]
		l.mu.Unlock()
		<-kl.sem
		l.drop(keys[i], kl)
	}
}

// drop releases one reference and forgets idle keys
func (l *LocalLocker) drop(key ledger.BalanceKey, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Size returns the number of keys currently tracked
func (l *LocalLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
