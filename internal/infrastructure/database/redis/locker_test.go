package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
)

func TestLockKey(t *testing.T) {
	key := ledger.BalanceKey{ItemID: 12, WarehouseID: 3}
	assert.Equal(t, "inventory:lock:item:12:warehouse:3", LockKey(key))
}

func TestKeyNamespacing(t *testing.T) {
	assert.Equal(t, "inventory:item:7", Key("item", "7"))
	assert.Equal(t, "inventory:vendor:1", Key("vendor", "1"))
}
