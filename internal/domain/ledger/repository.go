// internal/domain/ledger/repository.go
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Reader is the query side of the ledger store
type Reader interface {
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]InventoryTransaction, error)
	// FindBalance returns nil when the key has never moved
	FindBalance(ctx context.Context, key BalanceKey) (*InventoryBalance, error)
	ListBalances(ctx context.Context, filter BalanceFilter) ([]InventoryBalance, error)
	SumLedger(ctx context.Context, filter BalanceFilter) (map[BalanceKey]decimal.Decimal, error)
}

// Tx is the write side of the ledger store, only reachable inside a unit of work.
// Implementations must make every write visible atomically at commit.
type Tx interface {
	// LockBalance reads the balance for update; a never-moved key yields ZeroBalance with ID 0
	LockBalance(ctx context.Context, key BalanceKey) (InventoryBalance, error)
	// SaveBalance inserts (ID 0) or compare-and-sets on Version, then bumps Version.
	// A lost race is reported as an apperror conflict.
	SaveBalance(ctx context.Context, bal *InventoryBalance) error
	// AppendTransaction inserts the row and assigns its ID
	AppendTransaction(ctx context.Context, txn *InventoryTransaction) error
	// TransactionsByRef returns every row written for a document, oldest first, unpaginated
	TransactionsByRef(ctx context.Context, refType string, refID uint) ([]InventoryTransaction, error)
}
