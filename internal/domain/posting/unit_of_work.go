// internal/domain/posting/unit_of_work.go
package posting

import (
	"context"
	"strconv"

	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
)

// Tx is everything a posting may touch inside one store transaction
type Tx interface {
	ledger.Tx
	document.Tx
}

// UnitOfWork runs fn in one all-or-nothing store transaction.
// Any error from fn rolls back every write made through tx.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
