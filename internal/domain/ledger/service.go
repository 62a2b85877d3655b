// internal/domain/ledger/service.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

// Service exposes the ledger store contract on top of a Reader and the master-data lookup
type Service struct {
	store  Reader
	lookup masterdata.Lookup
	now    func() time.Time
}

// NewService creates a new ledger service
func NewService(store Reader, lookup masterdata.Lookup) *Service {
	return &Service{
		store:  store,
		lookup: lookup,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Validate checks a transaction before it is appended
func (s *Service) Validate(ctx context.Context, txn *InventoryTransaction) error {
	if txn.Qty.IsZero() {
		return apperror.Validation("transaction qty cannot be zero").WithDetail("item_id", fmt.Sprint(txn.ItemID))
	}
	if txn.UnitCost.IsNegative() {
		return apperror.Validation("transaction unit cost cannot be negative").WithDetail("item_id", fmt.Sprint(txn.ItemID))
	}
	if !txn.TxnType.IsValid() {
		return apperror.Validation("unknown transaction type %q", txn.TxnType)
	}
	if txn.TxnType == TxnTypeReceipt && txn.Qty.IsNegative() {
		return apperror.Validation("RECEIPT qty must be positive").WithDetail("item_id", fmt.Sprint(txn.ItemID))
	}
	if txn.TxnType == TxnTypeIssue && txn.Qty.IsPositive() {
		return apperror.Validation("ISSUE qty must be negative").WithDetail("item_id", fmt.Sprint(txn.ItemID))
	}
	return s.ValidateKey(ctx, txn.Key())
}

// ValidateKey checks that item and warehouse resolve in master data
func (s *Service) ValidateKey(ctx context.Context, key BalanceKey) error {
	if _, err := s.lookup.Item(ctx, key.ItemID); err != nil {
		if apperror.IsNotFound(err) {
			return apperror.Validation("unknown item %d", key.ItemID).WithDetail("item_id", fmt.Sprint(key.ItemID))
		}
		return fmt.Errorf("failed to look up item: %w", err)
	}
	ok, err := s.lookup.WarehouseExists(ctx, key.WarehouseID)
	if err != nil {
		return fmt.Errorf("failed to look up warehouse: %w", err)
	}
	if !ok {
		return apperror.Validation("unknown warehouse %d", key.WarehouseID).WithDetail("warehouse_id", fmt.Sprint(key.WarehouseID))
	}
	return nil
}

// Append validates and inserts one immutable transaction inside tx
func (s *Service) Append(ctx context.Context, tx Tx, txn *InventoryTransaction) (uint, error) {
	if tx == nil {
		return 0, ErrNilTx
	}
	if err := s.Validate(ctx, txn); err != nil {
		return 0, err
	}

	txn.Qty = txn.Qty.Round(Scale)
	txn.UnitCost = txn.UnitCost.Round(Scale)
	if txn.Timestamp.IsZero() {
		txn.Timestamp = s.now()
	}

	if err := tx.AppendTransaction(ctx, txn); err != nil {
		return 0, fmt.Errorf("failed to append inventory transaction: %w", err)
	}
	return txn.ID, nil
}

// GetBalance returns the balance for a key, zero-initialized when it has never moved
func (s *Service) GetBalance(ctx context.Context, itemID, warehouseID uint) (*InventoryBalance, error) {
	key := BalanceKey{ItemID: itemID, WarehouseID: warehouseID}
	bal, err := s.store.FindBalance(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance %s: %w", key, err)
	}
	if bal == nil {
		zero := ZeroBalance(key)
		return &zero, nil
	}
	return bal, nil
}

// ListTransactions returns ledger rows newest first
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]InventoryTransaction, error) {
	if filter.TxnType != "" && !filter.TxnType.IsValid() {
		return nil, apperror.Validation("unknown transaction type %q", filter.TxnType)
	}
	txns, err := s.store.ListTransactions(ctx, filter.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory transactions: %w", err)
	}
	return txns, nil
}

// ListBalances returns balances ordered by item then warehouse
func (s *Service) ListBalances(ctx context.Context, filter BalanceFilter) ([]InventoryBalance, error) {
	balances, err := s.store.ListBalances(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory balances: %w", err)
	}
	return balances, nil
}

// Reconcile recomputes the ledger sum per key and reports balances that disagree
func (s *Service) Reconcile(ctx context.Context, filter BalanceFilter) (*ReconcileReport, error) {
	sums, err := s.store.SumLedger(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}
	balances, err := s.store.ListBalances(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory balances: %w", err)
	}

	report := &ReconcileReport{CheckedAt: s.now(), Discrepancies: []Discrepancy{}}
	seen := make(map[BalanceKey]bool, len(balances))

	for _, bal := range balances {
		key := bal.Key()
		seen[key] = true
		ledgerQty, ok := sums[key]
		if !ok {
			ledgerQty = decimal.Zero
		}
		if !bal.QtyOnHand.Equal(ledgerQty) {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Key:        key,
				BalanceQty: bal.QtyOnHand,
				LedgerQty:  ledgerQty,
				Difference: bal.QtyOnHand.Sub(ledgerQty),
			})
		}
	}

	for key, ledgerQty := range sums {
		if seen[key] {
			continue
		}
		seen[key] = true
		if ledgerQty.IsZero() {
			continue
		}
		report.Discrepancies = append(report.Discrepancies, Discrepancy{
			Key:        key,
			BalanceQty: decimal.Zero,
			LedgerQty:  ledgerQty,
			Difference: ledgerQty.Neg(),
			MissingRow: true,
		})
	}

	report.KeysChecked = len(seen)
	sort.Slice(report.Discrepancies, func(i, j int) bool {
		return report.Discrepancies[i].Key.Less(report.Discrepancies[j].Key)
	})
	return report, nil
}

// ErrNilTx is returned when Append is called outside a unit of work
var ErrNilTx = errors.New("ledger: nil store transaction")
