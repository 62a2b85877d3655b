// internal/domain/ledger/entity.go
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for quantities and costs
const Scale int32 = 4

// TxnType represents the kind of stock movement recorded in the ledger
type TxnType string

const (
	TxnTypeReceipt TxnType = "RECEIPT"
	TxnTypeIssue   TxnType = "ISSUE"
	TxnTypeAdjust  TxnType = "ADJUST"
)

// IsValid checks if the transaction type is valid
func (t TxnType) IsValid() bool {
	switch t {
	case TxnTypeReceipt, TxnTypeIssue, TxnTypeAdjust:
		return true
	}
	return false
}

// InventoryTransaction is an immutable ledger row. Positive qty is inbound, negative is outbound.
type InventoryTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ItemID      uint            `gorm:"not null;index:idx_inv_txn_key" json:"item_id"`
	WarehouseID uint            `gorm:"not null;index:idx_inv_txn_key" json:"warehouse_id"`
	Qty         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"qty"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_cost"`
	TxnType     TxnType         `gorm:"size:20;not null;index" json:"txn_type"`
	RefType     *string         `gorm:"size:30;index:idx_inv_txn_ref" json:"ref_type"`
	RefID       *uint           `gorm:"index:idx_inv_txn_ref" json:"ref_id"`
	CreatedBy   string          `gorm:"size:100" json:"created_by,omitempty"`
	Timestamp   time.Time       `gorm:"not null;index" json:"timestamp"`
}

// TableName pins the ledger table name
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// Key returns the balance key the transaction affects
func (t *InventoryTransaction) Key() BalanceKey {
	return BalanceKey{ItemID: t.ItemID, WarehouseID: t.WarehouseID}
}

// Value returns qty * unit_cost
func (t *InventoryTransaction) Value() decimal.Decimal {
	return t.Qty.Mul(t.UnitCost).Round(Scale)
}

// BalanceKey identifies one (item, warehouse) balance
type BalanceKey struct {
	ItemID      uint `json:"item_id"`
	WarehouseID uint `json:"warehouse_id"`
}

func (k BalanceKey) String() string {
	return fmt.Sprintf("item:%d/warehouse:%d", k.ItemID, k.WarehouseID)
}

// Less orders keys by item, then warehouse
func (k BalanceKey) Less(other BalanceKey) bool {
	if k.ItemID != other.ItemID {
		return k.ItemID < other.ItemID
	}
	return k.WarehouseID < other.WarehouseID
}

// SortedKeys returns the distinct keys in lock order
func SortedKeys(keys []BalanceKey) []BalanceKey {
	seen := make(map[BalanceKey]struct{}, len(keys))
	out := make([]BalanceKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// InventoryBalance is the materialized on-hand quantity and average cost for one key
type InventoryBalance struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ItemID      uint            `gorm:"not null;uniqueIndex:idx_inv_balance_key" json:"item_id"`
	WarehouseID uint            `gorm:"not null;uniqueIndex:idx_inv_balance_key" json:"warehouse_id"`
	QtyOnHand   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"qty_on_hand"`
	AvgCost     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"avg_cost"`
	Version     uint            `gorm:"not null;default:0" json:"-"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName pins the balance table name
func (InventoryBalance) TableName() string {
	return "inventory_balances"
}

// ZeroBalance is the balance of a key that has never moved
func ZeroBalance(key BalanceKey) InventoryBalance {
	return InventoryBalance{
		ItemID:      key.ItemID,
		WarehouseID: key.WarehouseID,
		QtyOnHand:   decimal.Zero,
		AvgCost:     decimal.Zero,
	}
}

// Key returns the balance key
func (b *InventoryBalance) Key() BalanceKey {
	return BalanceKey{ItemID: b.ItemID, WarehouseID: b.WarehouseID}
}

// IsNegative reports an oversold balance
func (b *InventoryBalance) IsNegative() bool {
	return b.QtyOnHand.IsNegative()
}

// Value returns qty_on_hand * avg_cost
func (b *InventoryBalance) Value() decimal.Decimal {
	return b.QtyOnHand.Mul(b.AvgCost).Round(Scale)
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	ItemID      uint
	WarehouseID uint
	TxnType     TxnType
	RefType     string
	RefID       uint
	Limit       int
	Offset      int
}

// Pagination limits
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Normalize clamps the pagination window
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether txn passes the filter, ignoring pagination
func (f TransactionFilter) Matches(txn *InventoryTransaction) bool {
	if f.ItemID != 0 && txn.ItemID != f.ItemID {
		return false
	}
	if f.WarehouseID != 0 && txn.WarehouseID != f.WarehouseID {
		return false
	}
	if f.TxnType != "" && txn.TxnType != f.TxnType {
		return false
	}
	if f.RefType != "" && (txn.RefType == nil || *txn.RefType != f.RefType) {
		return false
	}
	if f.RefID != 0 && (txn.RefID == nil || *txn.RefID != f.RefID) {
		return false
	}
	return true
}

// NewestFirst is the ledger's listing order: timestamp desc, ties by id desc
func NewestFirst(a, b *InventoryTransaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

// BalanceFilter narrows ListBalances. Zero values mean "any".
type BalanceFilter struct {
	ItemID      uint
	WarehouseID uint
}

// Matches reports whether the key passes the filter
func (f BalanceFilter) Matches(key BalanceKey) bool {
	if f.ItemID != 0 && key.ItemID != f.ItemID {
		return false
	}
	if f.WarehouseID != 0 && key.WarehouseID != f.WarehouseID {
		return false
	}
	return true
}

// Discrepancy is a key whose balance disagrees with the ledger sum
type Discrepancy struct {
	Key        BalanceKey      `json:"key"`
	BalanceQty decimal.Decimal `json:"balance_qty"`
	LedgerQty  decimal.Decimal `json:"ledger_qty"`
	Difference decimal.Decimal `json:"difference"`
	MissingRow bool            `json:"missing_row"`
}

// ReconcileReport summarizes a reconciliation run
type ReconcileReport struct {
	KeysChecked   int           `json:"keys_checked"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	CheckedAt     time.Time     `json:"checked_at"`
}

// Consistent reports whether every balance matches the ledger
func (r *ReconcileReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}
