// internal/infrastructure/database/postgres/store.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/posting"
	"github.com/your-org/inventory-ledger/internal/domain/report"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres error codes that mean "try again"
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// Store implements the ledger, document and report stores on PostgreSQL.
// Units of work run in one database transaction with SELECT ... FOR UPDATE row locks.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// LEDGER READS

func (s *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.InventoryTransaction, error) {
	filter = filter.Normalize()
	query := s.db.WithContext(ctx).Model(&ledger.InventoryTransaction{})

	if filter.ItemID != 0 {
		query = query.Where("item_id = ?", filter.ItemID)
	}
	if filter.WarehouseID != 0 {
		query = query.Where("warehouse_id = ?", filter.WarehouseID)
	}
	if filter.TxnType != "" {
		query = query.Where("txn_type = ?", filter.TxnType)
	}
	if filter.RefType != "" {
		query = query.Where("ref_type = ?", filter.RefType)
	}
	if filter.RefID != 0 {
		query = query.Where("ref_id = ?", filter.RefID)
	}

	var txns []ledger.InventoryTransaction
	err := query.Order("timestamp DESC").Order("id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (s *Store) FindBalance(ctx context.Context, key ledger.BalanceKey) (*ledger.InventoryBalance, error) {
	var bal ledger.InventoryBalance
	err := s.db.WithContext(ctx).
		Where("item_id = ? AND warehouse_id = ?", key.ItemID, key.WarehouseID).
		First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find balance %s: %w", key, err)
	}
	return &bal, nil
}

func (s *Store) ListBalances(ctx context.Context, filter ledger.BalanceFilter) ([]ledger.InventoryBalance, error) {
	query := balanceScope(s.db.WithContext(ctx), filter)

	var balances []ledger.InventoryBalance
	if err := query.Order("item_id ASC").Order("warehouse_id ASC").Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

func (s *Store) SumLedger(ctx context.Context, filter ledger.BalanceFilter) (map[ledger.BalanceKey]decimal.Decimal, error) {
	var rows []struct {
		ItemID      uint
		WarehouseID uint
		Qty         decimal.Decimal
	}
	query := balanceScope(s.db.WithContext(ctx).Model(&ledger.InventoryTransaction{}), filter)
	err := query.
		Select("item_id, warehouse_id, COALESCE(SUM(qty), 0) AS qty").
		Group("item_id, warehouse_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}

	sums := make(map[ledger.BalanceKey]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[ledger.BalanceKey{ItemID: row.ItemID, WarehouseID: row.WarehouseID}] = row.Qty
	}
	return sums, nil
}

func balanceScope(query *gorm.DB, filter ledger.BalanceFilter) *gorm.DB {
	if filter.ItemID != 0 {
		query = query.Where("item_id = ?", filter.ItemID)
	}
	if filter.WarehouseID != 0 {
		query = query.Where("warehouse_id = ?", filter.WarehouseID)
	}
	return query
}

// DOCUMENTS

func (s *Store) Create(ctx context.Context, doc *document.Document) error {
	if doc.Version == 0 {
		doc.Version = 1
	}
	for i := range doc.Lines {
		doc.Lines[i].ID = 0
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the number embeds the id, so insert under a placeholder first
		doc.Number = uuid.NewString()
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		doc.Number = document.FormatNumber(doc.Kind, doc.Date, doc.ID)
		return tx.Model(&document.Document{}).Where("id = ?", doc.ID).Update("number", doc.Number).Error
	})
	if err != nil {
		return translate(fmt.Errorf("failed to create document: %w", err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uint) (*document.Document, error) {
	return getDocument(s.db.WithContext(ctx), id, false)
}

func (s *Store) List(ctx context.Context, filter document.ListFilter) ([]document.Document, error) {
	filter = filter.Normalize()
	query := s.db.WithContext(ctx).Model(&document.Document{})

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CounterpartID != 0 {
		query = query.Where("counterpart_id = ?", filter.CounterpartID)
	}
	if filter.SourceID != 0 {
		query = query.Where("source_id = ?", filter.SourceID)
	}

	var docs []document.Document
	err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Order("date DESC").Order("id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uint, version uint, to document.Status) error {
	result := s.db.WithContext(ctx).Model(&document.Document{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return translate(fmt.Errorf("failed to update document %d: %w", id, result.Error))
	}
	if result.RowsAffected == 0 {
		return s.missingOrStale(ctx, id)
	}
	return nil
}

func (s *Store) missingOrStale(ctx context.Context, id uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&document.Document{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check document %d: %w", id, err)
	}
	if count == 0 {
		return apperror.NotFound("document", id)
	}
	return apperror.Conflict("document %d changed concurrently", id)
}

func getDocument(db *gorm.DB, id uint, forUpdate bool) (*document.Document, error) {
	var doc document.Document
	query := db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("document", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %d: %w", id, err)
	}

	if err := db.Where("document_id = ?", id).Order("line_no ASC").Find(&doc.Lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load lines of document %d: %w", id, err)
	}
	return &doc, nil
}

// REPORTS

func (s *Store) CounterpartTotals(ctx context.Context, kind document.Kind) ([]report.CounterpartTotal, error) {
	var totals []report.CounterpartTotal
	err := s.db.WithContext(ctx).
		Table("documents AS d").
		Select(`d.counterpart_id AS counterpart_id,
			COUNT(DISTINCT d.id) AS documents,
			COALESCE(SUM(l.qty), 0) AS total_qty,
			COALESCE(SUM(l.qty * COALESCE(l.unit_price, 0)), 0) AS total_amount`).
		Joins("JOIN document_lines AS l ON l.document_id = d.id").
		Where("d.kind = ? AND d.status <> ? AND d.counterpart_id IS NOT NULL", kind, document.StatusReversed).
		Group("d.counterpart_id").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to total %s documents: %w", kind, err)
	}
	return totals, nil
}

// UNIT OF WORK

// WithinTx runs fn inside one database transaction
func (s *Store) WithinTx(ctx context.Context, fn func(tx posting.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&pgTx{db: db})
	})
	return translate(err)
}

type pgTx struct {
	db *gorm.DB
}

func (t *pgTx) LockBalance(_ context.Context, key ledger.BalanceKey) (ledger.InventoryBalance, error) {
	var bal ledger.InventoryBalance
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_id = ? AND warehouse_id = ?", key.ItemID, key.WarehouseID).
		First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ZeroBalance(key), nil
	}
	if err != nil {
		return bal, fmt.Errorf("failed to lock balance %s: %w", key, err)
	}
	return bal, nil
}

func (t *pgTx) SaveBalance(_ context.Context, bal *ledger.InventoryBalance) error {
	now := time.Now().UTC()
	if bal.ID == 0 {
		bal.Version++
		bal.UpdatedAt = now
		if err := t.db.Create(bal).Error; err != nil {
			bal.Version--
			if isCode(err, codeUniqueViolation) {
				return apperror.Conflict("balance %s was created concurrently", bal.Key())
			}
			return fmt.Errorf("failed to insert balance %s: %w", bal.Key(), err)
		}
		return nil
	}

	result := t.db.Model(&ledger.InventoryBalance{}).
		Where("id = ? AND version = ?", bal.ID, bal.Version).
		Updates(map[string]interface{}{
			"qty_on_hand": bal.QtyOnHand,
			"avg_cost":    bal.AvgCost,
			"version":     bal.Version + 1,
			"updated_at":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update balance %s: %w", bal.Key(), result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("balance %s changed concurrently", bal.Key())
	}
	bal.Version++
	bal.UpdatedAt = now
	return nil
}

func (t *pgTx) AppendTransaction(_ context.Context, txn *ledger.InventoryTransaction) error {
	if err := t.db.Create(txn).Error; err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (t *pgTx) TransactionsByRef(_ context.Context, refType string, refID uint) ([]ledger.InventoryTransaction, error) {
	var txns []ledger.InventoryTransaction
	err := t.db.Where("ref_type = ? AND ref_id = ?", refType, refID).
		Order("id ASC").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions of %s %d: %w", refType, refID, err)
	}
	return txns, nil
}

func (t *pgTx) LockDocument(_ context.Context, id uint) (*document.Document, error) {
	return getDocument(t.db, id, true)
}

func (t *pgTx) SaveDocument(_ context.Context, doc *document.Document) error {
	now := time.Now().UTC()
	result := t.db.Model(&document.Document{}).
		Where("id = ? AND version = ?", doc.ID, doc.Version).
		Updates(map[string]interface{}{
			"status":      doc.Status,
			"posted_at":   doc.PostedAt,
			"reversed_at": doc.ReversedAt,
			"version":     doc.Version + 1,
			"updated_at":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save document %d: %w", doc.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("document %d changed concurrently", doc.ID)
	}

	for i := range doc.Lines {
		line := &doc.Lines[i]
		err := t.db.Model(&document.Line{}).
			Where("id = ?", line.ID).
			Update("unit_cost", line.UnitCost).Error
		if err != nil {
			return fmt.Errorf("failed to save line %d of document %d: %w", line.LineNo, doc.ID, err)
		}
	}

	doc.Version++
	doc.UpdatedAt = now
	return nil
}

func (t *pgTx) CountPostedBySource(_ context.Context, sourceID uint) (int64, error) {
	var count int64
	err := t.db.Model(&document.Document{}).
		Where("source_id = ? AND status = ?", sourceID, document.StatusPosted).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count documents of source %d: %w", sourceID, err)
	}
	return count, nil
}

// translate maps retryable postgres failures to concurrency conflicts
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	if isCode(err, codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation) {
		return apperror.Conflict("the database rejected a concurrent update").Wrap(err)
	}
	return err
}

func isCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, code := range codes {
		if pgErr.Code == code {
			return true
		}
	}
	return false
}
