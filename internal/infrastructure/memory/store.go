// internal/infrastructure/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/posting"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

// Store keeps the ledger, balances and documents in process memory.
// Unit-of-work writes are staged and applied under one lock after a version check.
type Store struct {
	mu sync.RWMutex

	txns     []ledger.InventoryTransaction
	balances map[ledger.BalanceKey]ledger.InventoryBalance
	docs     map[uint]*document.Document

	nextTxnID  atomic.Uint64
	nextBalID  uint
	nextDocID  uint
	nextLineID uint

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		balances: make(map[ledger.BalanceKey]ledger.InventoryBalance),
		docs:     make(map[uint]*document.Document),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// LEDGER READS

func (s *Store) ListTransactions(_ context.Context, filter ledger.TransactionFilter) ([]ledger.InventoryTransaction, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	matched := make([]ledger.InventoryTransaction, 0)
	for i := range s.txns {
		if filter.Matches(&s.txns[i]) {
			matched = append(matched, s.txns[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return ledger.NewestFirst(&matched[i], &matched[j]) })
	return paginate(matched, filter.Offset, filter.Limit), nil
}

func (s *Store) FindBalance(_ context.Context, key ledger.BalanceKey) (*ledger.InventoryBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bal, ok := s.balances[key]
	if !ok {
		return nil, nil
	}
	return &bal, nil
}

func (s *Store) ListBalances(_ context.Context, filter ledger.BalanceFilter) ([]ledger.InventoryBalance, error) {
	s.mu.RLock()
	out := make([]ledger.InventoryBalance, 0, len(s.balances))
	for key, bal := range s.balances {
		if filter.Matches(key) {
			out = append(out, bal)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (s *Store) SumLedger(_ context.Context, filter ledger.BalanceFilter) (map[ledger.BalanceKey]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[ledger.BalanceKey]decimal.Decimal)
	for i := range s.txns {
		key := s.txns[i].Key()
		if !filter.Matches(key) {
			continue
		}
		sums[key] = sums[key].Add(s.txns[i].Qty)
	}
	return sums, nil
}

// DOCUMENTS

func (s *Store) Create(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDocID++
	doc.ID = s.nextDocID
	doc.Number = document.FormatNumber(doc.Kind, doc.Date, doc.ID)
	if doc.Version == 0 {
		doc.Version = 1
	}
	now := s.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	for i := range doc.Lines {
		s.nextLineID++
		doc.Lines[i].ID = s.nextLineID
		doc.Lines[i].DocumentID = doc.ID
	}

	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id uint) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, apperror.NotFound("document", id)
	}
	return doc.Clone(), nil
}

func (s *Store) List(_ context.Context, filter document.ListFilter) ([]document.Document, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	matched := make([]*document.Document, 0)
	for _, doc := range s.docs {
		if filter.Matches(doc) {
			matched = append(matched, doc.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return document.NewestFirst(matched[i], matched[j]) })
	page := paginate(matched, filter.Offset, filter.Limit)

	out := make([]document.Document, len(page))
	for i, doc := range page {
		out[i] = *doc
	}
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id uint, version uint, to document.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return apperror.NotFound("document", id)
	}
	if doc.Version != version {
		return apperror.Conflict("document %d changed concurrently", id)
	}
	doc.Status = to
	doc.Version++
	doc.UpdatedAt = s.now()
	return nil
}

// UNIT OF WORK

// WithinTx stages every write made through tx and applies them only if fn succeeds
// and nothing they depend on changed in the meantime.
func (s *Store) WithinTx(ctx context.Context, fn func(tx posting.Tx) error) error {
	tx := &stagedTx{
		store:    s,
		balances: make(map[ledger.BalanceKey]stagedBalance),
		docs:     make(map[uint]stagedDoc),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *stagedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, staged := range tx.balances {
		current, exists := s.balances[key]
		if staged.baseID == 0 {
			if exists {
				return apperror.Conflict("balance %s was created concurrently", key)
			}
			continue
		}
		if !exists || current.Version != staged.baseVersion {
			return apperror.Conflict("balance %s changed concurrently", key)
		}
	}
	for id, staged := range tx.docs {
		current, ok := s.docs[id]
		if !ok || current.Version != staged.baseVersion {
			return apperror.Conflict("document %d changed concurrently", id)
		}
	}

	now := s.now()
	for key, staged := range tx.balances {
		bal := staged.balance
		if bal.ID == 0 {
			s.nextBalID++
			bal.ID = s.nextBalID
		}
		bal.UpdatedAt = now
		s.balances[key] = bal
	}
	for id, staged := range tx.docs {
		doc := staged.doc.Clone()
		doc.UpdatedAt = now
		s.docs[id] = doc
	}
	s.txns = append(s.txns, tx.txns...)
	return nil
}

type stagedBalance struct {
	balance     ledger.InventoryBalance
	baseID      uint
	baseVersion uint
}

type stagedDoc struct {
	doc         *document.Document
	baseVersion uint
}

type stagedTx struct {
	store    *Store
	balances map[ledger.BalanceKey]stagedBalance
	docs     map[uint]stagedDoc
	txns     []ledger.InventoryTransaction
}

func (t *stagedTx) LockBalance(_ context.Context, key ledger.BalanceKey) (ledger.InventoryBalance, error) {
	if staged, ok := t.balances[key]; ok {
		return staged.balance, nil
	}
	t.store.mu.RLock()
	bal, ok := t.store.balances[key]
	t.store.mu.RUnlock()
	if !ok {
		return ledger.ZeroBalance(key), nil
	}
	return bal, nil
}

func (t *stagedTx) SaveBalance(_ context.Context, bal *ledger.InventoryBalance) error {
	key := bal.Key()
	staged, ok := t.balances[key]
	if !ok {
		// first write for the key in this tx: remember what it was based on
		staged = stagedBalance{baseID: bal.ID, baseVersion: bal.Version}
	} else if staged.balance.Version != bal.Version {
		return apperror.Conflict("balance %s saved from a stale read", key)
	}
	bal.Version++
	staged.balance = *bal
	t.balances[key] = staged
	return nil
}

func (t *stagedTx) AppendTransaction(_ context.Context, txn *ledger.InventoryTransaction) error {
	txn.ID = uint(t.store.nextTxnID.Add(1))
	t.txns = append(t.txns, *txn)
	return nil
}

func (t *stagedTx) TransactionsByRef(_ context.Context, refType string, refID uint) ([]ledger.InventoryTransaction, error) {
	filter := ledger.TransactionFilter{RefType: refType, RefID: refID}

	t.store.mu.RLock()
	matched := make([]ledger.InventoryTransaction, 0)
	for i := range t.store.txns {
		if filter.Matches(&t.store.txns[i]) {
			matched = append(matched, t.store.txns[i])
		}
	}
	t.store.mu.RUnlock()

	for i := range t.txns {
		if filter.Matches(&t.txns[i]) {
			matched = append(matched, t.txns[i])
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (t *stagedTx) LockDocument(ctx context.Context, id uint) (*document.Document, error) {
	if staged, ok := t.docs[id]; ok {
		return staged.doc.Clone(), nil
	}
	return t.store.Get(ctx, id)
}

func (t *stagedTx) SaveDocument(_ context.Context, doc *document.Document) error {
	staged, ok := t.docs[doc.ID]
	if !ok {
		staged = stagedDoc{baseVersion: doc.Version}
	} else if staged.doc.Version != doc.Version {
		return apperror.Conflict("document %d saved from a stale read", doc.ID)
	}
	doc.Version++
	staged.doc = doc.Clone()
	t.docs[doc.ID] = staged
	return nil
}

func (t *stagedTx) CountPostedBySource(_ context.Context, sourceID uint) (int64, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	var n int64
	for id, doc := range t.store.docs {
		if staged, ok := t.docs[id]; ok {
			doc = staged.doc
		}
		if doc.SourceID != nil && *doc.SourceID == sourceID && doc.Status == document.StatusPosted {
			n++
		}
	}
	return n, nil
}

func paginate[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return rows[:0]
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
