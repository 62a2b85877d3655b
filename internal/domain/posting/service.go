// internal/domain/posting/service.go
package posting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/domain/audit"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
	"github.com/your-org/inventory-ledger/internal/pkg/logger"
	"github.com/your-org/inventory-ledger/internal/pkg/metrics"
)

// Operations, used for metrics and audit actions
const (
	OperationPost    = "post"
	OperationReverse = "reverse"
	OperationAdjust  = "adjust"
)

// Policy holds the posting rules that are configurable per deployment
type Policy struct {
	RejectOversell bool
	AllowReversal  bool
	MaxRetries     int
	RetryInitial   time.Duration
}

// Warning is a non-blocking signal raised during a posting
type Warning struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Key       ledger.BalanceKey `json:"key"`
	QtyOnHand decimal.Decimal   `json:"qty_on_hand"`
	LineNo    int               `json:"line_no,omitempty"`
}

// Result is what a successful post or reverse returns
type Result struct {
	Document     *document.Document            `json:"document"`
	Transactions []ledger.InventoryTransaction `json:"transactions"`
	Warnings     []Warning                     `json:"warnings,omitempty"`
}

// AdjustRequest represents a manual stock adjustment
type AdjustRequest struct {
	ItemID      uint             `json:"item_id" validate:"required"`
	WarehouseID uint             `json:"warehouse_id" validate:"required"`
	Qty         decimal.Decimal  `json:"qty"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	Reason      string           `json:"reason" validate:"max=500"`
}

// AdjustResult is what a successful adjustment returns
type AdjustResult struct {
	Transaction ledger.InventoryTransaction `json:"transaction"`
	Balance     ledger.InventoryBalance     `json:"balance"`
	Warnings    []Warning                   `json:"warnings,omitempty"`
}

// Service is the transactional boundary that turns documents into ledger effects
type Service struct {
	uow       UnitOfWork
	documents *document.Service
	ledger    *ledger.Service
	costing   *ledger.CostingEngine
	lookup    masterdata.Lookup
	locker    KeyLocker
	audit     audit.Recorder
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	policy    Policy
	validate  *validator.Validate
	now       func() time.Time
}

// Dependencies groups the collaborators of the posting service
type Dependencies struct {
	UnitOfWork UnitOfWork
	Documents  *document.Service
	Ledger     *ledger.Service
	Costing    *ledger.CostingEngine
	Lookup     masterdata.Lookup
	Locker     KeyLocker
	Audit      audit.Recorder
	Metrics    *metrics.Metrics
	Log        logrus.FieldLogger
}

// NewService creates a new posting service
func NewService(deps Dependencies, policy Policy) *Service {
	if deps.Costing == nil {
		deps.Costing = ledger.NewCostingEngine()
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker(0)
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if policy.RetryInitial <= 0 {
		policy.RetryInitial = 50 * time.Millisecond
	}
	return &Service{
		uow:       deps.UnitOfWork,
		documents: deps.Documents,
		ledger:    deps.Ledger,
		costing:   deps.Costing,
		lookup:    deps.Lookup,
		locker:    deps.Locker,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		log:       deps.Log,
		policy:    policy,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Post applies every line of a document to the ledger and marks it posted, atomically.
// Posting an already-posted document fails with an InvalidStateError and writes nothing.
func (s *Service) Post(ctx context.Context, id uint, actor string) (*Result, error) {
	start := time.Now()
	kind := "unknown"

	var result *Result
	err := s.withRetry(ctx, OperationPost, func() error {
		doc, err := s.documents.Get(ctx, id)
		if err != nil {
			return err
		}
		kind = string(doc.Kind)
		result, err = s.postOnce(ctx, doc, actor)
		return err
	})

	s.metrics.RecordPosting(kind, OperationPost, outcome(err), time.Since(start))
	if err != nil {
		return nil, s.fail(OperationPost, id, err)
	}

	movement := result.Document.Kind.Movement()
	s.metrics.RecordTransactions(string(movement.TxnType), len(result.Transactions))
	s.log.WithFields(logrus.Fields{
		"document_id":  id,
		"number":       result.Document.Number,
		"kind":         result.Document.Kind,
		"transactions": len(result.Transactions),
		"warnings":     len(result.Warnings),
		"actor":        actor,
	}).Info("document posted")

	s.record(ctx, actor, document.ModuleOf(result.Document.Kind), OperationPost, id, map[string]any{
		"number":       result.Document.Number,
		"transactions": len(result.Transactions),
		"warnings":     result.Warnings,
	})
	return result, nil
}

func (s *Service) postOnce(ctx context.Context, doc *document.Document, actor string) (*Result, error) {
	if _, err := document.Transition(doc.Kind, doc.Status, document.ActionPost); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, doc.Keys())
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &Result{}
	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		locked, err := tx.LockDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		to, err := document.Transition(locked.Kind, locked.Status, document.ActionPost)
		if err != nil {
			return err
		}
		if err := s.documents.ValidateLines(ctx, locked.Kind, locked.Lines); err != nil {
			return err
		}
		if err := s.checkSource(ctx, tx, locked); err != nil {
			return err
		}

		movement := locked.Kind.Movement()
		refType := string(locked.Kind)
		refID := locked.ID
		items := make(map[uint]*masterdata.Item)

		for i := range locked.Lines {
			line := &locked.Lines[i]
			item, err := s.item(ctx, items, line.ItemID)
			if err != nil {
				return withLine(err, line)
			}

			bal, err := tx.LockBalance(ctx, line.Key())
			if err != nil {
				return err
			}

			txn := &ledger.InventoryTransaction{
				ItemID:      line.ItemID,
				WarehouseID: line.WarehouseID,
				TxnType:     movement.TxnType,
				RefType:     &refType,
				RefID:       &refID,
				CreatedBy:   actor,
			}

			if movement.Inbound {
				var recorded decimal.Decimal
				bal, recorded, err = s.costing.ApplyInbound(bal, item, line.Qty, inboundCost(line))
				if err != nil {
					return withLine(err, line)
				}
				txn.Qty = line.Qty
				txn.UnitCost = recorded
			} else {
				var used decimal.Decimal
				bal, used, err = s.costing.ApplyOutbound(bal, item, line.Qty)
				if err != nil {
					return withLine(err, line)
				}
				txn.Qty = line.Qty.Neg()
				txn.UnitCost = used
				line.UnitCost = decimal.NewNullDecimal(used)
			}

			if warning, err := s.checkBalance(&bal, line.LineNo); err != nil {
				return withLine(err, line)
			} else if warning != nil {
				result.Warnings = append(result.Warnings, *warning)
			}

			if _, err := s.ledger.Append(ctx, tx, txn); err != nil {
				return withLine(err, line)
			}
			if err := tx.SaveBalance(ctx, &bal); err != nil {
				return err
			}
			result.Transactions = append(result.Transactions, *txn)
		}

		postedAt := s.now()
		locked.Status = to
		locked.PostedAt = &postedAt
		if err := tx.SaveDocument(ctx, locked); err != nil {
			return err
		}
		result.Document = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkSource keeps an order from being received twice: once through its own
// posting and once through receipts/shipments that reference it.
func (s *Service) checkSource(ctx context.Context, tx Tx, doc *document.Document) error {
	if _, isChild := doc.Kind.SourceKind(); isChild {
		if doc.SourceID == nil {
			return nil
		}
		source, err := tx.LockDocument(ctx, *doc.SourceID)
		if err != nil {
			return err
		}
		if source.Status != document.StatusApproved {
			return apperror.InvalidState("source %s %s is %s, expected approved", source.Kind, source.Number, source.Status).
				WithDetail("source_id", itoa(source.ID))
		}
		// bump the source version so a concurrent posting of the order conflicts
		return tx.SaveDocument(ctx, source)
	}

	n, err := tx.CountPostedBySource(ctx, doc.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperror.InvalidState("%s %s already has %d posted receipts or shipments", doc.Kind, doc.Number, n)
	}
	return nil
}

// Reverse undoes a posted document with compensating ADJUST transactions.
// Only available when the reversal policy is on.
func (s *Service) Reverse(ctx context.Context, id uint, actor string) (*Result, error) {
	if !s.policy.AllowReversal {
		return nil, apperror.InvalidState("reversal of posted documents is disabled").WithDetail("id", itoa(id))
	}

	start := time.Now()
	kind := "unknown"

	var result *Result
	err := s.withRetry(ctx, OperationReverse, func() error {
		doc, err := s.documents.Get(ctx, id)
		if err != nil {
			return err
		}
		kind = string(doc.Kind)
		result, err = s.reverseOnce(ctx, doc, actor)
		return err
	})

	s.metrics.RecordPosting(kind, OperationReverse, outcome(err), time.Since(start))
	if err != nil {
		return nil, s.fail(OperationReverse, id, err)
	}

	s.metrics.RecordTransactions(string(ledger.TxnTypeAdjust), len(result.Transactions))
	s.log.WithFields(logrus.Fields{
		"document_id":  id,
		"number":       result.Document.Number,
		"transactions": len(result.Transactions),
		"actor":        actor,
	}).Info("document reversed")

	s.record(ctx, actor, document.ModuleOf(result.Document.Kind), OperationReverse, id, map[string]any{
		"number":       result.Document.Number,
		"transactions": len(result.Transactions),
	})
	return result, nil
}

func (s *Service) reverseOnce(ctx context.Context, doc *document.Document, actor string) (*Result, error) {
	if _, err := document.Transition(doc.Kind, doc.Status, document.ActionReverse); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, doc.Keys())
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &Result{}
	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		locked, err := tx.LockDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		to, err := document.Transition(locked.Kind, locked.Status, document.ActionReverse)
		if err != nil {
			return err
		}

		// replayed in posting order
		original, err := tx.TransactionsByRef(ctx, string(locked.Kind), locked.ID)
		if err != nil {
			return err
		}

		refType := locked.Kind.ReversalRefType()
		refID := locked.ID
		items := make(map[uint]*masterdata.Item)

		for i := range original {
			orig := &original[i]
			item, err := s.item(ctx, items, orig.ItemID)
			if err != nil {
				return err
			}
			bal, err := tx.LockBalance(ctx, orig.Key())
			if err != nil {
				return err
			}

			txn := &ledger.InventoryTransaction{
				ItemID:      orig.ItemID,
				WarehouseID: orig.WarehouseID,
				Qty:         orig.Qty.Neg(),
				UnitCost:    orig.UnitCost,
				TxnType:     ledger.TxnTypeAdjust,
				RefType:     &refType,
				RefID:       &refID,
				CreatedBy:   actor,
			}

			if orig.Qty.IsPositive() {
				bal, err = s.costing.RemoveInbound(bal, item, orig.Qty, orig.UnitCost)
			} else {
				var recorded decimal.Decimal
				bal, recorded, err = s.costing.ApplyInbound(bal, item, orig.Qty.Neg(), orig.UnitCost)
				txn.UnitCost = recorded
			}
			if err != nil {
				return err
			}

			if warning, err := s.checkBalance(&bal, 0); err != nil {
				return err
			} else if warning != nil {
				result.Warnings = append(result.Warnings, *warning)
			}

			if _, err := s.ledger.Append(ctx, tx, txn); err != nil {
				return err
			}
			if err := tx.SaveBalance(ctx, &bal); err != nil {
				return err
			}
			result.Transactions = append(result.Transactions, *txn)
		}

		reversedAt := s.now()
		locked.Status = to
		locked.ReversedAt = &reversedAt
		if err := tx.SaveDocument(ctx, locked); err != nil {
			return err
		}
		result.Document = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Adjust appends a manual ADJUST transaction. Positive qty is inbound at the
// given cost (default: current average), negative qty is outbound at average.
func (s *Service) Adjust(ctx context.Context, req *AdjustRequest, actor string) (*AdjustResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperror.Validation("invalid adjustment: %v", err)
	}
	if req.Qty.IsZero() {
		return nil, apperror.Validation("adjustment qty cannot be zero").WithDetail("item_id", itoa(req.ItemID))
	}
	if req.UnitCost != nil && req.UnitCost.IsNegative() {
		return nil, apperror.Validation("unit_cost cannot be negative").WithDetail("item_id", itoa(req.ItemID))
	}
	key := ledger.BalanceKey{ItemID: req.ItemID, WarehouseID: req.WarehouseID}
	if err := s.ledger.ValidateKey(ctx, key); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *AdjustResult
	err := s.withRetry(ctx, OperationAdjust, func() error {
		var err error
		result, err = s.adjustOnce(ctx, req, key, actor)
		return err
	})

	s.metrics.RecordPosting("ADJUST", OperationAdjust, outcome(err), time.Since(start))
	if err != nil {
		return nil, s.fail(OperationAdjust, 0, err)
	}

	s.metrics.RecordTransactions(string(ledger.TxnTypeAdjust), 1)
	ref := result.Transaction.ID
	s.record(ctx, actor, audit.ModuleInventory, OperationAdjust, ref, map[string]any{
		"item_id":      req.ItemID,
		"warehouse_id": req.WarehouseID,
		"qty":          req.Qty.String(),
		"reason":       req.Reason,
	})
	return result, nil
}

func (s *Service) adjustOnce(ctx context.Context, req *AdjustRequest, key ledger.BalanceKey, actor string) (*AdjustResult, error) {
	unlock, err := s.locker.Lock(ctx, []ledger.BalanceKey{key})
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &AdjustResult{}
	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		item, err := s.lookup.Item(ctx, key.ItemID)
		if err != nil {
			return err
		}
		bal, err := tx.LockBalance(ctx, key)
		if err != nil {
			return err
		}

		txn := &ledger.InventoryTransaction{
			ItemID:      key.ItemID,
			WarehouseID: key.WarehouseID,
			Qty:         req.Qty,
			TxnType:     ledger.TxnTypeAdjust,
			CreatedBy:   actor,
		}

		if req.Qty.IsPositive() {
			cost := bal.AvgCost
			if req.UnitCost != nil {
				cost = *req.UnitCost
			}
			bal, txn.UnitCost, err = s.costing.ApplyInbound(bal, item, req.Qty, cost)
		} else {
			bal, txn.UnitCost, err = s.costing.ApplyOutbound(bal, item, req.Qty.Neg())
		}
		if err != nil {
			return err
		}

		if warning, err := s.checkBalance(&bal, 0); err != nil {
			return err
		} else if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
		}

		if _, err := s.ledger.Append(ctx, tx, txn); err != nil {
			return err
		}
		if err := tx.SaveBalance(ctx, &bal); err != nil {
			return err
		}
		result.Transaction = *txn
		result.Balance = bal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkBalance applies the oversell policy to a balance about to be saved
func (s *Service) checkBalance(bal *ledger.InventoryBalance, lineNo int) (*Warning, error) {
	if !bal.IsNegative() {
		return nil, nil
	}
	if s.policy.RejectOversell {
		return nil, apperror.Integrity("posting would leave %s at %s", bal.Key(), bal.QtyOnHand).
			WithDetail("item_id", itoa(bal.ItemID)).
			WithDetail("warehouse_id", itoa(bal.WarehouseID))
	}

	s.metrics.RecordNegativeBalance()
	s.log.WithFields(logrus.Fields{
		"item_id":      bal.ItemID,
		"warehouse_id": bal.WarehouseID,
		"qty_on_hand":  bal.QtyOnHand.String(),
	}).Warn("balance is negative after posting")

	return &Warning{
		Code:      apperror.CodeIntegrity,
		Message:   fmt.Sprintf("%s is oversold", bal.Key()),
		Key:       bal.Key(),
		QtyOnHand: bal.QtyOnHand,
		LineNo:    lineNo,
	}, nil
}

// withRetry retries fn on ConcurrencyConflict with bounded exponential backoff
func (s *Service) withRetry(ctx context.Context, operation string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.policy.RetryInitial
	policy.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !apperror.IsConflict(err) {
			return backoff.Permanent(err)
		}
		if attempt <= s.policy.MaxRetries {
			s.metrics.RecordRetry(operation)
			s.log.WithFields(logrus.Fields{
				"operation": operation,
				"attempt":   attempt,
			}).WithError(err).Debug("concurrency conflict, retrying")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.policy.MaxRetries)), ctx))
}

func (s *Service) fail(operation string, id uint, err error) error {
	if apperror.KindOf(err) == apperror.KindInternal {
		logger.LogError(s.log, "posting", operation, "unexpected failure", map[string]any{"document_id": id}, err)
	}
	return err
}

func (s *Service) item(ctx context.Context, cache map[uint]*masterdata.Item, id uint) (*masterdata.Item, error) {
	if item, ok := cache[id]; ok {
		return item, nil
	}
	item, err := s.lookup.Item(ctx, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.Validation("unknown item %d", id).WithDetail("item_id", itoa(id))
		}
		return nil, err
	}
	cache[id] = item
	return item, nil
}

func (s *Service) record(ctx context.Context, actor, module, action string, refID uint, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	s.audit.Record(ctx, audit.Entry{
		Actor:   actor,
		Module:  module,
		Action:  action,
		RefID:   &refID,
		Details: string(payload),
	})
}

// inboundCost is the cost a receipt line carries: unit_cost, or the order price for POs
func inboundCost(line *document.Line) decimal.Decimal {
	if line.UnitCost.Valid {
		return line.UnitCost.Decimal
	}
	if line.UnitPrice.Valid {
		return line.UnitPrice.Decimal
	}
	return decimal.Zero
}

func withLine(err error, line *document.Line) error {
	if appErr, ok := apperror.As(err); ok {
		appErr.WithDetail("line", fmt.Sprint(line.LineNo))
		if _, set := appErr.Details["item_id"]; !set {
			appErr.WithDetail("item_id", itoa(line.ItemID))
		}
	}
	return err
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(apperror.KindOf(err))
}
