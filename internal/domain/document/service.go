// internal/domain/document/service.go
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/domain/audit"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

// Service handles document creation, approval and queries
type Service struct {
	repo     Repository
	lookup   masterdata.Lookup
	audit    audit.Recorder
	validate *validator.Validate
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService creates a new document service
func NewService(repo Repository, lookup masterdata.Lookup, recorder audit.Recorder, log logrus.FieldLogger) *Service {
	return &Service{
		repo:     repo,
		lookup:   lookup,
		audit:    recorder,
		validate: validator.New(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MaxLines bounds the lines on one document; keep in step with the Lines tag
const MaxLines = 5000

// CreateRequest represents draft document creation data
type CreateRequest struct {
	Kind          Kind          `json:"-" validate:"required,oneof=PO GR SO SHIPMENT"`
	CounterpartID *uint         `json:"counterpart_id"`
	SourceID      *uint         `json:"source_id"`
	Date          *time.Time    `json:"date"`
	Notes         string        `json:"notes" validate:"max=2000"`
	Lines         []LineRequest `json:"lines" validate:"max=5000,dive"`
}

// LineRequest represents one requested document line
type LineRequest struct {
	ItemID      uint             `json:"item_id" validate:"required"`
	WarehouseID uint             `json:"warehouse_id" validate:"required"`
	Qty         decimal.Decimal  `json:"qty"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
}

// ToLines converts requested lines to numbered document lines
func (r *CreateRequest) ToLines() []Line {
	lines := make([]Line, 0, len(r.Lines))
	for i, lr := range r.Lines {
		line := Line{
			LineNo:      i + 1,
			ItemID:      lr.ItemID,
			WarehouseID: lr.WarehouseID,
			Qty:         lr.Qty.Round(ledger.Scale),
		}
		if lr.UnitPrice != nil {
			line.UnitPrice = decimal.NewNullDecimal(lr.UnitPrice.Round(ledger.Scale))
		}
		if lr.UnitCost != nil {
			line.UnitCost = decimal.NewNullDecimal(lr.UnitCost.Round(ledger.Scale))
		}
		lines = append(lines, line)
	}
	return lines
}

// Create validates the request and stores a draft document
func (s *Service) Create(ctx context.Context, req *CreateRequest, actor string) (*Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fromValidator(err)
	}

	lines := req.ToLines()
	if err := s.ValidateLines(ctx, req.Kind, lines); err != nil {
		return nil, err
	}

	counterpartID, err := s.resolveHeader(ctx, req)
	if err != nil {
		return nil, err
	}

	date := s.now()
	if req.Date != nil && !req.Date.IsZero() {
		date = req.Date.UTC()
	}

	doc := &Document{
		Kind:          req.Kind,
		Status:        StatusDraft,
		CounterpartID: counterpartID,
		SourceID:      req.SourceID,
		Date:          date,
		Notes:         req.Notes,
		CreatedBy:     actor,
		Version:       1,
		Lines:         lines,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create %s document: %w", req.Kind, err)
	}

	s.log.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"number":      doc.Number,
		"kind":        doc.Kind,
		"actor":       actor,
	}).Info("document created")

	s.record(ctx, doc, actor, "create", map[string]any{"number": doc.Number, "lines": len(doc.Lines)})
	return doc, nil
}

// Approve moves a draft PO or SO to approved. No ledger effect.
func (s *Service) Approve(ctx context.Context, id uint, actor string) (*Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	to, err := Transition(doc.Kind, doc.Status, ActionApprove)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, doc.ID, doc.Version, to); err != nil {
		if apperror.IsConflict(err) {
			// Someone else moved it first; report the state they left it in.
			if current, getErr := s.repo.Get(ctx, id); getErr == nil && current.Status != StatusDraft {
				return nil, apperror.InvalidState("cannot approve %s document in status %s", current.Kind, current.Status).
					WithDetail("id", fmt.Sprint(id))
			}
		}
		return nil, fmt.Errorf("failed to approve document %d: %w", id, err)
	}

	doc.Status = to
	doc.Version++
	s.record(ctx, doc, actor, "approve", map[string]any{"number": doc.Number})
	return doc, nil
}

// Get loads a document with its lines
func (s *Service) Get(ctx context.Context, id uint) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get document %d: %w", id, err)
	}
	return doc, nil
}

// GetKind loads a document and checks it is of the expected kind
func (s *Service) GetKind(ctx context.Context, kind Kind, id uint) (*Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Kind != kind {
		return nil, apperror.NotFound(strings.ToLower(string(kind)), id)
	}
	return doc, nil
}

// List returns documents ordered by date desc
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return nil, apperror.Validation("unknown document kind %q", filter.Kind)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation("unknown document status %q", filter.Status)
	}
	docs, err := s.repo.List(ctx, filter.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// ValidateLines checks line data for a document kind against master data
func (s *Service) ValidateLines(ctx context.Context, kind Kind, lines []Line) error {
	if !kind.IsValid() {
		return apperror.Validation("unknown document kind %q", kind)
	}
	if len(lines) == 0 {
		return apperror.Validation("document must have at least one line")
	}

	for i := range lines {
		line := &lines[i]
		lineErr := func(format string, args ...any) *apperror.Error {
			return apperror.Validation(format, args...).
				WithDetail("line", fmt.Sprint(line.LineNo)).
				WithDetail("item_id", fmt.Sprint(line.ItemID))
		}

		if line.ItemID == 0 {
			return lineErr("item_id is required")
		}
		if line.WarehouseID == 0 {
			return lineErr("warehouse_id is required")
		}
		if !line.Qty.IsPositive() {
			return lineErr("qty must be greater than zero, got %s", line.Qty)
		}

		switch kind {
		case KindPurchaseOrder, KindSalesOrder:
			if !line.UnitPrice.Valid {
				return lineErr("unit_price is required")
			}
			if line.UnitPrice.Decimal.IsNegative() {
				return lineErr("unit_price cannot be negative")
			}
		case KindGoodsReceipt:
			if !line.UnitCost.Valid {
				return lineErr("unit_cost is required")
			}
			if line.UnitCost.Decimal.IsNegative() {
				return lineErr("unit_cost cannot be negative")
			}
		case KindShipment:
			if line.UnitCost.Valid && line.UnitCost.Decimal.IsNegative() {
				return lineErr("unit_cost cannot be negative")
			}
		}

		if _, err := s.lookup.Item(ctx, line.ItemID); err != nil {
			if apperror.IsNotFound(err) {
				return lineErr("unknown item %d", line.ItemID)
			}
			return fmt.Errorf("failed to look up item %d: %w", line.ItemID, err)
		}
		ok, err := s.lookup.WarehouseExists(ctx, line.WarehouseID)
		if err != nil {
			return fmt.Errorf("failed to look up warehouse %d: %w", line.WarehouseID, err)
		}
		if !ok {
			return lineErr("unknown warehouse %d", line.WarehouseID).WithDetail("warehouse_id", fmt.Sprint(line.WarehouseID))
		}
	}
	return nil
}

// resolveHeader checks counterpart and source rules and returns the effective counterpart
func (s *Service) resolveHeader(ctx context.Context, req *CreateRequest) (*uint, error) {
	counterpartID := req.CounterpartID

	if req.SourceID != nil {
		sourceKind, ok := req.Kind.SourceKind()
		if !ok {
			return nil, apperror.Validation("%s documents cannot reference a source document", req.Kind).
				WithDetail("field", "source_id")
		}
		source, err := s.repo.Get(ctx, *req.SourceID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.Validation("source document %d not found", *req.SourceID).WithDetail("field", "source_id")
			}
			return nil, fmt.Errorf("failed to load source document: %w", err)
		}
		if source.Kind != sourceKind {
			return nil, apperror.Validation("source document %d is a %s, expected %s", source.ID, source.Kind, sourceKind).
				WithDetail("field", "source_id")
		}
		if source.Status != StatusApproved {
			return nil, apperror.Validation("source %s %s must be approved, is %s", source.Kind, source.Number, source.Status).
				WithDetail("field", "source_id")
		}
		if counterpartID == nil {
			counterpartID = source.CounterpartID
		} else if source.CounterpartID != nil && *source.CounterpartID != *counterpartID {
			return nil, apperror.Validation("counterpart %d does not match source %s", *counterpartID, source.Number).
				WithDetail("field", "counterpart_id")
		}
	}

	required := req.Kind == KindPurchaseOrder || req.Kind == KindSalesOrder
	if counterpartID == nil || *counterpartID == 0 {
		if required {
			return nil, apperror.Validation("%s requires a %s", req.Kind, counterpartName(req.Kind)).
				WithDetail("field", "counterpart_id")
		}
		return nil, nil
	}

	exists := s.lookup.CustomerExists
	if req.Kind.IsPurchasing() {
		exists = s.lookup.VendorExists
	}
	ok, err := exists(ctx, *counterpartID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", counterpartName(req.Kind), err)
	}
	if !ok {
		return nil, apperror.Validation("unknown %s %d", counterpartName(req.Kind), *counterpartID).
			WithDetail("field", "counterpart_id")
	}
	return counterpartID, nil
}

func (s *Service) record(ctx context.Context, doc *Document, actor, action string, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	ref := doc.ID
	s.audit.Record(ctx, audit.Entry{
		Actor:   actor,
		Module:  ModuleOf(doc.Kind),
		Action:  action,
		RefID:   &ref,
		Details: string(payload),
	})
}

// ModuleOf names the audit module owning a kind
func ModuleOf(kind Kind) string {
	if kind.IsPurchasing() {
		return audit.ModulePurchasing
	}
	return audit.ModuleSales
}

func counterpartName(kind Kind) string {
	if kind.IsPurchasing() {
		return "vendor"
	}
	return "customer"
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperror.Validation("%s failed on %s", fe.Namespace(), fe.Tag()).WithDetail("field", fe.Field())
	}
	return apperror.Validation("invalid request: %v", err)
}
