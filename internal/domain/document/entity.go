// internal/domain/document/entity.go
package document

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
)

// Kind represents the type of business document
type Kind string

const (
	KindPurchaseOrder Kind = "PO"
	KindGoodsReceipt  Kind = "GR"
	KindSalesOrder    Kind = "SO"
	KindShipment      Kind = "SHIPMENT"
)

// Kinds lists every document kind
var Kinds = []Kind{KindPurchaseOrder, KindGoodsReceipt, KindSalesOrder, KindShipment}

// IsValid checks if the kind is valid
func (k Kind) IsValid() bool {
	switch k {
	case KindPurchaseOrder, KindGoodsReceipt, KindSalesOrder, KindShipment:
		return true
	}
	return false
}

// Prefix returns the document number prefix
func (k Kind) Prefix() string {
	switch k {
	case KindPurchaseOrder:
		return "PO"
	case KindGoodsReceipt:
		return "GR"
	case KindSalesOrder:
		return "SO"
	case KindShipment:
		return "SHP"
	}
	return "DOC"
}

// Movement describes the ledger effect of posting a document kind
type Movement struct {
	TxnType ledger.TxnType
	Inbound bool
}

// Movement maps a kind to its ledger transaction type and direction
func (k Kind) Movement() Movement {
	switch k {
	case KindPurchaseOrder, KindGoodsReceipt:
		return Movement{TxnType: ledger.TxnTypeReceipt, Inbound: true}
	case KindSalesOrder, KindShipment:
		return Movement{TxnType: ledger.TxnTypeIssue, Inbound: false}
	}
	panic(fmt.Sprintf("document: no movement for kind %q", k))
}

// IsPurchasing reports whether the counterpart is a vendor
func (k Kind) IsPurchasing() bool {
	return k == KindPurchaseOrder || k == KindGoodsReceipt
}

// SourceKind returns the order kind a receipt or shipment may reference
func (k Kind) SourceKind() (Kind, bool) {
	switch k {
	case KindGoodsReceipt:
		return KindPurchaseOrder, true
	case KindShipment:
		return KindSalesOrder, true
	}
	return "", false
}

// ReversalRefType is the ledger ref_type written by reversals of this kind
func (k Kind) ReversalRefType() string {
	return string(k) + "_REVERSAL"
}

// Status represents the lifecycle state of a document
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusPosted   Status = "posted"
	StatusReversed Status = "reversed"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusPosted, StatusReversed:
		return true
	}
	return false
}

// Document is a PO, GR, SO or Shipment with its ordered lines
type Document struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Number        string     `gorm:"uniqueIndex;not null;size:40" json:"number"`
	Kind          Kind       `gorm:"size:20;not null;index:idx_documents_kind_status" json:"kind"`
	Status        Status     `gorm:"size:20;not null;index:idx_documents_kind_status" json:"status"`
	CounterpartID *uint      `gorm:"index" json:"counterpart_id"`
	SourceID      *uint      `gorm:"index" json:"source_id,omitempty"`
	Date          time.Time  `gorm:"not null;index" json:"date"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy     string     `gorm:"size:100" json:"created_by,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	ReversedAt    *time.Time `json:"reversed_at,omitempty"`
	Version       uint       `gorm:"not null;default:1" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Lines []Line `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"lines"`
}

// TableName pins the document table name
func (Document) TableName() string {
	return "documents"
}

// Keys returns the distinct balance keys touched by the document, in lock order
func (d *Document) Keys() []ledger.BalanceKey {
	keys := make([]ledger.BalanceKey, 0, len(d.Lines))
	for _, line := range d.Lines {
		keys = append(keys, line.Key())
	}
	return ledger.SortedKeys(keys)
}

// Clone returns a deep copy, so stores can hand out documents without sharing lines
func (d *Document) Clone() *Document {
	out := *d
	out.Lines = append([]Line(nil), d.Lines...)
	if d.CounterpartID != nil {
		v := *d.CounterpartID
		out.CounterpartID = &v
	}
	if d.SourceID != nil {
		v := *d.SourceID
		out.SourceID = &v
	}
	if d.PostedAt != nil {
		v := *d.PostedAt
		out.PostedAt = &v
	}
	if d.ReversedAt != nil {
		v := *d.ReversedAt
		out.ReversedAt = &v
	}
	return &out
}

// Line is one ordered document line
type Line struct {
	ID          uint                `gorm:"primaryKey" json:"-"`
	DocumentID  uint                `gorm:"not null;uniqueIndex:idx_document_lines_no" json:"-"`
	LineNo      int                 `gorm:"not null;uniqueIndex:idx_document_lines_no" json:"line_no"`
	ItemID      uint                `gorm:"not null;index" json:"item_id"`
	WarehouseID uint                `gorm:"not null" json:"warehouse_id"`
	Qty         decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"qty"`
	UnitPrice   decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"unit_price"`
	UnitCost    decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"unit_cost"`
}

// TableName pins the line table name
func (Line) TableName() string {
	return "document_lines"
}

// Key returns the balance key the line moves
func (l *Line) Key() ledger.BalanceKey {
	return ledger.BalanceKey{ItemID: l.ItemID, WarehouseID: l.WarehouseID}
}

// FormatNumber renders <PREFIX>-YYYYMMDD-<id>
func FormatNumber(kind Kind, date time.Time, id uint) string {
	return fmt.Sprintf("%s-%s-%05d", kind.Prefix(), date.UTC().Format("20060102"), id)
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Kind          Kind
	Status        Status
	CounterpartID uint
	SourceID      uint
	Limit         int
	Offset        int
}

// Matches reports whether doc passes the filter, ignoring pagination
func (f ListFilter) Matches(doc *Document) bool {
	if f.Kind != "" && doc.Kind != f.Kind {
		return false
	}
	if f.Status != "" && doc.Status != f.Status {
		return false
	}
	if f.CounterpartID != 0 && (doc.CounterpartID == nil || *doc.CounterpartID != f.CounterpartID) {
		return false
	}
	if f.SourceID != 0 && (doc.SourceID == nil || *doc.SourceID != f.SourceID) {
		return false
	}
	return true
}

// Normalize clamps the pagination window
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = ledger.DefaultLimit
	}
	if f.Limit > ledger.MaxLimit {
		f.Limit = ledger.MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// NewestFirst orders documents by date desc, ties by id desc
func NewestFirst(a, b *Document) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.ID > b.ID
}
