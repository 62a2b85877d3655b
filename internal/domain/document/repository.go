// internal/domain/document/repository.go
package document

import (
	"context"
)

// Repository persists documents outside posting
type Repository interface {
	// Create inserts a draft with its lines and assigns ID and Number (FormatNumber)
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id uint) (*Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
	// UpdateStatus compare-and-sets status on version; a lost race is an apperror conflict
	UpdateStatus(ctx context.Context, id uint, version uint, to Status) error
}

// Tx is the document side of a posting unit of work
type Tx interface {
	// LockDocument re-reads the document for update
	LockDocument(ctx context.Context, id uint) (*Document, error)
	// SaveDocument writes status, timestamps and line costs, compare-and-set on Version
	SaveDocument(ctx context.Context, doc *Document) error
	// CountPostedBySource counts posted receipts/shipments that reference an order
	CountPostedBySource(ctx context.Context, sourceID uint) (int64, error)
}
