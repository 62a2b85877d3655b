// internal/domain/audit/entity.go
package audit

import (
	"context"
	"time"
)

// Modules that emit audit entries
const (
	ModulePurchasing = "purchasing"
	ModuleSales      = "sales"
	ModuleInventory  = "inventory"
)

// Entry is one audit record: who did what to which reference
type Entry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Actor     string    `gorm:"size:100;index" json:"actor"`
	Module    string    `gorm:"size:30;not null;index" json:"module"`
	Action    string    `gorm:"size:30;not null" json:"action"`
	RefID     *uint     `gorm:"index" json:"ref_id"`
	Details   string    `gorm:"type:text" json:"details"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

// TableName pins the audit table name
func (Entry) TableName() string {
	return "audit_logs"
}

// Recorder accepts audit entries fire-and-forget. Record never fails the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Sink durably writes entries
type Sink interface {
	Write(ctx context.Context, entry Entry) error
	Close() error
}

// Nop discards everything
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
