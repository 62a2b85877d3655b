// internal/domain/masterdata/entity.go
package masterdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CostMethod selects how an item's inventory is valued
type CostMethod string

const (
	CostMethodMovingAverage CostMethod = "moving_avg"
	CostMethodStandard      CostMethod = "standard"
)

// IsValid checks if the cost method is valid
func (m CostMethod) IsValid() bool {
	switch m {
	case CostMethodMovingAverage, CostMethodStandard:
		return true
	}
	return false
}

// Item is a stock-keeping unit. Master data is owned elsewhere; this service only reads it.
type Item struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	SKU          string              `gorm:"uniqueIndex;not null;size:64" json:"sku"`
	Name         string              `gorm:"not null;size:200" json:"name"`
	UOM          string              `gorm:"size:20;default:'EA'" json:"uom"`
	CostMethod   CostMethod          `gorm:"size:20;not null;default:'moving_avg'" json:"cost_method"`
	StandardCost decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"standard_cost"`
	IsActive     bool                `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// EffectiveCostMethod treats an unset method as moving average
func (i *Item) EffectiveCostMethod() CostMethod {
	if i.CostMethod == "" {
		return CostMethodMovingAverage
	}
	return i.CostMethod
}

// Warehouse represents a storage location
type Warehouse struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name      string    `gorm:"not null;size:100" json:"name"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vendor supplies purchase orders and goods receipts
type Vendor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name      string    `gorm:"not null;size:200" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer receives sales orders and shipments
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name      string    `gorm:"not null;size:200" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lookup is the read-only master-data collaborator.
// Item returns an apperror not-found error when the id does not resolve.
type Lookup interface {
	Item(ctx context.Context, id uint) (*Item, error)
	WarehouseExists(ctx context.Context, id uint) (bool, error)
	VendorExists(ctx context.Context, id uint) (bool, error)
	CustomerExists(ctx context.Context, id uint) (bool, error)
}
