// internal/domain/masterdata/service.go
package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
	"gorm.io/gorm"
)

// Service resolves master data from the shared database
type Service struct {
	db *gorm.DB
}

// NewService creates a new master-data service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Item loads an active item by id
func (s *Service) Item(ctx context.Context, id uint) (*Item, error) {
	var item Item
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %d: %w", id, err)
	}
	return &item, nil
}

// WarehouseExists checks for an active warehouse
func (s *Service) WarehouseExists(ctx context.Context, id uint) (bool, error) {
	return s.exists(ctx, &Warehouse{}, "id = ? AND is_active = ?", id, true)
}

// VendorExists checks for a vendor
func (s *Service) VendorExists(ctx context.Context, id uint) (bool, error) {
	return s.exists(ctx, &Vendor{}, "id = ?", id)
}

// CustomerExists checks for a customer
func (s *Service) CustomerExists(ctx context.Context, id uint) (bool, error) {
	return s.exists(ctx, &Customer{}, "id = ?", id)
}

func (s *Service) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up %T: %w", model, err)
	}
	return count > 0, nil
}
