// internal/domain/masterdata/directory.go
package masterdata

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

// Directory is an in-memory Lookup used by the memory store driver and tests
type Directory struct {
	mu         sync.RWMutex
	items      map[uint]Item
	warehouses map[uint]bool
	vendors    map[uint]bool
	customers  map[uint]bool
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{
		items:      make(map[uint]Item),
		warehouses: make(map[uint]bool),
		vendors:    make(map[uint]bool),
		customers:  make(map[uint]bool),
	}
}

// AddItem registers an item
func (d *Directory) AddItem(item Item) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[item.ID] = item
	return d
}

// AddWarehouse registers warehouse ids
func (d *Directory) AddWarehouse(ids ...uint) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.warehouses[id] = true
	}
	return d
}

// AddVendor registers vendor ids
func (d *Directory) AddVendor(ids ...uint) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.vendors[id] = true
	}
	return d
}

// AddCustomer registers customer ids
func (d *Directory) AddCustomer(ids ...uint) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.customers[id] = true
	}
	return d
}

func (d *Directory) Item(_ context.Context, id uint) (*Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	item, ok := d.items[id]
	if !ok {
		return nil, apperror.NotFound("item", id)
	}
	return &item, nil
}

func (d *Directory) WarehouseExists(_ context.Context, id uint) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.warehouses[id], nil
}

func (d *Directory) VendorExists(_ context.Context, id uint) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vendors[id], nil
}

func (d *Directory) CustomerExists(_ context.Context, id uint) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.customers[id], nil
}

// SeedData is the development data set shared by the memory driver and the database seeder
type SeedData struct {
	Items      []Item
	Warehouses []Warehouse
	Vendors    []Vendor
	Customers  []Customer
}

// DevelopmentSeed returns a small catalogue for local runs
func DevelopmentSeed() SeedData {
	return SeedData{
		Items: []Item{
			{ID: 1, SKU: "RM-STEEL-01", Name: "Steel sheet 1mm", UOM: "KG", CostMethod: CostMethodMovingAverage, IsActive: true},
			{ID: 2, SKU: "RM-BOLT-M8", Name: "Bolt M8", UOM: "EA", CostMethod: CostMethodMovingAverage, IsActive: true},
			{ID: 3, SKU: "FG-BRACKET", Name: "Mounting bracket", UOM: "EA", CostMethod: CostMethodStandard,
				StandardCost: decimal.NewNullDecimal(decimal.RequireFromString("12.5000")), IsActive: true},
		},
		Warehouses: []Warehouse{
			{ID: 1, Code: "MAIN", Name: "Main warehouse", IsActive: true},
			{ID: 2, Code: "EAST", Name: "East depot", IsActive: true},
		},
		Vendors: []Vendor{
			{ID: 1, Code: "V-ACME", Name: "Acme Metals"},
		},
		Customers: []Customer{
			{ID: 1, Code: "C-NORTH", Name: "Northwind Traders"},
		},
	}
}

// Load copies a seed into the directory
func (d *Directory) Load(seed SeedData) *Directory {
	for _, item := range seed.Items {
		d.AddItem(item)
	}
	for _, w := range seed.Warehouses {
		d.AddWarehouse(w.ID)
	}
	for _, v := range seed.Vendors {
		d.AddVendor(v.ID)
	}
	for _, c := range seed.Customers {
		d.AddCustomer(c.ID)
	}
	return d
}
