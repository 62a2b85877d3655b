// internal/domain/report/service.go
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
)

// CounterpartTotal aggregates order lines for one vendor or customer
type CounterpartTotal struct {
	CounterpartID uint            `json:"counterpart_id"`
	Documents     int             `json:"documents"`
	TotalQty      decimal.Decimal `json:"total_qty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// Source provides the aggregates reports are built from
type Source interface {
	ListBalances(ctx context.Context, filter ledger.BalanceFilter) ([]ledger.InventoryBalance, error)
	// CounterpartTotals sums line qty and qty*unit_price per counterpart for non-reversed documents of kind
	CounterpartTotals(ctx context.Context, kind document.Kind) ([]CounterpartTotal, error)
}

// ValuationRow is one balance with its extended value
type ValuationRow struct {
	ItemID      uint            `json:"item_id"`
	WarehouseID uint            `json:"warehouse_id"`
	QtyOnHand   decimal.Decimal `json:"qty_on_hand"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	Value       decimal.Decimal `json:"value"`
	Negative    bool            `json:"negative,omitempty"`
}

// Valuation is the inventory snapshot report
type Valuation struct {
	Rows        []ValuationRow  `json:"rows"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Negatives   int             `json:"negatives"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Service builds read-only reports
type Service struct {
	source Source
	now    func() time.Time
}

// NewService creates a new report service
func NewService(source Source) *Service {
	return &Service{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Inventory returns every balance with qty * avg_cost and a grand total
func (s *Service) Inventory(ctx context.Context, filter ledger.BalanceFilter) (*Valuation, error) {
	balances, err := s.source.ListBalances(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}

	report := &Valuation{
		Rows:        make([]ValuationRow, 0, len(balances)),
		TotalValue:  decimal.Zero,
		GeneratedAt: s.now(),
	}
	for i := range balances {
		bal := &balances[i]
		row := ValuationRow{
			ItemID:      bal.ItemID,
			WarehouseID: bal.WarehouseID,
			QtyOnHand:   bal.QtyOnHand,
			AvgCost:     bal.AvgCost,
			Value:       bal.Value(),
			Negative:    bal.IsNegative(),
		}
		if row.Negative {
			report.Negatives++
		}
		report.TotalValue = report.TotalValue.Add(row.Value)
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

// VendorSummary totals purchase orders per vendor
func (s *Service) VendorSummary(ctx context.Context) ([]CounterpartTotal, error) {
	return s.summary(ctx, document.KindPurchaseOrder)
}

// CustomerSummary totals sales orders per customer
func (s *Service) CustomerSummary(ctx context.Context) ([]CounterpartTotal, error) {
	return s.summary(ctx, document.KindSalesOrder)
}

func (s *Service) summary(ctx context.Context, kind document.Kind) ([]CounterpartTotal, error) {
	totals, err := s.source.CounterpartTotals(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s documents: %w", kind, err)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].CounterpartID < totals[j].CounterpartID })
	return totals, nil
}
