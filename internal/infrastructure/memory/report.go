// internal/infrastructure/memory/report.go
package memory

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/report"
)

// CounterpartTotals implements report.Source
func (s *Store) CounterpartTotals(_ context.Context, kind document.Kind) ([]report.CounterpartTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCounterpart := make(map[uint]*report.CounterpartTotal)
	for _, doc := range s.docs {
		if doc.Kind != kind || doc.Status == document.StatusReversed || doc.CounterpartID == nil {
			continue
		}
		total, ok := byCounterpart[*doc.CounterpartID]
		if !ok {
			total = &report.CounterpartTotal{
				CounterpartID: *doc.CounterpartID,
				TotalQty:      decimal.Zero,
				TotalAmount:   decimal.Zero,
			}
			byCounterpart[*doc.CounterpartID] = total
		}
		total.Documents++
		for _, line := range doc.Lines {
			total.TotalQty = total.TotalQty.Add(line.Qty)
			if line.UnitPrice.Valid {
				total.TotalAmount = total.TotalAmount.Add(line.Qty.Mul(line.UnitPrice.Decimal))
			}
		}
	}

	out := make([]report.CounterpartTotal, 0, len(byCounterpart))
	for _, total := range byCounterpart {
		out = append(out, *total)
	}
	return out, nil
}
