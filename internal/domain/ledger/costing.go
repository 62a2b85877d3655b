// internal/domain/ledger/costing.go
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

// CostingEngine values inbound and outbound movements per the item's cost method.
// It is pure: balances are passed in and returned, never stored.
type CostingEngine struct{}

// NewCostingEngine creates a new costing engine
func NewCostingEngine() *CostingEngine {
	return &CostingEngine{}
}

// ApplyInbound adds qty to the balance and returns the cost recorded on the transaction
func (e *CostingEngine) ApplyInbound(bal InventoryBalance, item *masterdata.Item, qty, unitCost decimal.Decimal) (InventoryBalance, decimal.Decimal, error) {
	if !qty.IsPositive() {
		return bal, decimal.Zero, apperror.Validation("inbound qty must be positive, got %s", qty)
	}

	qty = qty.Round(Scale)
	newQty := bal.QtyOnHand.Add(qty)

	switch item.EffectiveCostMethod() {
	case masterdata.CostMethodStandard:
		std, err := standardCost(item)
		if err != nil {
			return bal, decimal.Zero, err
		}
		bal.QtyOnHand = newQty
		bal.AvgCost = std
		return bal, std, nil

	case masterdata.CostMethodMovingAverage:
		if unitCost.IsNegative() {
			return bal, decimal.Zero, apperror.Validation("unit cost cannot be negative, got %s", unitCost)
		}
		unitCost = unitCost.Round(Scale)
		if !newQty.IsZero() {
			oldValue := bal.QtyOnHand.Mul(bal.AvgCost)
			inValue := qty.Mul(unitCost)
			bal.AvgCost = oldValue.Add(inValue).Div(newQty).RoundBank(Scale)
		}
		bal.QtyOnHand = newQty
		return bal, unitCost, nil
	}

	return bal, decimal.Zero, unknownMethod(item)
}

// ApplyOutbound subtracts qty regardless of sufficiency and returns the unit cost used
func (e *CostingEngine) ApplyOutbound(bal InventoryBalance, item *masterdata.Item, qty decimal.Decimal) (InventoryBalance, decimal.Decimal, error) {
	if !qty.IsPositive() {
		return bal, decimal.Zero, apperror.Validation("outbound qty must be positive, got %s", qty)
	}

	bal.QtyOnHand = bal.QtyOnHand.Sub(qty.Round(Scale))

	switch item.EffectiveCostMethod() {
	case masterdata.CostMethodStandard:
		std, err := standardCost(item)
		if err != nil {
			return bal, decimal.Zero, err
		}
		bal.AvgCost = std
		return bal, std, nil

	case masterdata.CostMethodMovingAverage:
		return bal, bal.AvgCost, nil
	}

	return bal, decimal.Zero, unknownMethod(item)
}

// RemoveInbound takes back a receipt of qty that was recorded at unitCost
func (e *CostingEngine) RemoveInbound(bal InventoryBalance, item *masterdata.Item, qty, unitCost decimal.Decimal) (InventoryBalance, error) {
	if !qty.IsPositive() {
		return bal, apperror.Validation("removed qty must be positive, got %s", qty)
	}

	qty = qty.Round(Scale)
	newQty := bal.QtyOnHand.Sub(qty)

	switch item.EffectiveCostMethod() {
	case masterdata.CostMethodStandard:
		std, err := standardCost(item)
		if err != nil {
			return bal, err
		}
		bal.QtyOnHand = newQty
		bal.AvgCost = std
		return bal, nil

	case masterdata.CostMethodMovingAverage:
		if newQty.IsPositive() {
			remaining := bal.QtyOnHand.Mul(bal.AvgCost).Sub(qty.Mul(unitCost))
			avg := remaining.Div(newQty).RoundBank(Scale)
			if !avg.IsNegative() {
				bal.AvgCost = avg
			}
		}
		bal.QtyOnHand = newQty
		return bal, nil
	}

	return bal, unknownMethod(item)
}

func standardCost(item *masterdata.Item) (decimal.Decimal, error) {
	if !item.StandardCost.Valid {
		return decimal.Zero, apperror.Validation("item %s uses standard costing but has no standard cost", item.SKU).
			WithDetail("item_id", fmt.Sprint(item.ID))
	}
	if item.StandardCost.Decimal.IsNegative() {
		return decimal.Zero, apperror.Validation("item %s has a negative standard cost", item.SKU).
			WithDetail("item_id", fmt.Sprint(item.ID))
	}
	return item.StandardCost.Decimal.Round(Scale), nil
}

func unknownMethod(item *masterdata.Item) error {
	return apperror.Validation("item %s has unknown cost method %q", item.SKU, item.CostMethod).
		WithDetail("item_id", fmt.Sprint(item.ID))
}
