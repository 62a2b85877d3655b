// internal/domain/report/service_test.go
package report

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
)

type fakeSource struct {
	balances []ledger.InventoryBalance
	totals   map[document.Kind][]CounterpartTotal
	err      error
}

func (f *fakeSource) ListBalances(_ context.Context, filter ledger.BalanceFilter) ([]ledger.InventoryBalance, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ledger.InventoryBalance, 0)
	for _, bal := range f.balances {
		if filter.Matches(bal.Key()) {
			out = append(out, bal)
		}
	}
	return out, nil
}

func (f *fakeSource) CounterpartTotals(_ context.Context, kind document.Kind) ([]CounterpartTotal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]CounterpartTotal(nil), f.totals[kind]...), nil
}

func balance(item, wh uint, qty, avg string) ledger.InventoryBalance {
	return ledger.InventoryBalance{
		ItemID:      item,
		WarehouseID: wh,
		QtyOnHand:   decimal.RequireFromString(qty),
		AvgCost:     decimal.RequireFromString(avg),
	}
}

func TestInventoryValuation(t *testing.T) {
	src := &fakeSource{balances: []ledger.InventoryBalance{
		balance(1, 1, "20", "6"),
		balance(2, 1, "-3", "4"),
		balance(3, 2, "0", "12.5"),
	}}
	svc := NewService(src)

	got, err := svc.Inventory(context.Background(), ledger.BalanceFilter{})
	require.NoError(t, err)
	require.Len(t, got.Rows, 3)

	assert.True(t, got.Rows[0].Value.Equal(decimal.NewFromInt(120)))
	assert.True(t, got.Rows[1].Negative)
	assert.True(t, got.Rows[2].Value.IsZero())
	assert.Equal(t, 1, got.Negatives)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(108)), "total was %s", got.TotalValue)
	assert.False(t, got.GeneratedAt.IsZero())
}

func TestInventoryValuationFiltersByWarehouse(t *testing.T) {
	src := &fakeSource{balances: []ledger.InventoryBalance{
		balance(1, 1, "20", "6"),
		balance(1, 2, "5", "7"),
	}}
	svc := NewService(src)

	got, err := svc.Inventory(context.Background(), ledger.BalanceFilter{WarehouseID: 2})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, uint(2), got.Rows[0].WarehouseID)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(35)))
}

func TestSummariesAreSortedByCounterpart(t *testing.T) {
	src := &fakeSource{totals: map[document.Kind][]CounterpartTotal{
		document.KindPurchaseOrder: {
			{CounterpartID: 7, Documents: 1, TotalQty: decimal.NewFromInt(5)},
			{CounterpartID: 2, Documents: 3, TotalQty: decimal.NewFromInt(40)},
		},
		document.KindSalesOrder: {
			{CounterpartID: 1, Documents: 2, TotalQty: decimal.NewFromInt(9)},
		},
	}}
	svc := NewService(src)

	vendors, err := svc.VendorSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, uint(2), vendors[0].CounterpartID)
	assert.Equal(t, uint(7), vendors[1].CounterpartID)

	customers, err := svc.CustomerSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, 2, customers[0].Documents)
}

func TestReportSourceErrorsAreWrapped(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeSource{err: boom})

	_, err := svc.Inventory(context.Background(), ledger.BalanceFilter{})
	assert.ErrorIs(t, err, boom)

	_, err = svc.VendorSummary(context.Background())
	assert.ErrorIs(t, err, boom)
}
