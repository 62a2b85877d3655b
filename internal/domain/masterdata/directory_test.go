package masterdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

func TestDirectoryItem(t *testing.T) {
	dir := NewDirectory().Load(DevelopmentSeed())
	ctx := context.Background()

	item, err := dir.Item(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "FG-BRACKET", item.SKU)
	assert.Equal(t, CostMethodStandard, item.CostMethod)
	assert.True(t, item.StandardCost.Valid)

	_, err = dir.Item(ctx, 99)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err), "got %v", err)
}

func TestDirectoryItemIsACopy(t *testing.T) {
	dir := NewDirectory().Load(DevelopmentSeed())

	item, err := dir.Item(context.Background(), 1)
	require.NoError(t, err)
	item.Name = "changed"

	again, err := dir.Item(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Steel sheet 1mm", again.Name)
}

func TestDirectoryExists(t *testing.T) {
	dir := NewDirectory().Load(DevelopmentSeed()).AddWarehouse(7).AddCustomer(5)
	ctx := context.Background()

	tests := []struct {
		name  string
		check func(context.Context, uint) (bool, error)
		id    uint
		want  bool
	}{
		{"seeded warehouse", dir.WarehouseExists, 1, true},
		{"added warehouse", dir.WarehouseExists, 7, true},
		{"unknown warehouse", dir.WarehouseExists, 3, false},
		{"seeded vendor", dir.VendorExists, 1, true},
		{"unknown vendor", dir.VendorExists, 2, false},
		{"seeded customer", dir.CustomerExists, 1, true},
		{"added customer", dir.CustomerExists, 5, true},
		{"unknown customer", dir.CustomerExists, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.check(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEmptyDirectoryKnowsNothing(t *testing.T) {
	dir := NewDirectory()
	ctx := context.Background()

	_, err := dir.Item(ctx, 1)
	assert.True(t, apperror.IsNotFound(err))

	ok, err := dir.WarehouseExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
