package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		from   Status
		action Action
		want   Status
		ok     bool
	}{
		{"approve draft PO", KindPurchaseOrder, StatusDraft, ActionApprove, StatusApproved, true},
		{"post approved PO", KindPurchaseOrder, StatusApproved, ActionPost, StatusPosted, true},
		{"post draft PO", KindPurchaseOrder, StatusDraft, ActionPost, StatusDraft, false},
		{"approve approved SO", KindSalesOrder, StatusApproved, ActionApprove, StatusApproved, false},
		{"post approved SO", KindSalesOrder, StatusApproved, ActionPost, StatusPosted, true},
		{"post draft GR", KindGoodsReceipt, StatusDraft, ActionPost, StatusPosted, true},
		{"approve draft GR", KindGoodsReceipt, StatusDraft, ActionApprove, StatusDraft, false},
		{"post posted shipment", KindShipment, StatusPosted, ActionPost, StatusPosted, false},
		{"reverse posted shipment", KindShipment, StatusPosted, ActionReverse, StatusReversed, true},
		{"reverse draft GR", KindGoodsReceipt, StatusDraft, ActionReverse, StatusDraft, false},
		{"reverse reversed PO", KindPurchaseOrder, StatusReversed, ActionReverse, StatusReversed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.kind, tt.from, tt.action)
			assert.Equal(t, tt.want, got)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.IsInvalidState(err))
		})
	}
}

func TestTransitionUnknownKind(t *testing.T) {
	_, err := Transition(Kind("INVOICE"), StatusDraft, ActionPost)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestPostableStatus(t *testing.T) {
	assert.Equal(t, StatusApproved, KindPurchaseOrder.PostableStatus())
	assert.Equal(t, StatusApproved, KindSalesOrder.PostableStatus())
	assert.Equal(t, StatusDraft, KindGoodsReceipt.PostableStatus())
	assert.Equal(t, StatusDraft, KindShipment.PostableStatus())
}

func TestFormatNumber(t *testing.T) {
	date := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, KindGoodsReceipt.Prefix()+"-20240309-00042", FormatNumber(KindGoodsReceipt, date, 42))
}

func TestKeysAreDistinctAndSorted(t *testing.T) {
	doc := &Document{Lines: []Line{
		{ItemID: 2, WarehouseID: 1},
		{ItemID: 1, WarehouseID: 2},
		{ItemID: 2, WarehouseID: 1},
		{ItemID: 1, WarehouseID: 1},
	}}

	keys := doc.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, uint(1), keys[0].ItemID)
	assert.Equal(t, uint(1), keys[0].WarehouseID)
	assert.Equal(t, uint(1), keys[1].ItemID)
	assert.Equal(t, uint(2), keys[1].WarehouseID)
	assert.Equal(t, uint(2), keys[2].ItemID)
}

func TestCloneDoesNotShareLines(t *testing.T) {
	cp := uint(7)
	doc := &Document{CounterpartID: &cp, Lines: []Line{{LineNo: 1}}}

	clone := doc.Clone()
	clone.Lines[0].LineNo = 9
	*clone.CounterpartID = 8

	assert.Equal(t, 1, doc.Lines[0].LineNo)
	assert.Equal(t, uint(7), *doc.CounterpartID)
}
