package posting_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/inventory-ledger/internal/domain/audit"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
	"github.com/your-org/inventory-ledger/internal/domain/posting"
	"github.com/your-org/inventory-ledger/internal/infrastructure/memory"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
	"github.com/your-org/inventory-ledger/internal/pkg/logger"
)

const (
	itemSteel   uint = 1
	itemBolt    uint = 2
	itemBracket uint = 3
	mainWH      uint = 1
	eastWH      uint = 2
	actor            = "tester@example.com"
)

type fixture struct {
	store     *memory.Store
	documents *document.Service
	ledger    *ledger.Service
	posting   *posting.Service
	audit     *audit.MemorySink
}

func newFixture(t *testing.T, policy posting.Policy) *fixture {
	t.Helper()

	store := memory.NewStore()
	dir := masterdata.NewDirectory().Load(masterdata.DevelopmentSeed())
	sink := audit.NewMemorySink()
	log := logger.Discard()

	if policy.MaxRetries == 0 {
		policy.MaxRetries = 3
	}
	if policy.RetryInitial == 0 {
		policy.RetryInitial = time.Millisecond
	}

	documents := document.NewService(store, dir, sink, log)
	ledgerService := ledger.NewService(store, dir)
	return &fixture{
		store:     store,
		documents: documents,
		ledger:    ledgerService,
		posting: posting.NewService(posting.Dependencies{
			UnitOfWork: store,
			Documents:  documents,
			Ledger:     ledgerService,
			Lookup:     dir,
			Locker:     posting.NewLocalLocker(2 * time.Second),
			Audit:      sink,
			Log:        log,
		}, policy),
		audit: sink,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func uptr(v uint) *uint {
	return &v
}

func receiptLine(item, wh uint, qty, cost string) document.LineRequest {
	return document.LineRequest{ItemID: item, WarehouseID: wh, Qty: d(qty), UnitCost: ptr(cost)}
}

func orderLine(item, wh uint, qty, price string) document.LineRequest {
	return document.LineRequest{ItemID: item, WarehouseID: wh, Qty: d(qty), UnitPrice: ptr(price)}
}

func (f *fixture) create(t *testing.T, req *document.CreateRequest) *document.Document {
	t.Helper()
	doc, err := f.documents.Create(context.Background(), req, actor)
	require.NoError(t, err)
	return doc
}

func (f *fixture) receive(t *testing.T, lines ...document.LineRequest) *document.Document {
	t.Helper()
	return f.create(t, &document.CreateRequest{Kind: document.KindGoodsReceipt, Lines: lines})
}

func (f *fixture) post(t *testing.T, id uint) *posting.Result {
	t.Helper()
	result, err := f.posting.Post(context.Background(), id, actor)
	require.NoError(t, err)
	return result
}

func (f *fixture) balance(t *testing.T, item, wh uint) *ledger.InventoryBalance {
	t.Helper()
	bal, err := f.ledger.GetBalance(context.Background(), item, wh)
	require.NoError(t, err)
	return bal
}

func (f *fixture) transactions(t *testing.T, filter ledger.TransactionFilter) []ledger.InventoryTransaction {
	t.Helper()
	txns, err := f.ledger.ListTransactions(context.Background(), filter)
	require.NoError(t, err)
	return txns
}

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	report, err := f.ledger.Reconcile(context.Background(), ledger.BalanceFilter{})
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "discrepancies: %+v", report.Discrepancies)
}

func TestPostGoodsReceiptsAveragesCost(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	first := f.receive(t, receiptLine(itemSteel, mainWH, "10", "5"))
	second := f.receive(t, receiptLine(itemSteel, mainWH, "10", "7"))

	result := f.post(t, first.ID)
	assert.Equal(t, document.StatusPosted, result.Document.Status)
	assert.NotNil(t, result.Document.PostedAt)
	f.post(t, second.ID)

	bal := f.balance(t, itemSteel, mainWH)
	assert.True(t, d("20").Equal(bal.QtyOnHand), "qty %s", bal.QtyOnHand)
	assert.True(t, d("6").Equal(bal.AvgCost), "avg %s", bal.AvgCost)
	f.assertConsistent(t)
}

func TestPostShipmentIssuesAtAverageCost(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	gr := f.receive(t, receiptLine(itemSteel, mainWH, "10", "5"))
	f.post(t, gr.ID)

	shipment := f.create(t, &document.CreateRequest{
		Kind:  document.KindShipment,
		Lines: []document.LineRequest{{ItemID: itemSteel, WarehouseID: mainWH, Qty: d("4")}},
	})
	result := f.post(t, shipment.ID)

	require.Len(t, result.Transactions, 1)
	txn := result.Transactions[0]
	assert.Equal(t, ledger.TxnTypeIssue, txn.TxnType)
	assert.True(t, d("-4").Equal(txn.Qty))
	assert.True(t, d("5").Equal(txn.UnitCost))
	assert.Empty(t, result.Warnings)

	// the cost used is written back on the line
	stored, err := f.documents.Get(context.Background(), shipment.ID)
	require.NoError(t, err)
	require.True(t, stored.Lines[0].UnitCost.Valid)
	assert.True(t, d("5").Equal(stored.Lines[0].UnitCost.Decimal))

	bal := f.balance(t, itemSteel, mainWH)
	assert.True(t, d("6").Equal(bal.QtyOnHand))
	assert.True(t, d("5").Equal(bal.AvgCost))
	f.assertConsistent(t)
}

func TestPostWritesOneTransactionPerLine(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	gr := f.receive(t,
		receiptLine(itemSteel, mainWH, "3", "2"),
		receiptLine(itemBolt, eastWH, "100", "0.25"),
		receiptLine(itemSteel, mainWH, "1", "6"),
	)
	result := f.post(t, gr.ID)
	require.Len(t, result.Transactions, 3)

	txns := f.transactions(t, ledger.TransactionFilter{RefType: string(document.KindGoodsReceipt), RefID: gr.ID})
	require.Len(t, txns, 3)
	for _, txn := range txns {
		assert.Equal(t, ledger.TxnTypeReceipt, txn.TxnType)
		require.NotNil(t, txn.RefID)
		assert.Equal(t, gr.ID, *txn.RefID)
		assert.Equal(t, actor, txn.CreatedBy)
	}

	// two lines on one key accumulate: (3*2 + 1*6) / 4 = 3
	steel := f.balance(t, itemSteel, mainWH)
	assert.True(t, d("4").Equal(steel.QtyOnHand))
	assert.True(t, d("3").Equal(steel.AvgCost))
	f.assertConsistent(t)
}

func TestPostTwiceIsRejectedWithoutLedgerEffect(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	gr := f.receive(t, receiptLine(itemSteel, mainWH, "10", "5"))
	f.post(t, gr.ID)

	_, err := f.posting.Post(context.Background(), gr.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err), "got %v", err)

	txns := f.transactions(t, ledger.TransactionFilter{RefID: gr.ID})
	assert.Len(t, txns, 1)
	assert.True(t, d("10").Equal(f.balance(t, itemSteel, mainWH).QtyOnHand))
}

func TestPostDraftOrderRequiresApproval(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	po := f.create(t, &document.CreateRequest{
		Kind:          document.KindPurchaseOrder,
		CounterpartID: uptr(1),
		Lines:         []document.LineRequest{orderLine(itemSteel, mainWH, "5", "4")},
	})

	_, err := f.posting.Post(context.Background(), po.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))

	_, err = f.documents.Approve(context.Background(), po.ID, actor)
	require.NoError(t, err)

	result := f.post(t, po.ID)
	require.Len(t, result.Transactions, 1)
	// purchase orders receive at the order price
	assert.True(t, d("4").Equal(result.Transactions[0].UnitCost))
}

func TestPostUnknownDocument(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	_, err := f.posting.Post(context.Background(), 999, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFailedLineRollsBackWholeDocument(t *testing.T) {
	// the bracket uses standard costing; drop its cost after the draft is created
	dir := masterdata.NewDirectory().Load(masterdata.DevelopmentSeed())
	noCost := masterdata.DevelopmentSeed().Items[2]
	noCost.StandardCost = decimal.NullDecimal{}
	dir.AddItem(noCost)

	store := memory.NewStore()
	log := logger.Discard()
	documents := document.NewService(store, dir, audit.Nop{}, log)
	ledgerService := ledger.NewService(store, dir)
	svc := posting.NewService(posting.Dependencies{
		UnitOfWork: store,
		Documents:  documents,
		Ledger:     ledgerService,
		Lookup:     dir,
		Log:        log,
	}, posting.Policy{MaxRetries: 1, RetryInitial: time.Millisecond})

	gr, err := documents.Create(context.Background(), &document.CreateRequest{
		Kind: document.KindGoodsReceipt,
		Lines: []document.LineRequest{
			receiptLine(itemSteel, mainWH, "10", "5"),
			receiptLine(itemBracket, mainWH, "2", "11"),
		},
	}, actor)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), gr.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err), "got %v", err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "2", appErr.Details["line"])

	stored, err := documents.Get(context.Background(), gr.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusDraft, stored.Status)

	txns, err := ledgerService.ListTransactions(context.Background(), ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)

	bal, err := ledgerService.GetBalance(context.Background(), itemSteel, mainWH)
	require.NoError(t, err)
	assert.True(t, bal.QtyOnHand.IsZero())
}

func TestStandardCostItemIgnoresReceiptCost(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	gr := f.receive(t, receiptLine(itemBracket, mainWH, "4", "99"))
	result := f.post(t, gr.ID)

	assert.True(t, d("12.5").Equal(result.Transactions[0].UnitCost))
	bal := f.balance(t, itemBracket, mainWH)
	assert.True(t, d("12.5").Equal(bal.AvgCost))
}

func TestOversellWarnsByDefault(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	so := f.create(t, &document.CreateRequest{
		Kind:          document.KindSalesOrder,
		CounterpartID: uptr(1),
		Lines:         []document.LineRequest{orderLine(itemBolt, mainWH, "5", "1.5")},
	})
	_, err := f.documents.Approve(context.Background(), so.ID, actor)
	require.NoError(t, err)

	result := f.post(t, so.ID)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, apperror.CodeIntegrity, result.Warnings[0].Code)
	assert.Equal(t, 1, result.Warnings[0].LineNo)
	assert.True(t, d("-5").Equal(result.Warnings[0].QtyOnHand))

	assert.True(t, d("-5").Equal(f.balance(t, itemBolt, mainWH).QtyOnHand))
	f.assertConsistent(t)
}

func TestOversellRejectPolicy(t *testing.T) {
	f := newFixture(t, posting.Policy{RejectOversell: true})

	gr := f.receive(t, receiptLine(itemBolt, mainWH, "2", "1"))
	f.post(t, gr.ID)

	shipment := f.create(t, &document.CreateRequest{
		Kind:  document.KindShipment,
		Lines: []document.LineRequest{{ItemID: itemBolt, WarehouseID: mainWH, Qty: d("3")}},
	})

	_, err := f.posting.Post(context.Background(), shipment.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsIntegrity(err), "got %v", err)

	stored, err := f.documents.Get(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusDraft, stored.Status)
	assert.True(t, d("2").Equal(f.balance(t, itemBolt, mainWH).QtyOnHand))
}

func TestConcurrentReceiptsConserveQuantityAndCost(t *testing.T) {
	f := newFixture(t, posting.Policy{MaxRetries: 10})
	rng := rand.New(rand.NewSource(7))

	const workers = 20
	var (
		ids       = make([]uint, workers)
		totalQty  = decimal.Zero
		totalCost = decimal.Zero
	)
	for i := range ids {
		qty := decimal.New(int64(rng.Intn(50)+1), -1)   // 0.1 .. 5.0
		cost := decimal.New(int64(rng.Intn(2000)+1), -2) // 0.01 .. 20.00
		totalQty = totalQty.Add(qty)
		totalCost = totalCost.Add(qty.Mul(cost))
		ids[i] = f.receive(t, receiptLine(itemSteel, mainWH, qty.String(), cost.String())).ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if _, err := f.posting.Post(context.Background(), id, actor); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("post failed: %v", err)
	}

	bal := f.balance(t, itemSteel, mainWH)
	assert.True(t, totalQty.Equal(bal.QtyOnHand), "qty %s, want %s", bal.QtyOnHand, totalQty)

	// each step rounds the average to four places, so allow a small drift
	mean := totalCost.Div(totalQty)
	drift := bal.AvgCost.Sub(mean).Abs()
	assert.True(t, drift.LessThan(d("0.005")), "avg %s, weighted mean %s", bal.AvgCost, mean)

	assert.Len(t, f.transactions(t, ledger.TransactionFilter{Limit: ledger.MaxLimit}), workers)
	f.assertConsistent(t)
}

func TestConcurrentPostOfSameDocumentAppliesOnce(t *testing.T) {
	f := newFixture(t, posting.Policy{MaxRetries: 10})
	gr := f.receive(t, receiptLine(itemSteel, mainWH, "10", "5"))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.posting.Post(context.Background(), gr.ID, actor)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			assert.True(t, apperror.IsInvalidState(err), "got %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.True(t, d("10").Equal(f.balance(t, itemSteel, mainWH).QtyOnHand))
	f.assertConsistent(t)
}

func TestReceiptAgainstOrderBlocksOrderPosting(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	po := f.create(t, &document.CreateRequest{
		Kind:          document.KindPurchaseOrder,
		CounterpartID: uptr(1),
		Lines:         []document.LineRequest{orderLine(itemSteel, mainWH, "10", "5")},
	})
	_, err := f.documents.Approve(context.Background(), po.ID, actor)
	require.NoError(t, err)

	gr := f.create(t, &document.CreateRequest{
		Kind:     document.KindGoodsReceipt,
		SourceID: uptr(po.ID),
		Lines:    []document.LineRequest{receiptLine(itemSteel, mainWH, "10", "5")},
	})
	require.NotNil(t, gr.CounterpartID)
	assert.Equal(t, uint(1), *gr.CounterpartID)
	f.post(t, gr.ID)

	_, err = f.posting.Post(context.Background(), po.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err), "got %v", err)
	assert.True(t, d("10").Equal(f.balance(t, itemSteel, mainWH).QtyOnHand))
}

func TestReceiptAgainstPostedOrderIsRejected(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	po := f.create(t, &document.CreateRequest{
		Kind:          document.KindPurchaseOrder,
		CounterpartID: uptr(1),
		Lines:         []document.LineRequest{orderLine(itemSteel, mainWH, "10", "5")},
	})
	_, err := f.documents.Approve(context.Background(), po.ID, actor)
	require.NoError(t, err)

	gr := f.create(t, &document.CreateRequest{
		Kind:     document.KindGoodsReceipt,
		SourceID: uptr(po.ID),
		Lines:    []document.LineRequest{receiptLine(itemSteel, mainWH, "10", "5")},
	})
	f.post(t, po.ID)

	_, err = f.posting.Post(context.Background(), gr.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err), "got %v", err)
	assert.True(t, d("10").Equal(f.balance(t, itemSteel, mainWH).QtyOnHand))
}

func TestReverseDisabledByDefault(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	gr := f.receive(t, receiptLine(itemSteel, mainWH, "10", "5"))
	f.post(t, gr.ID)

	_, err := f.posting.Reverse(context.Background(), gr.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	assert.True(t, d("10").Equal(f.balance(t, itemSteel, mainWH).QtyOnHand))
}

func TestReverseCompensatesPostedDocuments(t *testing.T) {
	f := newFixture(t, posting.Policy{AllowReversal: true})

	gr := f.receive(t, receiptLine(itemSteel, mainWH, "10", "5"))
	f.post(t, gr.ID)
	shipment := f.create(t, &document.CreateRequest{
		Kind:  document.KindShipment,
		Lines: []document.LineRequest{{ItemID: itemSteel, WarehouseID: mainWH, Qty: d("4")}},
	})
	f.post(t, shipment.ID)

	result, err := f.posting.Reverse(context.Background(), shipment.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, document.StatusReversed, result.Document.Status)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, ledger.TxnTypeAdjust, result.Transactions[0].TxnType)
	assert.True(t, d("4").Equal(result.Transactions[0].Qty))
	assert.Equal(t, document.KindShipment.ReversalRefType(), *result.Transactions[0].RefType)

	bal := f.balance(t, itemSteel, mainWH)
	assert.True(t, d("10").Equal(bal.QtyOnHand))
	assert.True(t, d("5").Equal(bal.AvgCost))

	_, err = f.posting.Reverse(context.Background(), shipment.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))

	// the original ledger rows stay
	assert.Len(t, f.transactions(t, ledger.TransactionFilter{RefType: string(document.KindShipment), RefID: shipment.ID}), 1)
	f.assertConsistent(t)
}

func TestReverseUndoesEveryLineOfLargeDocument(t *testing.T) {
	f := newFixture(t, posting.Policy{AllowReversal: true})

	const lines = ledger.MaxLimit + 1
	reqs := make([]document.LineRequest, lines)
	for i := range reqs {
		reqs[i] = receiptLine(itemSteel, mainWH, "1", "5")
	}
	gr := f.receive(t, reqs...)

	posted := f.post(t, gr.ID)
	require.Len(t, posted.Transactions, lines)

	result, err := f.posting.Reverse(context.Background(), gr.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, document.StatusReversed, result.Document.Status)
	assert.Len(t, result.Transactions, lines)

	bal := f.balance(t, itemSteel, mainWH)
	assert.True(t, bal.QtyOnHand.IsZero(), "qty %s", bal.QtyOnHand)
	f.assertConsistent(t)
}

func TestReverseDraftIsRejected(t *testing.T) {
	f := newFixture(t, posting.Policy{AllowReversal: true})
	gr := f.receive(t, receiptLine(itemSteel, mainWH, "10", "5"))

	_, err := f.posting.Reverse(context.Background(), gr.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestAdjustInboundAndOutbound(t *testing.T) {
	f := newFixture(t, posting.Policy{})
	gr := f.receive(t, receiptLine(itemSteel, mainWH, "10", "5"))
	f.post(t, gr.ID)

	in, err := f.posting.Adjust(context.Background(), &posting.AdjustRequest{
		ItemID: itemSteel, WarehouseID: mainWH, Qty: d("10"), UnitCost: ptr("7"), Reason: "count",
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxnTypeAdjust, in.Transaction.TxnType)
	assert.True(t, d("20").Equal(in.Balance.QtyOnHand))
	assert.True(t, d("6").Equal(in.Balance.AvgCost))

	out, err := f.posting.Adjust(context.Background(), &posting.AdjustRequest{
		ItemID: itemSteel, WarehouseID: mainWH, Qty: d("-5"), Reason: "damaged",
	}, actor)
	require.NoError(t, err)
	assert.True(t, d("-5").Equal(out.Transaction.Qty))
	assert.True(t, d("6").Equal(out.Transaction.UnitCost))
	assert.True(t, d("15").Equal(out.Balance.QtyOnHand))
	assert.Empty(t, out.Warnings)
	f.assertConsistent(t)
}

func TestAdjustRejectsBadInput(t *testing.T) {
	f := newFixture(t, posting.Policy{})

	cases := []posting.AdjustRequest{
		{ItemID: itemSteel, WarehouseID: mainWH, Qty: decimal.Zero},
		{ItemID: 99, WarehouseID: mainWH, Qty: d("1")},
		{ItemID: itemSteel, WarehouseID: 99, Qty: d("1")},
		{ItemID: itemSteel, WarehouseID: mainWH, Qty: d("1"), UnitCost: ptr("-1")},
	}
	for _, req := range cases {
		req := req
		_, err := f.posting.Adjust(context.Background(), &req, actor)
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err), "got %v", err)
	}

	assert.Empty(t, f.transactions(t, ledger.TransactionFilter{}))
}

func TestPostingIsAudited(t *testing.T) {
	f := newFixture(t, posting.Policy{})
	gr := f.receive(t, receiptLine(itemSteel, mainWH, "1", "1"))
	f.post(t, gr.ID)

	var actions []string
	for _, entry := range f.audit.Entries() {
		assert.Equal(t, audit.ModulePurchasing, entry.Module)
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{"create", posting.OperationPost}, actions)
}
