package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/your-org/inventory-ledger/internal/config"
	"github.com/your-org/inventory-ledger/internal/domain/audit"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
	"github.com/your-org/inventory-ledger/internal/domain/posting"
	"github.com/your-org/inventory-ledger/internal/infrastructure/database/postgres"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
	"github.com/your-org/inventory-ledger/internal/pkg/logger"
	"gorm.io/gorm"
)

const actor = "tester@example.com"

var (
	containerOnce sync.Once
	container     *tcpostgres.PostgresContainer
	sharedDB      *gorm.DB
	containerErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if container != nil {
		_ = container.Terminate(context.Background())
	}
	os.Exit(code)
}

// startDatabase runs one postgres container for the package, migrated and seeded
func startDatabase(ctx context.Context) (*gorm.DB, error) {
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("inventory"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	container = ctr

	host, err := ctr.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{Database: config.DatabaseConfig{
		Host:         host,
		Port:         port.Port(),
		Name:         "inventory",
		User:         "test",
		Password:     "test",
		SSLMode:      "disable",
		MaxOpenConns: 20,
		MaxIdleConns: 5,
		MaxLifetime:  time.Minute,
	}}
	conn, err := postgres.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := conn.Health(); err != nil {
		return nil, err
	}

	migration := postgres.NewMigration(conn.GetDB(), logger.Discard())
	if err := migration.RunAutoMigrations(); err != nil {
		return nil, err
	}
	if err := migration.SeedMasterData(masterdata.DevelopmentSeed()); err != nil {
		return nil, err
	}
	return conn.GetDB(), nil
}

type env struct {
	db        *gorm.DB
	store     *postgres.Store
	documents *document.Service
	ledger    *ledger.Service
	posting   *posting.Service
}

func newEnv(t *testing.T, locker posting.KeyLocker, policy posting.Policy) *env {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		sharedDB, containerErr = startDatabase(context.Background())
	})
	require.NoError(t, containerErr)

	err := sharedDB.Exec("TRUNCATE audit_logs, inventory_transactions, inventory_balances, document_lines, documents RESTART IDENTITY CASCADE").Error
	require.NoError(t, err)

	if policy.MaxRetries == 0 {
		policy.MaxRetries = 3
	}
	policy.RetryInitial = time.Millisecond

	store := postgres.NewStore(sharedDB)
	lookup := masterdata.NewService(sharedDB)
	log := logger.Discard()
	documents := document.NewService(store, lookup, audit.Nop{}, log)
	ledgerService := ledger.NewService(store, lookup)

	return &env{
		db:        sharedDB,
		store:     store,
		documents: documents,
		ledger:    ledgerService,
		posting: posting.NewService(posting.Dependencies{
			UnitOfWork: store,
			Documents:  documents,
			Ledger:     ledgerService,
			Lookup:     lookup,
			Locker:     locker,
			Log:        log,
		}, policy),
	}
}

// unlocked leaves all serialization to the database
type unlocked struct{}

func (unlocked) Lock(context.Context, []ledger.BalanceKey) (func(), error) {
	return func() {}, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *env) receive(t *testing.T, qty, cost string) *document.Document {
	t.Helper()
	c := d(cost)
	doc, err := e.documents.Create(context.Background(), &document.CreateRequest{
		Kind:  document.KindGoodsReceipt,
		Lines: []document.LineRequest{{ItemID: 1, WarehouseID: 1, Qty: d(qty), UnitCost: &c}},
	}, actor)
	require.NoError(t, err)
	return doc
}

func TestCreateAssignsNumberFromID(t *testing.T) {
	e := newEnv(t, nil, posting.Policy{})

	doc := e.receive(t, "2", "3")
	assert.Equal(t, document.FormatNumber(document.KindGoodsReceipt, doc.Date, doc.ID), doc.Number)

	stored, err := e.documents.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Number, stored.Number)
	assert.Equal(t, document.StatusDraft, stored.Status)
	require.Len(t, stored.Lines, 1)
}

func TestDoublePostIsRejected(t *testing.T) {
	e := newEnv(t, nil, posting.Policy{})
	ctx := context.Background()

	gr := e.receive(t, "10", "5")
	_, err := e.posting.Post(ctx, gr.ID, actor)
	require.NoError(t, err)

	_, err = e.posting.Post(ctx, gr.ID, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err), "got %v", err)

	txns, err := e.ledger.ListTransactions(ctx, ledger.TransactionFilter{RefID: gr.ID})
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	bal, err := e.ledger.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(bal.QtyOnHand))
	assert.True(t, d("5").Equal(bal.AvgCost))
}

func TestConcurrentReceiptsSerializeInDatabase(t *testing.T) {
	e := newEnv(t, unlocked{}, posting.Policy{MaxRetries: 20})
	ctx := context.Background()

	// the balance row exists before the race starts
	first := e.receive(t, "1", "4")
	_, err := e.posting.Post(ctx, first.ID, actor)
	require.NoError(t, err)

	const workers = 10
	ids := make([]uint, workers)
	for i := range ids {
		ids[i] = e.receive(t, "1.5", "4").ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if _, err := e.posting.Post(ctx, id, actor); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("post failed: %v", err)
	}

	bal, err := e.ledger.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, d("16").Equal(bal.QtyOnHand), "qty %s", bal.QtyOnHand)
	assert.True(t, d("4").Equal(bal.AvgCost))
	assert.Equal(t, uint(workers+1), bal.Version)

	report, err := e.ledger.Reconcile(ctx, ledger.BalanceFilter{})
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "discrepancies: %+v", report.Discrepancies)
}

func TestSaveBalanceRejectsStaleVersion(t *testing.T) {
	e := newEnv(t, nil, posting.Policy{})
	ctx := context.Background()

	gr := e.receive(t, "5", "2")
	_, err := e.posting.Post(ctx, gr.ID, actor)
	require.NoError(t, err)

	err = e.store.WithinTx(ctx, func(tx posting.Tx) error {
		bal, err := tx.LockBalance(ctx, ledger.BalanceKey{ItemID: 1, WarehouseID: 1})
		if err != nil {
			return err
		}
		bal.Version--
		bal.QtyOnHand = d("999")
		return tx.SaveBalance(ctx, &bal)
	})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err), "got %v", err)

	bal, err := e.ledger.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, d("5").Equal(bal.QtyOnHand))
}

func TestShipmentCostIsWrittenBack(t *testing.T) {
	e := newEnv(t, nil, posting.Policy{})
	ctx := context.Background()

	gr := e.receive(t, "10", "5")
	_, err := e.posting.Post(ctx, gr.ID, actor)
	require.NoError(t, err)

	shipment, err := e.documents.Create(ctx, &document.CreateRequest{
		Kind:  document.KindShipment,
		Lines: []document.LineRequest{{ItemID: 1, WarehouseID: 1, Qty: d("4")}},
	}, actor)
	require.NoError(t, err)
	_, err = e.posting.Post(ctx, shipment.ID, actor)
	require.NoError(t, err)

	stored, err := e.documents.Get(ctx, shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusPosted, stored.Status)
	require.True(t, stored.Lines[0].UnitCost.Valid)
	assert.True(t, d("5").Equal(stored.Lines[0].UnitCost.Decimal))
}

func TestReverseReplaysEveryTransaction(t *testing.T) {
	e := newEnv(t, nil, posting.Policy{AllowReversal: true})
	ctx := context.Background()

	c := d("2")
	lines := make([]document.LineRequest, 3)
	for i := range lines {
		lines[i] = document.LineRequest{ItemID: 2, WarehouseID: 2, Qty: d("1"), UnitCost: &c}
	}
	gr, err := e.documents.Create(ctx, &document.CreateRequest{Kind: document.KindGoodsReceipt, Lines: lines}, actor)
	require.NoError(t, err)
	_, err = e.posting.Post(ctx, gr.ID, actor)
	require.NoError(t, err)

	err = e.store.WithinTx(ctx, func(tx posting.Tx) error {
		txns, err := tx.TransactionsByRef(ctx, string(document.KindGoodsReceipt), gr.ID)
		if err != nil {
			return err
		}
		require.Len(t, txns, 3)
		assert.Less(t, txns[0].ID, txns[1].ID)
		assert.Less(t, txns[1].ID, txns[2].ID)
		return nil
	})
	require.NoError(t, err)

	result, err := e.posting.Reverse(ctx, gr.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, document.StatusReversed, result.Document.Status)
	assert.Len(t, result.Transactions, 3)

	bal, err := e.ledger.GetBalance(ctx, 2, 2)
	require.NoError(t, err)
	assert.True(t, bal.QtyOnHand.IsZero(), "qty %s", bal.QtyOnHand)
}

func TestMasterDataLookup(t *testing.T) {
	e := newEnv(t, nil, posting.Policy{})
	ctx := context.Background()
	lookup := masterdata.NewService(e.db)

	item, err := lookup.Item(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, masterdata.CostMethodStandard, item.CostMethod)
	require.True(t, item.StandardCost.Valid)
	assert.True(t, d("12.5").Equal(item.StandardCost.Decimal))

	_, err = lookup.Item(ctx, 404)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err), "got %v", err)

	exists := []struct {
		name  string
		check func(context.Context, uint) (bool, error)
		id    uint
		want  bool
	}{
		{"warehouse", lookup.WarehouseExists, 2, true},
		{"unknown warehouse", lookup.WarehouseExists, 9, false},
		{"vendor", lookup.VendorExists, 1, true},
		{"unknown vendor", lookup.VendorExists, 9, false},
		{"customer", lookup.CustomerExists, 1, true},
		{"unknown customer", lookup.CustomerExists, 9, false},
	}
	for _, tt := range exists {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.check(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
