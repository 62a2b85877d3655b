// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/domain/audit"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migration handles database migrations
type Migration struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log logrus.FieldLogger) *Migration {
	return &Migration{
		db:  db,
		log: log,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("🔄 Running database auto-migrations...")

	// dependency order
	models := []interface{}{
		// Master data
		&masterdata.Item{},
		&masterdata.Warehouse{},
		&masterdata.Vendor{},
		&masterdata.Customer{},

		// Documents
		&document.Document{},
		&document.Line{},

		// Ledger
		&ledger.InventoryTransaction{},
		&ledger.InventoryBalance{},

		// Audit
		&audit.Entry{},
	}

	for _, model := range models {
		m.log.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.log.Info("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates the indexes gorm tags cannot express
func (m *Migration) CreateIndexes() error {
	m.log.Info("🔄 Creating additional database indexes...")

	indexes := []string{
		// Ledger listing order and per-key scans
		"CREATE INDEX IF NOT EXISTS idx_inv_txn_timestamp_id ON inventory_transactions(timestamp DESC, id DESC)",
		"CREATE INDEX IF NOT EXISTS idx_inv_txn_key_timestamp ON inventory_transactions(item_id, warehouse_id, timestamp DESC)",

		// Document listing and source guard
		"CREATE INDEX IF NOT EXISTS idx_documents_date_id ON documents(date DESC, id DESC)",
		"CREATE INDEX IF NOT EXISTS idx_documents_source_status ON documents(source_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_documents_kind_counterpart ON documents(kind, counterpart_id)",

		// Audit trail lookups
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_module_ref ON audit_logs(module, ref_id)",

		// Ledger rows are append-only
		`CREATE OR REPLACE FUNCTION inventory_transactions_immutable() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'inventory_transactions rows are immutable';
		END;
		$$ LANGUAGE plpgsql`,
		"DROP TRIGGER IF EXISTS trg_inventory_transactions_immutable ON inventory_transactions",
		`CREATE TRIGGER trg_inventory_transactions_immutable
			BEFORE UPDATE OR DELETE ON inventory_transactions
			FOR EACH ROW EXECUTE FUNCTION inventory_transactions_immutable()`,
	}

	successCount := 0
	failCount := 0
	for _, stmt := range indexes {
		if err := m.db.Exec(stmt).Error; err != nil {
			m.log.WithError(err).Warn("⚠️ Failed to create index")
			failCount++
		} else {
			successCount++
		}
	}

	m.log.Infof("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	if failCount > 0 {
		return fmt.Errorf("%d index statements failed", failCount)
	}
	return nil
}

// SeedMasterData inserts the seed catalogue, skipping rows that already exist
func (m *Migration) SeedMasterData(seed masterdata.SeedData) error {
	m.log.Info("🌱 Seeding master data...")

	batches := []struct {
		name string
		rows interface{}
		n    int
	}{
		{"items", &seed.Items, len(seed.Items)},
		{"warehouses", &seed.Warehouses, len(seed.Warehouses)},
		{"vendors", &seed.Vendors, len(seed.Vendors)},
		{"customers", &seed.Customers, len(seed.Customers)},
	}

	for _, batch := range batches {
		if batch.n == 0 {
			continue
		}
		result := m.db.Clauses(clause.OnConflict{DoNothing: true}).Create(batch.rows)
		if result.Error != nil {
			return fmt.Errorf("failed to seed %s: %w", batch.name, result.Error)
		}
		m.log.WithFields(logrus.Fields{
			"table":    batch.name,
			"inserted": result.RowsAffected,
		}).Info("✅ Seeded master data")
	}

	// explicit ids leave the sequences behind
	for _, table := range []string{"items", "warehouses", "vendors", "customers"} {
		stmt := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 1))", table, table)
		if err := m.db.Exec(stmt).Error; err != nil {
			m.log.WithError(err).WithField("table", table).Warn("⚠️ Failed to reset id sequence")
		}
	}
	return nil
}

// GetTableInfo logs row counts for every ledger table
func (m *Migration) GetTableInfo() {
	tables := []string{
		"items", "warehouses", "vendors", "customers",
		"documents", "document_lines",
		"inventory_transactions", "inventory_balances",
		"audit_logs",
	}

	m.log.Info("📊 Database Tables Information:")
	for _, table := range tables {
		var count int64
		if err := m.db.Table(table).Count(&count).Error; err != nil {
			m.log.WithError(err).WithField("table", table).Warn("❌ Could not count table")
			continue
		}
		m.log.Infof("%-25s | %d records", table, count)
	}
}
