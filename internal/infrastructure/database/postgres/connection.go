// internal/infrastructure/database/postgres/connection.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/inventory-ledger/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connection wraps the gorm handle and its pool
type Connection struct {
	db *gorm.DB
}

// NewConnection opens the database and configures the pool
func NewConnection(cfg *config.Config) (*Connection, error) {
	logLevel := gormlogger.Warn
	if cfg.Database.LogSQL {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	return &Connection{db: db}, nil
}

// GetDB returns the gorm handle
func (c *Connection) GetDB() *gorm.DB {
	return c.db
}

// Health pings the database
func (c *Connection) Health() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close closes the pool
func (c *Connection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
