// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/config"
	"github.com/your-org/inventory-ledger/internal/domain/audit"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/masterdata"
	"github.com/your-org/inventory-ledger/internal/domain/posting"
	"github.com/your-org/inventory-ledger/internal/domain/report"
	"github.com/your-org/inventory-ledger/internal/infrastructure/database/postgres"
	"github.com/your-org/inventory-ledger/internal/infrastructure/database/redis"
	"github.com/your-org/inventory-ledger/internal/infrastructure/memory"
	"github.com/your-org/inventory-ledger/internal/interfaces/http"
	"github.com/your-org/inventory-ledger/internal/interfaces/http/routes"
	"github.com/your-org/inventory-ledger/internal/pkg/logger"
	"github.com/your-org/inventory-ledger/internal/pkg/metrics"
	"gorm.io/gorm"
)

// store is everything the services need from a storage driver
type store interface {
	ledger.Reader
	document.Repository
	posting.UnitOfWork
	report.Source
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg)
	log.Infof("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	checks := make(map[string]http.HealthCheck)

	// Storage and master data
	var (
		st     store
		lookup masterdata.Lookup
		db     *gorm.DB
	)
	switch cfg.Inventory.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("Using the in-memory store; data is lost on restart")
		st = memory.NewStore()
		lookup = masterdata.NewDirectory().Load(masterdata.DevelopmentSeed())
	default:
		conn, err := postgres.NewConnection(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer conn.Close()

		if err := conn.Health(); err != nil {
			log.Fatalf("Database health check failed: %v", err)
		}
		checks["database"] = func(context.Context) error { return conn.Health() }

		db = conn.GetDB()
		migration := postgres.NewMigration(db, log)
		if err := migration.RunAutoMigrations(); err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
		if err := migration.CreateIndexes(); err != nil {
			log.Warnf("Warning: Index creation failed: %v", err)
		}
		if cfg.Inventory.SeedMasterData {
			if err := migration.SeedMasterData(masterdata.DevelopmentSeed()); err != nil {
				log.Warnf("Warning: Data seeding failed: %v", err)
			}
		}
		if cfg.IsDevelopment() {
			migration.GetTableInfo()
		}

		st = postgres.NewStore(db)
		lookup = masterdata.NewService(db)
	}

	// Redis: lookup cache, distributed locks, rate limiting
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewConnection(cfg, log)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()

		checks["redis"] = redisClient.Health
		lookup = redis.NewCachedLookup(lookup, redisClient, cfg.Redis.LookupTTL, log)
	}

	var locker posting.KeyLocker = posting.NewLocalLocker(cfg.Inventory.LockWait)
	if cfg.Inventory.LockProvider == config.LockProviderRedis {
		locker = redis.NewLocker(redisClient, cfg.Inventory.LockTTL, cfg.Inventory.LockWait, log)
	}

	// Audit trail
	var sink audit.Sink
	switch cfg.Audit.Sink {
	case config.AuditSinkDatabase:
		sink = audit.NewDatabaseSink(db)
	case config.AuditSinkKafka:
		sink = audit.NewKafkaSink(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
	default:
		sink = audit.NewLogSink(log)
	}
	auditService := audit.NewService(sink, cfg.Audit.BufferSize, log)

	// Domain services
	ledgerService := ledger.NewService(st, lookup)
	documentService := document.NewService(st, lookup, auditService, log)
	postingService := posting.NewService(posting.Dependencies{
		UnitOfWork: st,
		Documents:  documentService,
		Ledger:     ledgerService,
		Lookup:     lookup,
		Locker:     locker,
		Audit:      auditService,
		Metrics:    m,
		Log:        log,
	}, posting.Policy{
		RejectOversell: cfg.RejectOversell(),
		AllowReversal:  cfg.Inventory.AllowReversal,
		MaxRetries:     cfg.Inventory.PostingMaxRetries,
		RetryInitial:   cfg.Inventory.PostingRetryInitial,
	})
	reportService := report.NewService(st)

	opts := http.Options{
		Services: &routes.Services{
			Documents: documentService,
			Ledger:    ledgerService,
			Posting:   postingService,
			Reports:   reportService,
		},
		Log:     log,
		Metrics: m,
		Checks:  checks,
	}
	if redisClient != nil {
		opts.RedisClient = redisClient.GetClient()
	}
	server := http.NewServer(cfg, opts)

	log.Info("✅ All systems operational!")

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("👋 Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Errorf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	if err := auditService.Close(ctx); err != nil {
		log.Errorf("Failed to flush audit log: %v", err)
	}

	log.Info("✅ Server shutdown completed")
}
