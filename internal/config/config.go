// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// Lock providers
const (
	LockProviderLocal = "local"
	LockProviderRedis = "redis"
)

// Oversell policies
const (
	OversellPolicyWarn   = "warn"
	OversellPolicyReject = "reject"
)

// Audit sinks
const (
	AuditSinkLog      = "log"
	AuditSinkDatabase = "database"
	AuditSinkKafka    = "kafka"
)

// Config holds all configuration for our application
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Inventory InventoryConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Report    ReportConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	LogSQL       bool
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	LookupTTL    time.Duration
}

// JWTConfig contains JWT token configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	TrustedProxies     []string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// InventoryConfig contains ledger and posting policy configuration
type InventoryConfig struct {
	StoreDriver         string
	LockProvider        string
	LockTTL             time.Duration
	LockWait            time.Duration
	OversellPolicy      string
	AllowReversal       bool
	PostingMaxRetries   int
	PostingRetryInitial time.Duration
	SeedMasterData      bool
}

// AuditConfig contains audit-log collaborator configuration
type AuditConfig struct {
	Sink         string
	BufferSize   int
	KafkaBrokers []string
	KafkaTopic   string
}

// MetricsConfig contains Prometheus configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// ReportConfig contains report rendering configuration
type ReportConfig struct {
	CompanyName string
	PDFEnabled  bool
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Inventory Ledger"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
		},
		Server: ServerConfig{
			Port:           getEnv("APP_PORT", "8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "inventory_db"),
			User:         getEnv("DB_USER", "inventory_user"),
			Password:     getEnv("DB_PASSWORD", "inventory_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
			LogSQL:       getEnvAsBool("DB_LOG_SQL", false),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			LookupTTL:    getEnvAsDuration("REDIS_LOOKUP_TTL", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-in-production"),
			Issuer:            getEnv("JWT_ISSUER", "inventory-ledger"),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),
		},
		Security: SecurityConfig{
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 300),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Inventory: InventoryConfig{
			StoreDriver:         getEnv("INVENTORY_STORE_DRIVER", StoreDriverPostgres),
			LockProvider:        getEnv("INVENTORY_LOCK_PROVIDER", LockProviderLocal),
			LockTTL:             getEnvAsDuration("INVENTORY_LOCK_TTL", 30*time.Second),
			LockWait:            getEnvAsDuration("INVENTORY_LOCK_WAIT", 5*time.Second),
			OversellPolicy:      getEnv("INVENTORY_OVERSELL_POLICY", OversellPolicyWarn),
			AllowReversal:       getEnvAsBool("INVENTORY_ALLOW_REVERSAL", false),
			PostingMaxRetries:   getEnvAsInt("INVENTORY_POSTING_MAX_RETRIES", 3),
			PostingRetryInitial: getEnvAsDuration("INVENTORY_POSTING_RETRY_INITIAL", 50*time.Millisecond),
			SeedMasterData:      getEnvAsBool("INVENTORY_SEED_MASTER_DATA", false),
		},
		Audit: AuditConfig{
			Sink:         getEnv("AUDIT_SINK", AuditSinkLog),
			BufferSize:   getEnvAsInt("AUDIT_BUFFER_SIZE", 256),
			KafkaBrokers: getEnvAsSlice("AUDIT_KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnv("AUDIT_KAFKA_TOPIC", "inventory.audit"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Report: ReportConfig{
			CompanyName: getEnv("REPORT_COMPANY_NAME", "Inventory Ledger"),
			PDFEnabled:  getEnvAsBool("REPORT_PDF_ENABLED", false),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	switch c.Inventory.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
	default:
		return fmt.Errorf("INVENTORY_STORE_DRIVER must be %q or %q", StoreDriverMemory, StoreDriverPostgres)
	}

	switch c.Inventory.LockProvider {
	case LockProviderLocal:
	case LockProviderRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("INVENTORY_LOCK_PROVIDER=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("INVENTORY_LOCK_PROVIDER must be %q or %q", LockProviderLocal, LockProviderRedis)
	}

	if c.Inventory.OversellPolicy != OversellPolicyWarn && c.Inventory.OversellPolicy != OversellPolicyReject {
		return fmt.Errorf("INVENTORY_OVERSELL_POLICY must be %q or %q", OversellPolicyWarn, OversellPolicyReject)
	}
	if c.Inventory.PostingMaxRetries < 0 {
		return fmt.Errorf("INVENTORY_POSTING_MAX_RETRIES cannot be negative")
	}

	switch c.Audit.Sink {
	case AuditSinkLog:
	case AuditSinkDatabase:
		if c.Inventory.StoreDriver != StoreDriverPostgres {
			return fmt.Errorf("AUDIT_SINK=database requires INVENTORY_STORE_DRIVER=postgres")
		}
	case AuditSinkKafka:
		if len(c.Audit.KafkaBrokers) == 0 || c.Audit.KafkaTopic == "" {
			return fmt.Errorf("AUDIT_KAFKA_BROKERS and AUDIT_KAFKA_TOPIC are required for the kafka sink")
		}
	default:
		return fmt.Errorf("unknown AUDIT_SINK %q", c.Audit.Sink)
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// RejectOversell reports whether outbound postings may not drive a balance negative
func (c *Config) RejectOversell() bool {
	return c.Inventory.OversellPolicy == OversellPolicyReject
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
