package database

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jfs415/ip2asn2cc/internal/domain"
	"github.com/jfs415/ip2asn2cc/internal/support"
)

var (
	DB *gorm.DB
)

type Config struct {
	Dialector  gorm.Dialector
	Logger     logger.Interface
	Migrations []any
}

type Option func(*Config)

// SetupDB opens the audit database. Without options it connects to postgres
// using IP2CC_DATABASE_DSN, or a DSN assembled from the DB_* variables.
func SetupDB(opts ...Option) (*gorm.DB, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Dialector == nil {
		return nil, fmt.Errorf("database: no dialector provided")
	}

	db, err := gorm.Open(cfg.Dialector, &gorm.Config{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("database: open connection: %w", err)
	}
	limitAuditConnections(db)

	if err := db.AutoMigrate(cfg.Migrations...); err != nil {
		return nil, fmt.Errorf("database: auto migrate: %w", err)
	}
	log.Debug("Audit tables migrated.", "tables", len(cfg.Migrations))

	DB = db
	return DB, nil
}

func defaultConfig() Config {
	return Config{
		Dialector:  postgres.Open(BuildDSN()),
		Logger:     silentLogger(),
		Migrations: defaultMigrations(),
	}
}

// BuildDSN prefers IP2CC_DATABASE_DSN and otherwise assembles a postgres DSN.
func BuildDSN() string {
	if dsn := support.GetEnv("IP2CC_DATABASE_DSN", ""); dsn != "" {
		return dsn
	}

	dbHost := support.GetEnv("DB_HOST", "localhost")
	dbPort := support.GetEnv("DB_PORT", "5432")
	dbName := support.GetEnv("DB_NAME", "ip2asn2cc")
	dbUser := support.GetEnv("DB_USERNAME", "ip2asn2cc")
	dbPassword := support.GetEnv("DB_PASSWORD", "ip2asn2cc")

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost,
		dbPort,
		dbUser,
		dbPassword,
		dbName,
	)
}

func silentLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Silent},
	)
}

func defaultMigrations() []any {
	return []any{
		domain.IngestionRun{},
		domain.SourceFetch{},
	}
}

func WithDialector(d gorm.Dialector) Option {
	return func(cfg *Config) {
		cfg.Dialector = d
	}
}

// limitAuditConnections keeps the pool small: one run writes one row set.
func limitAuditConnections(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("database: get sql.DB", "error", err)
		return
	}

	maxOpen := support.GetEnvInt("DB_MAX_OPEN_CONNS", 2)
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen)
	}
	sqlDB.SetConnMaxIdleTime(time.Minute)
}
