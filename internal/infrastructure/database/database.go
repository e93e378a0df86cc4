package database

import (
	"fmt"
	"strings"

	"ledgersync-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models is every table the ledger core owns, in migration order.
var Models = []any{
	&domain.Account{},
	&domain.AccountProvider{},
	&domain.Security{},
	&domain.Category{},
	&domain.Merchant{},
	&domain.Entry{},
	&domain.Transaction{},
	&domain.Trade{},
	&domain.Valuation{},
	&domain.Holding{},
}

// Open opens a GORM DB for the given driver ("postgres" or "sqlite").
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind connection poolers such as PgBouncer.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}
