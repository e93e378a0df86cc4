package testutil

import (
	"testing"

	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated in-memory sqlite store. A single connection keeps every
// query on the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateAccount inserts an active account of the given kind.
func CreateAccount(t *testing.T, db *gorm.DB, name string, kind domain.AccountKind) *domain.Account {
	t.Helper()
	acct := &domain.Account{
		FamilyID: uuid.New(),
		Name:     name,
		Kind:     kind,
		Currency: "USD",
		Balance:  decimal.Zero,
	}
	require.NoError(t, db.Create(acct).Error)
	return acct
}

// CreateProvider links acct to a provider of the given type.
func CreateProvider(t *testing.T, db *gorm.DB, acct *domain.Account, providerType string) *domain.AccountProvider {
	t.Helper()
	p := &domain.AccountProvider{AccountID: acct.ID, ProviderType: providerType, ProviderID: uuid.New()}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateSecurity inserts a security with the given ticker.
func CreateSecurity(t *testing.T, db *gorm.DB, ticker string) *domain.Security {
	t.Helper()
	s := &domain.Security{Ticker: ticker, Name: ticker}
	require.NoError(t, db.Create(s).Error)
	return s
}
