package syncjob

import (
	"context"
	"testing"
	"time"

	"ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/application/importer"
	"ledgersync-backend/internal/application/providers"
	"ledgersync-backend/internal/application/reconciliation"
	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/infrastructure/synclock"
	"ledgersync-backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupRunner(t *testing.T) (*Runner, *gorm.DB) {
	db := testutil.NewDB(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := func() time.Time { return now }
	return &Runner{
		DB:         db,
		Locker:     &synclock.Locker{Rdb: rdb, TTL: time.Minute},
		Importer:   &importer.Service{DB: db, Now: clock},
		Reconciler: &reconciliation.Service{DB: db, Now: clock},
		Detector:   &activity.Detector{DB: db, Now: clock},
		Now:        clock,
	}, db
}

func txn(externalID, amount, name string, daysAgo int, pending bool) importer.TransactionInput {
	return importer.TransactionInput{
		ExternalID: externalID,
		Source:     providers.SourcePlaid,
		Amount:     dec(amount),
		Currency:   "USD",
		Date:       now.AddDate(0, 0, -daysAgo),
		Name:       name,
		Extra:      map[string]any{providers.SourcePlaid: map[string]any{"pending": pending}},
	}
}

func TestRun_InvestmentAccountEndToEnd(t *testing.T) {
	r, db := setupRunner(t)
	acct := testutil.CreateAccount(t, db, "Brokerage", domain.AccountKindInvestment)
	provider := testutil.CreateProvider(t, db, acct, providers.SourcePlaid)
	balance := dec("2100")

	batch := providers.Batch{
		Source: providers.SourcePlaid,
		Holdings: []providers.Holding{{
			Ticker:   "VTI",
			Name:     "Vanguard Total Stock Market ETF",
			Snapshot: activity.HoldingSnapshot{Symbol: "VTI", Description: "Vanguard Total Stock Market ETF", Shares: dec("10"), CostBasis: dec("2000"), MarketValue: dec("2100")},
			Input:    importer.HoldingInput{Date: now, Currency: "USD", Qty: dec("10"), Price: dec("210"), Amount: dec("2100"), ExternalID: "h-vti"},
		}},
		Transactions: []importer.TransactionInput{
			txn("t-1", "2000", "BUY VANGUARD TOTAL STOCK MARKET ETF", 1, false),
			{ExternalID: "t-2", Source: providers.SourcePlaid, Amount: dec("5"), Currency: "ZZZ", Date: now, Name: "Bad currency"},
		},
		Balance: &balance,
	}

	summary, err := r.Run(context.Background(), acct.ID, &provider.ID, batch)
	require.NoError(t, err)
	assert.False(t, summary.Skipped)
	assert.Equal(t, 1, summary.HoldingsImported)
	assert.Equal(t, 1, summary.TransactionsImported)
	assert.Equal(t, 1, summary.TransactionsFailed)
	require.NotNil(t, summary.Activity)
	require.Len(t, summary.Activity.Matches, 1)

	var holding domain.Holding
	require.NoError(t, db.First(&holding, "account_id = ?", acct.ID).Error)
	assert.True(t, holding.OwnedBy(provider.ID))

	var reloaded domain.Account
	require.NoError(t, db.First(&reloaded, "id = ?", acct.ID).Error)
	assert.True(t, reloaded.Balance.Equal(balance))
	require.Len(t, reloaded.Snapshot(), 1)

	var entry domain.Entry
	require.NoError(t, db.First(&entry, "external_id = ?", "t-1").Error)
	assert.True(t, entry.ExcludeFromCashflow)

	again, err := r.Run(context.Background(), acct.ID, &provider.ID, batch)
	require.NoError(t, err)
	assert.Empty(t, again.Activity.Matches)
	var holdings int64
	require.NoError(t, db.Model(&domain.Holding{}).Where("account_id = ?", acct.ID).Count(&holdings).Error)
	assert.Equal(t, int64(1), holdings)
}

func vtiHolding(externalID string) providers.Holding {
	return providers.Holding{
		Ticker:   "VTI",
		Name:     "Vanguard Total Stock Market ETF",
		Snapshot: activity.HoldingSnapshot{Symbol: "VTI", Shares: dec("10"), CostBasis: dec("2000"), MarketValue: dec("2100")},
		Input:    importer.HoldingInput{Date: now, Currency: "USD", Qty: dec("10"), Price: dec("210"), ExternalID: externalID},
	}
}

func TestRun_SecurityIdentityIsSharedAcrossSyncsAndProviders(t *testing.T) {
	r, db := setupRunner(t)
	acct := testutil.CreateAccount(t, db, "Brokerage", domain.AccountKindInvestment)
	plaid := testutil.CreateProvider(t, db, acct, providers.SourcePlaid)
	simplefin := testutil.CreateProvider(t, db, acct, providers.SourceSimpleFIN)
	ctx := context.Background()

	batch := providers.Batch{Source: providers.SourcePlaid, Holdings: []providers.Holding{vtiHolding("plaid-vti")}}
	for i := 0; i < 2; i++ {
		summary, err := r.Run(ctx, acct.ID, &plaid.ID, batch)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.HoldingsImported)
	}

	other := providers.Batch{Source: providers.SourceSimpleFIN, Holdings: []providers.Holding{vtiHolding("simplefin-vti")}}
	_, err := r.Run(ctx, acct.ID, &simplefin.ID, other)
	require.NoError(t, err)

	var securities []domain.Security
	require.NoError(t, db.Find(&securities).Error)
	require.Len(t, securities, 1)
	assert.Equal(t, "VTI", securities[0].Ticker)

	var holdings []domain.Holding
	require.NoError(t, db.Where("account_id = ?", acct.ID).Find(&holdings).Error)
	require.Len(t, holdings, 1)
	assert.Equal(t, securities[0].ID, holdings[0].SecurityID)
	assert.True(t, holdings[0].OwnedBy(plaid.ID))
}

func TestRun_ImportsTrades(t *testing.T) {
	r, db := setupRunner(t)
	acct := testutil.CreateAccount(t, db, "Brokerage", domain.AccountKindInvestment)
	ctx := context.Background()

	batch := providers.Batch{
		Source: providers.SourcePlaid,
		Trades: []providers.Trade{
			{Ticker: "VTI", Name: "Vanguard Total Stock Market ETF", Input: importer.TradeInput{
				ExternalID: "it-1", Qty: dec("2"), Price: dec("210"), Currency: "USD", Date: now, Name: "BUY VTI",
				ActivityLabel: domain.LabelBuy.Ptr(),
			}},
			{Ticker: "", Input: importer.TradeInput{ExternalID: "it-2", Qty: dec("1"), Price: dec("1"), Currency: "USD", Date: now}},
		},
	}
	summary, err := r.Run(ctx, acct.ID, nil, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TradesImported)
	assert.Equal(t, 1, summary.TradesFailed)

	var entry domain.Entry
	require.NoError(t, db.First(&entry, "external_id = ?", "it-1").Error)
	assert.Equal(t, domain.KindTrade, entry.EntryableType)
	assert.True(t, entry.Amount.Equal(dec("420")))

	again, err := r.Run(ctx, acct.ID, nil, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, again.TradesImported)
	var trades int64
	require.NoError(t, db.Model(&domain.Trade{}).Count(&trades).Error)
	assert.Equal(t, int64(1), trades)
}

func TestRun_ReconcilesPendingAcrossRuns(t *testing.T) {
	r, db := setupRunner(t)
	acct := testutil.CreateAccount(t, db, "Card", domain.AccountKindCreditCard)
	ctx := context.Background()

	first, err := r.Run(ctx, acct.ID, nil, providers.Batch{
		Source:       providers.SourcePlaid,
		Transactions: []importer.TransactionInput{txn("p-1", "42.10", "GAS STATION", 5, true)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Reconciliation.Reconciled)
	assert.Nil(t, first.Activity)

	second, err := r.Run(ctx, acct.ID, nil, providers.Batch{
		Source:       providers.SourcePlaid,
		Transactions: []importer.TransactionInput{txn("s-1", "42.10", "Gas Station #44", 3, false)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Reconciliation.Reconciled)

	var pending domain.Entry
	require.NoError(t, db.First(&pending, "external_id = ?", "p-1").Error)
	assert.True(t, pending.Excluded)
}

func TestRun_SkipsWhenAccountLocked(t *testing.T) {
	r, db := setupRunner(t)
	acct := testutil.CreateAccount(t, db, "Card", domain.AccountKindCreditCard)
	ctx := context.Background()

	lease, err := r.Locker.Acquire(ctx, acct.ID)
	require.NoError(t, err)

	summary, err := r.Run(ctx, acct.ID, nil, providers.Batch{
		Source:       providers.SourcePlaid,
		Transactions: []importer.TransactionInput{txn("x-1", "1", "Anything", 0, false)},
	})
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	var n int64
	require.NoError(t, db.Model(&domain.Entry{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)

	require.NoError(t, lease.Release(ctx))
	summary, err = r.Run(ctx, acct.ID, nil, providers.Batch{Source: providers.SourcePlaid})
	require.NoError(t, err)
	assert.False(t, summary.Skipped)
}

func TestRun_AccountPreconditions(t *testing.T) {
	r, db := setupRunner(t)
	ctx := context.Background()

	_, err := r.Run(ctx, uuid.New(), nil, providers.Batch{})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	acct := testutil.CreateAccount(t, db, "Closed", domain.AccountKindDepository)
	require.NoError(t, db.Model(&domain.Account{}).Where("id = ?", acct.ID).Update("status", domain.AccountStatusDisabled).Error)
	_, err = r.Run(ctx, acct.ID, nil, providers.Batch{})
	assert.ErrorIs(t, err, ErrAccountInactive)
}
