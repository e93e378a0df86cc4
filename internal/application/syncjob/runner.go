// Package syncjob runs one provider sync for one account: import, reconcile, detect.
package syncjob

import (
	"context"
	"errors"
	"time"

	"ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/application/importer"
	"ledgersync-backend/internal/application/providers"
	"ledgersync-backend/internal/application/reconciliation"
	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/infrastructure/synclock"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account is not active")
)

// Options tunes the post-import passes. Zero values fall back to package defaults.
type Options struct {
	StaleDays       int
	DateWindowDays  int
	AmountTolerance decimal.Decimal
	LookbackDays    int
	BatchTimeout    time.Duration
}

// Runner wires the importer, reconciler and detector into one sync run.
// Locker may be nil, in which case runs are not serialized per account.
type Runner struct {
	DB         *gorm.DB
	Locker     *synclock.Locker
	Importer   *importer.Service
	Reconciler *reconciliation.Service
	Detector   *activity.Detector
	Options    Options
	Now        func() time.Time
}

// Summary counts what one run did. Per-record failures are counted, not returned.
type Summary struct {
	AccountID            uuid.UUID              `json:"account_id"`
	Source               string                 `json:"source"`
	Skipped              bool                   `json:"skipped"`
	HoldingsImported     int                    `json:"holdings_imported"`
	HoldingsFailed       int                    `json:"holdings_failed"`
	HoldingConflicts     int                    `json:"holding_conflicts"`
	TradesImported       int                    `json:"trades_imported"`
	TradesFailed         int                    `json:"trades_failed"`
	TransactionsImported int                    `json:"transactions_imported"`
	TransactionsFailed   int                    `json:"transactions_failed"`
	StaleExcluded        int64                  `json:"stale_excluded"`
	Reconciliation       *reconciliation.Report `json:"reconciliation,omitempty"`
	Activity             *activity.Result       `json:"activity,omitempty"`
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run imports batch into the account and runs the reconciliation and activity passes.
// providerID attributes imported holdings; nil imports them unattributed.
// When another run holds the account lock the summary is returned with Skipped set.
func (r *Runner) Run(ctx context.Context, accountID uuid.UUID, providerID *uuid.UUID, batch providers.Batch) (*Summary, error) {
	summary := &Summary{AccountID: accountID, Source: batch.Source}

	if r.Locker != nil {
		lease, err := r.Locker.Acquire(ctx, accountID)
		if errors.Is(err, synclock.ErrLocked) {
			summary.Skipped = true
			log.Info().Str("account_id", accountID.String()).Msg("sync: account locked by another run, skipped")
			return summary, nil
		}
		if err != nil {
			return summary, err
		}
		defer func() {
			if err := lease.Release(context.Background()); err != nil {
				log.Warn().Err(err).Str("account_id", accountID.String()).Msg("sync: lock release failed")
			}
		}()
	}

	if r.Options.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Options.BatchTimeout)
		defer cancel()
	}

	var acct domain.Account
	if err := r.DB.WithContext(ctx).Where("id = ?", accountID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return summary, ErrAccountNotFound
		}
		return summary, err
	}
	if !acct.Active() {
		return summary, ErrAccountInactive
	}

	if err := r.importHoldings(ctx, &acct, providerID, batch, summary); err != nil {
		return summary, err
	}
	if err := r.importTrades(ctx, &acct, batch, summary); err != nil {
		return summary, err
	}
	if err := r.importTransactions(ctx, &acct, batch, summary); err != nil {
		return summary, err
	}
	if batch.Balance != nil {
		if err := r.Importer.UpdateBalance(ctx, acct.ID, *batch.Balance, batch.CashBalance, batch.Source); err != nil {
			return summary, err
		}
	}

	stale, err := r.Reconciler.AutoExcludeStalePending(ctx, &acct.ID, r.Options.StaleDays)
	if err != nil {
		return summary, err
	}
	summary.StaleExcluded = stale

	report, err := r.Reconciler.ReconcilePendingDuplicates(ctx, reconciliation.Options{
		AccountID:       &acct.ID,
		DateWindowDays:  r.Options.DateWindowDays,
		AmountTolerance: r.Options.AmountTolerance,
	})
	summary.Reconciliation = report
	if err != nil {
		return summary, err
	}

	if acct.Investment() {
		lookback := r.Options.LookbackDays
		if lookback <= 0 {
			lookback = activity.DefaultLookbackDays
		}
		recent, err := r.Detector.RecentTransactions(ctx, acct.ID, r.now().AddDate(0, 0, -lookback))
		if err != nil {
			return summary, err
		}
		res, err := r.Detector.Detect(ctx, acct.ID, batch.Snapshots(), recent)
		summary.Activity = res
		if err != nil {
			return summary, err
		}
	}

	log.Info().Str("account_id", acct.ID.String()).Str("source", batch.Source).
		Int("holdings", summary.HoldingsImported).Int("holdings_failed", summary.HoldingsFailed).
		Int("trades", summary.TradesImported).Int("trades_failed", summary.TradesFailed).
		Int("transactions", summary.TransactionsImported).Int("transactions_failed", summary.TransactionsFailed).
		Int64("stale_excluded", summary.StaleExcluded).Msg("sync: run complete")
	return summary, nil
}

func (r *Runner) importHoldings(ctx context.Context, acct *domain.Account, providerID *uuid.UUID, batch providers.Batch, summary *Summary) error {
	for _, h := range batch.Holdings {
		if err := ctx.Err(); err != nil {
			return err
		}
		sec, err := r.Importer.ResolveSecurity(ctx, h.Ticker, h.Name)
		if err != nil {
			summary.HoldingsFailed++
			log.Warn().Err(err).Str("account_id", acct.ID.String()).Str("ticker", h.Ticker).Msg("sync: holding skipped")
			continue
		}
		in := h.Input
		in.SecurityID = sec.ID
		in.AccountProviderID = providerID
		if in.Source == "" {
			in.Source = batch.Source
		}
		_, err = r.Importer.ImportHolding(ctx, acct.ID, in)
		var conflict *importer.OwnershipConflictError
		switch {
		case errors.As(err, &conflict):
			summary.HoldingConflicts++
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			summary.HoldingsFailed++
			log.Warn().Err(err).Str("account_id", acct.ID.String()).Str("ticker", h.Ticker).Msg("sync: holding import failed")
		default:
			summary.HoldingsImported++
		}
	}
	return nil
}

func (r *Runner) importTrades(ctx context.Context, acct *domain.Account, batch providers.Batch, summary *Summary) error {
	for _, t := range batch.Trades {
		if err := ctx.Err(); err != nil {
			return err
		}
		sec, err := r.Importer.ResolveSecurity(ctx, t.Ticker, t.Name)
		if err == nil {
			in := t.Input
			in.SecurityID = sec.ID
			if in.Source == "" {
				in.Source = batch.Source
			}
			_, err = r.Importer.ImportTrade(ctx, acct.ID, in)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			summary.TradesFailed++
			log.Warn().Err(err).Str("account_id", acct.ID.String()).Str("external_id", t.Input.ExternalID).
				Str("ticker", t.Ticker).Msg("sync: trade import failed")
			continue
		}
		summary.TradesImported++
	}
	return nil
}

func (r *Runner) importTransactions(ctx context.Context, acct *domain.Account, batch providers.Batch, summary *Summary) error {
	for _, in := range batch.Transactions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Importer.ImportTransaction(ctx, acct.ID, in); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			summary.TransactionsFailed++
			log.Warn().Err(err).Str("account_id", acct.ID.String()).Str("external_id", in.ExternalID).
				Str("source", in.Source).Msg("sync: transaction import failed")
			continue
		}
		summary.TransactionsImported++
	}
	return nil
}
