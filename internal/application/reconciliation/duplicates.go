package reconciliation

import (
	"context"
	"time"

	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/infrastructure/database"
	"ledgersync-backend/internal/pkg/namematch"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MatchType records how a pending entry was paired with a posted one.
type MatchType string

const (
	MatchExact           MatchType = "exact"
	MatchFuzzySuggestion MatchType = "fuzzy_suggestion"
)

// Options controls one reconciliation pass.
type Options struct {
	AccountID       *uuid.UUID // nil reconciles every account
	DryRun          bool
	DateWindowDays  int             // 0 means DefaultDateWindowDays
	AmountTolerance decimal.Decimal // zero means DefaultAmountTolerance
}

func (o Options) withDefaults() Options {
	if o.DateWindowDays <= 0 {
		o.DateWindowDays = DefaultDateWindowDays
	}
	if !o.AmountTolerance.IsPositive() {
		o.AmountTolerance = DefaultAmountTolerance
	}
	return o
}

// Detail records both sides of one match so a report can be audited without re-querying.
type Detail struct {
	AccountID      uuid.UUID `json:"account_id"`
	PendingEntryID uuid.UUID `json:"pending_entry_id"`
	PendingName    string    `json:"pending_name"`
	PendingAmount  string    `json:"pending_amount"`
	PendingDate    string    `json:"pending_date"`
	PostedEntryID  uuid.UUID `json:"posted_entry_id"`
	PostedName     string    `json:"posted_name"`
	PostedAmount   string    `json:"posted_amount"`
	PostedDate     string    `json:"posted_date"`
	MatchType      MatchType `json:"match_type"`
}

// Report is the outcome of ReconcilePendingDuplicates.
type Report struct {
	DryRun     bool     `json:"dry_run"`
	Checked    int      `json:"checked"`
	Reconciled int      `json:"reconciled"`
	Suggested  int      `json:"suggested"`
	Ambiguous  int      `json:"ambiguous"`
	Errors     int      `json:"errors"`
	Details    []Detail `json:"details"`
}

// ReconcilePendingDuplicates pairs pending entries with later posted entries.
// An exact match (same currency and amount, exactly one candidate in the date window) excludes the
// pending entry. Otherwise a single fuzzy candidate is stored as a suggestion for the user.
// Each pending entry is handled independently; cancellation returns the partial report.
func (s *Service) ReconcilePendingDuplicates(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	report := &Report{DryRun: opts.DryRun, Details: []Detail{}}

	pending, err := s.pendingEntries(ctx, opts.AccountID)
	if err != nil {
		return report, err
	}
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		if err := s.reconcileOne(ctx, p, opts, report); err != nil {
			report.Errors++
			log.Error().Err(err).Str("entry_id", p.Entry.ID.String()).Msg("reconciliation: pending entry failed")
		}
	}

	log.Info().Int("checked", report.Checked).Int("reconciled", report.Reconciled).
		Int("suggested", report.Suggested).Int("ambiguous", report.Ambiguous).Int("errors", report.Errors).
		Bool("dry_run", opts.DryRun).Msg("reconciliation: pending duplicate pass complete")
	return report, nil
}

func (s *Service) reconcileOne(ctx context.Context, p pendingRow, opts Options, report *Report) error {
	start := domain.DateOf(p.Entry.Date)
	exactEnd := start.AddDate(0, 0, opts.DateWindowDays)
	fuzzyEnd := start.AddDate(0, 0, FuzzyDateWindowDays)
	searchEnd := exactEnd
	if fuzzyEnd.After(searchEnd) {
		searchEnd = fuzzyEnd
	}

	candidates, err := s.postedCandidates(ctx, p.Entry, start, searchEnd)
	if err != nil {
		return err
	}

	var exact []domain.Entry
	for _, c := range candidates {
		if !domain.DateOf(c.Date).After(exactEnd) && c.Amount.Equal(p.Entry.Amount) {
			exact = append(exact, c)
		}
	}
	if len(exact) == 1 {
		posted := exact[0]
		if !opts.DryRun {
			if err := s.exclude(ctx, p.Entry.ID); err != nil {
				return err
			}
		}
		report.Reconciled++
		report.Details = append(report.Details, detailFor(p.Entry, posted, MatchExact))
		log.Info().Str("pending_entry_id", p.Entry.ID.String()).Str("posted_entry_id", posted.ID.String()).
			Str("match_type", string(MatchExact)).Bool("dry_run", opts.DryRun).Msg("reconciliation: pending entry matched")
		return nil
	}
	if len(exact) > 1 {
		log.Info().Str("entry_id", p.Entry.ID.String()).Int("candidates", len(exact)).
			Msg("reconciliation: ambiguous exact candidates, skipped")
	}

	if p.Transaction.DuplicateSuggestion() != nil {
		if len(exact) > 1 {
			report.Ambiguous++
		}
		return nil
	}

	var fuzzy []domain.Entry
	for _, c := range candidates {
		if domain.DateOf(c.Date).After(fuzzyEnd) {
			continue
		}
		if !withinBand(p.Entry.Amount, c.Amount, opts.AmountTolerance) {
			continue
		}
		if !namematch.SamePrefix(p.Entry.Name, c.Name, fuzzyPrefixWords) {
			continue
		}
		fuzzy = append(fuzzy, c)
	}
	switch {
	case len(fuzzy) == 1:
		posted := fuzzy[0]
		if !opts.DryRun {
			if err := s.suggest(ctx, p.Entry.ID, posted); err != nil {
				return err
			}
		}
		report.Suggested++
		report.Details = append(report.Details, detailFor(p.Entry, posted, MatchFuzzySuggestion))
		log.Info().Str("pending_entry_id", p.Entry.ID.String()).Str("posted_entry_id", posted.ID.String()).
			Str("match_type", string(MatchFuzzySuggestion)).Bool("dry_run", opts.DryRun).Msg("reconciliation: duplicate suggested")
	case len(fuzzy) > 1:
		report.Ambiguous++
		log.Info().Str("entry_id", p.Entry.ID.String()).Int("candidates", len(fuzzy)).
			Msg("reconciliation: ambiguous fuzzy candidates, skipped")
	default:
		if len(exact) > 1 {
			report.Ambiguous++
		}
	}
	return nil
}

// postedCandidates returns non-pending, non-excluded transaction entries in the pending entry's
// account and currency dated within [from, to]. Candidates never predate the pending entry.
func (s *Service) postedCandidates(ctx context.Context, pending domain.Entry, from, to time.Time) ([]domain.Entry, error) {
	var out []domain.Entry
	err := s.DB.WithContext(ctx).Model(&domain.Entry{}).Select("entries.*").
		Joins("JOIN transactions ON transactions.id = entries.entryable_id").
		Where("entries.account_id = ? AND entries.entryable_type = ? AND entries.id <> ?", pending.AccountID, domain.KindTransaction, pending.ID).
		Where("entries.excluded = ? AND transactions.pending = ?", false, false).
		Where("entries.currency = ? AND entries.date >= ? AND entries.date <= ?", pending.Currency, from, to).
		Order("entries.date ASC, entries.id ASC").
		Find(&out).Error
	return out, err
}

// withinBand reports whether |posted| lies in [|pending|, |pending| * (1 + tolerance)] with the same sign.
func withinBand(pending, posted, tolerance decimal.Decimal) bool {
	if pending.Sign() != posted.Sign() {
		return false
	}
	lo := pending.Abs()
	hi := lo.Mul(decimal.NewFromInt(1).Add(tolerance))
	amt := posted.Abs()
	return amt.GreaterThanOrEqual(lo) && amt.LessThanOrEqual(hi)
}

// exclude marks an entry excluded in one conditional statement.
func (s *Service) exclude(ctx context.Context, entryID uuid.UUID) error {
	return s.DB.WithContext(ctx).Model(&domain.Entry{}).
		Where("id = ? AND excluded = ?", entryID, false).
		Updates(map[string]any{
			"excluded":     true,
			"lock_version": gorm.Expr("lock_version + 1"),
			"updated_at":   time.Now().UTC(),
		}).Error
}

// suggest stores the fuzzy match on the pending transaction unless a suggestion is already there.
func (s *Service) suggest(ctx context.Context, pendingEntryID uuid.UUID, posted domain.Entry) error {
	detectedAt := time.Now().UTC()
	if s.Now != nil {
		detectedAt = s.Now().UTC()
	}
	return database.RetryStale(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, txn, err := loadTransactionEntry(tx, pendingEntryID)
			if err != nil {
				return err
			}
			if txn.DuplicateSuggestion() != nil {
				return nil
			}
			extra, err := txn.WithDuplicateSuggestion(&domain.DuplicateSuggestion{
				EntryID:      posted.ID,
				Reason:       domain.SuggestionReasonFuzzyAmount,
				PostedAmount: posted.Amount.String(),
				DetectedAt:   detectedAt,
			})
			if err != nil {
				return err
			}
			return database.UpdateVersioned(tx, "transactions", txn.ID, txn.LockVersion, map[string]any{"extra": extra})
		})
	})
}

func detailFor(pending, posted domain.Entry, mt MatchType) Detail {
	return Detail{
		AccountID:      pending.AccountID,
		PendingEntryID: pending.ID,
		PendingName:    pending.Name,
		PendingAmount:  pending.Amount.String(),
		PendingDate:    pending.Date.Format("2006-01-02"),
		PostedEntryID:  posted.ID,
		PostedName:     posted.Name,
		PostedAmount:   posted.Amount.String(),
		PostedDate:     posted.Date.Format("2006-01-02"),
		MatchType:      mt,
	}
}
