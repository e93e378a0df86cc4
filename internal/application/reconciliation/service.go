package reconciliation

import (
	"context"
	"errors"
	"time"

	"ledgersync-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultStaleDays      = 8
	DefaultDateWindowDays = 8
	FuzzyDateWindowDays   = 3
	fuzzyPrefixWords      = 3
)

// DefaultAmountTolerance is the fuzzy amount band above the pending amount (tips, surcharges).
var DefaultAmountTolerance = decimal.RequireFromString("0.25")

var (
	ErrEntryNotFound  = errors.New("entry not found")
	ErrNotTransaction = errors.New("entry is not a transaction")
	ErrNoSuggestion   = errors.New("entry has no duplicate suggestion")
)

// Service finds pending transactions that were later re-reported as posted.
type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *Service) today() time.Time {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return domain.DateOf(now)
}

// AutoExcludeStalePending excludes pending entries dated strictly more than days before today.
// A nil accountID covers every account. It returns the number of entries excluded.
func (s *Service) AutoExcludeStalePending(ctx context.Context, accountID *uuid.UUID, days int) (int64, error) {
	if days <= 0 {
		days = DefaultStaleDays
	}
	cutoff := s.today().AddDate(0, 0, -days)

	pendingIDs := s.DB.WithContext(ctx).Model(&domain.Transaction{}).Select("id").Where("pending = ?", true)
	q := s.DB.WithContext(ctx).Model(&domain.Entry{}).
		Where("entryable_type = ? AND excluded = ? AND date < ?", domain.KindTransaction, false, cutoff).
		Where("entryable_id IN (?)", pendingIDs)
	if accountID != nil {
		q = q.Where("account_id = ?", *accountID)
	}
	res := q.Updates(map[string]any{
		"excluded":     true,
		"lock_version": gorm.Expr("lock_version + 1"),
		"updated_at":   time.Now().UTC(),
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		ev := log.Info().Int64("excluded", res.RowsAffected).Int("days", days)
		if accountID != nil {
			ev = ev.Str("account_id", accountID.String())
		}
		ev.Msg("reconciliation: excluded stale pending entries")
	}
	return res.RowsAffected, nil
}

// pendingRow is a pending entry with its transaction payload.
type pendingRow struct {
	Entry       domain.Entry
	Transaction domain.Transaction
}

// pendingEntries returns non-excluded pending transaction entries, oldest first.
func (s *Service) pendingEntries(ctx context.Context, accountID *uuid.UUID) ([]pendingRow, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Entry{}).Select("entries.*").
		Joins("JOIN transactions ON transactions.id = entries.entryable_id").
		Where("entries.entryable_type = ? AND entries.excluded = ? AND transactions.pending = ?", domain.KindTransaction, false, true)
	if accountID != nil {
		q = q.Where("entries.account_id = ?", *accountID)
	}
	var entries []domain.Entry
	if err := q.Order("entries.date ASC, entries.id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.EntryableID)
	}
	var txns []domain.Transaction
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&txns).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Transaction, len(txns))
	for _, t := range txns {
		byID[t.ID] = t
	}

	rows := make([]pendingRow, 0, len(entries))
	for _, e := range entries {
		t, ok := byID[e.EntryableID]
		if !ok {
			continue
		}
		rows = append(rows, pendingRow{Entry: e, Transaction: t})
	}
	return rows, nil
}

// loadTransactionEntry loads an entry and its transaction payload inside tx.
func loadTransactionEntry(tx *gorm.DB, entryID uuid.UUID) (*domain.Entry, *domain.Transaction, error) {
	var entry domain.Entry
	if err := tx.Where("id = ?", entryID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrEntryNotFound
		}
		return nil, nil, err
	}
	if entry.EntryableType != domain.KindTransaction {
		return nil, nil, ErrNotTransaction
	}
	var txn domain.Transaction
	if err := tx.Where("id = ?", entry.EntryableID).First(&txn).Error; err != nil {
		return nil, nil, err
	}
	return &entry, &txn, nil
}
