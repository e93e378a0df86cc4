package reconciliation

import (
	"context"

	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Suggestion is a pending entry awaiting the user's decision on a fuzzy duplicate.
type Suggestion struct {
	PendingEntry domain.Entry               `json:"pending_entry"`
	Suggestion   domain.DuplicateSuggestion `json:"suggestion"`
}

// PendingSuggestions lists the account's pending entries carrying a non-dismissed suggestion.
func (s *Service) PendingSuggestions(ctx context.Context, accountID uuid.UUID) ([]Suggestion, error) {
	rows, err := s.pendingEntries(ctx, &accountID)
	if err != nil {
		return nil, err
	}
	out := []Suggestion{}
	for _, r := range rows {
		sg := r.Transaction.DuplicateSuggestion()
		if sg == nil || sg.Dismissed {
			continue
		}
		out = append(out, Suggestion{PendingEntry: r.Entry, Suggestion: *sg})
	}
	return out, nil
}

// MergeWithDuplicate confirms a suggestion: the pending entry is destroyed and the posted one kept.
// It returns the id of the surviving posted entry.
func (s *Service) MergeWithDuplicate(ctx context.Context, pendingEntryID uuid.UUID) (uuid.UUID, error) {
	var postedID uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, txn, err := loadTransactionEntry(tx, pendingEntryID)
		if err != nil {
			return err
		}
		sg := txn.DuplicateSuggestion()
		if sg == nil {
			return ErrNoSuggestion
		}
		if err := tx.Delete(&domain.Entry{}, "id = ?", entry.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.Transaction{}, "id = ?", txn.ID).Error; err != nil {
			return err
		}
		postedID = sg.EntryID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	log.Info().Str("pending_entry_id", pendingEntryID.String()).Str("posted_entry_id", postedID.String()).
		Msg("reconciliation: pending entry merged into posted duplicate")
	return postedID, nil
}

// DismissDuplicateSuggestion keeps the suggestion but flags it so it is not surfaced again.
func (s *Service) DismissDuplicateSuggestion(ctx context.Context, pendingEntryID uuid.UUID) error {
	return s.rewriteSuggestion(ctx, pendingEntryID, func(sg *domain.DuplicateSuggestion) *domain.DuplicateSuggestion {
		sg.Dismissed = true
		return sg
	})
}

// ClearDuplicateSuggestion removes the annotation entirely.
func (s *Service) ClearDuplicateSuggestion(ctx context.Context, pendingEntryID uuid.UUID) error {
	return s.rewriteSuggestion(ctx, pendingEntryID, func(*domain.DuplicateSuggestion) *domain.DuplicateSuggestion {
		return nil
	})
}

func (s *Service) rewriteSuggestion(ctx context.Context, pendingEntryID uuid.UUID, fn func(*domain.DuplicateSuggestion) *domain.DuplicateSuggestion) error {
	return database.RetryStale(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, txn, err := loadTransactionEntry(tx, pendingEntryID)
			if err != nil {
				return err
			}
			sg := txn.DuplicateSuggestion()
			if sg == nil {
				return ErrNoSuggestion
			}
			extra, err := txn.WithDuplicateSuggestion(fn(sg))
			if err != nil {
				return err
			}
			return database.UpdateVersioned(tx, "transactions", txn.ID, txn.LockVersion, map[string]any{"extra": extra})
		})
	})
}
