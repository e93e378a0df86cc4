package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"ledgersync-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// HoldingInput is one normalized position snapshot.
type HoldingInput struct {
	SecurityID uuid.UUID
	Date       time.Time
	Currency   string
	Qty        decimal.Decimal
	Price      decimal.Decimal
	Amount     decimal.Decimal // defaults to Qty * Price
	CostBasis  decimal.NullDecimal
	ExternalID string
	// AccountProviderID is the provider claiming the row. Nil imports are unattributed.
	AccountProviderID *uuid.UUID
	Source            string
	// DeleteFutureHoldings removes this security's holdings dated after Date, subject to the
	// account capability check and, when AccountProviderID is set, only rows that provider owns.
	DeleteFutureHoldings bool
}

// ImportHolding upserts a holding. Rows are matched by external_id first, then by
// (security, date, currency). A composite match owned by another provider is handled per ConflictPolicy.
func (s *Service) ImportHolding(ctx context.Context, accountID uuid.UUID, in HoldingInput) (*domain.Holding, error) {
	if in.SecurityID == uuid.Nil {
		return nil, ErrSecurityRequired
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, ErrDateRequired
	}
	date := domain.DateOf(in.Date)
	amount := in.Amount
	if amount.IsZero() {
		amount = in.Qty.Mul(in.Price)
	}
	externalID := strings.TrimSpace(in.ExternalID)

	var (
		out      domain.Holding
		conflict *OwnershipConflictError
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := loadAccount(tx, accountID)
		if err != nil {
			return err
		}
		if err := requireSecurity(tx, in.SecurityID); err != nil {
			return err
		}

		data := map[string]any{
			"qty":    in.Qty,
			"price":  in.Price,
			"amount": amount,
		}
		if in.CostBasis.Valid {
			data["cost_basis"] = in.CostBasis
		}

		// Stage 1: the external id is the strongest identity signal and wins regardless of owner.
		if externalID != "" {
			var byExternal domain.Holding
			err := tx.Where("account_id = ? AND external_id = ?", acct.ID, externalID).First(&byExternal).Error
			if err == nil {
				if byExternal.Unowned() && in.AccountProviderID != nil {
					data["account_provider_id"] = *in.AccountProviderID
				}
				if err := tx.Model(&byExternal).Updates(data).Error; err != nil {
					return err
				}
				out = byExternal
				return s.afterUpsert(tx, acct, in, date, &out)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		// Stage 2: natural key.
		var byKey domain.Holding
		err = tx.Where("account_id = ? AND security_id = ? AND date = ? AND currency = ?",
			acct.ID, in.SecurityID, date, currency).First(&byKey).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = domain.Holding{
				AccountID:         acct.ID,
				SecurityID:        in.SecurityID,
				Date:              date,
				Currency:          currency,
				Qty:               in.Qty,
				Price:             in.Price,
				Amount:            amount,
				CostBasis:         in.CostBasis,
				AccountProviderID: in.AccountProviderID,
			}
			if externalID != "" {
				out.ExternalID = &externalID
			}
			if err := tx.Create(&out).Error; err != nil {
				return err
			}
			return s.afterUpsert(tx, acct, in, date, &out)
		case err != nil:
			return err
		}

		foreign := !byKey.Unowned() && (in.AccountProviderID == nil || !byKey.OwnedBy(*in.AccountProviderID))
		if foreign && s.ConflictPolicy != Overwrite {
			c := &OwnershipConflictError{
				HoldingID:  byKey.ID,
				OwnerID:    *byKey.AccountProviderID,
				ClaimantID: in.AccountProviderID,
				SecurityID: in.SecurityID,
				Date:       date,
				Currency:   currency,
			}
			log.Warn().Str("account_id", acct.ID.String()).Str("holding_id", byKey.ID.String()).
				Str("source", in.Source).Str("policy", s.ConflictPolicy.String()).
				Msg("importer: holding owned by another provider, import not applied")
			if s.ConflictPolicy == RaiseVisibleWarning {
				conflict = c
			}
			out = byKey
			return nil
		}

		if in.AccountProviderID != nil {
			data["account_provider_id"] = *in.AccountProviderID
		}
		if externalID != "" {
			data["external_id"] = externalID
		}
		if err := tx.Model(&byKey).Updates(data).Error; err != nil {
			return err
		}
		out = byKey
		return s.afterUpsert(tx, acct, in, date, &out)
	})
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return &out, conflict
	}
	return &out, nil
}

// afterUpsert reloads the written row and applies DeleteFutureHoldings.
func (s *Service) afterUpsert(tx *gorm.DB, acct *domain.Account, in HoldingInput, date time.Time, out *domain.Holding) error {
	if err := tx.Where("id = ?", out.ID).First(out).Error; err != nil {
		return err
	}
	if !in.DeleteFutureHoldings {
		return nil
	}
	if !acct.CanDeleteHoldings() {
		log.Debug().Str("account_id", acct.ID.String()).Msg("importer: account does not allow holding deletion")
		return nil
	}
	q := tx.Where("account_id = ? AND security_id = ? AND date > ?", acct.ID, in.SecurityID, date)
	if in.AccountProviderID != nil {
		q = q.Where("account_provider_id = ?", *in.AccountProviderID)
	}
	res := q.Delete(&domain.Holding{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Str("account_id", acct.ID.String()).Str("security_id", in.SecurityID.String()).
			Int64("deleted", res.RowsAffected).Msg("importer: deleted future holdings")
	}
	return nil
}
