package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeInput is one normalized provider trade.
type TradeInput struct {
	ExternalID    string
	Source        string
	SecurityID    uuid.UUID
	Qty           decimal.Decimal
	Price         decimal.Decimal
	Amount        decimal.Decimal // defaults to Qty * Price
	Currency      string
	Date          time.Time
	Name          string
	ActivityLabel *domain.ActivityLabel
	ImportID      *uuid.UUID
}

type ImportedTrade struct {
	Entry   domain.Entry
	Trade   domain.Trade
	Created bool
}

// ImportTrade creates or updates the trade entry keyed by (account, source, external_id).
func (s *Service) ImportTrade(ctx context.Context, accountID uuid.UUID, in TradeInput) (*ImportedTrade, error) {
	externalID, source, err := requireIdentity(in.ExternalID, in.Source)
	if err != nil {
		return nil, err
	}
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
	amount := in.Amount
	if amount.IsZero() {
		amount = in.Qty.Mul(in.Price)
	}

	var out ImportedTrade
	err = database.RetryStale(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			acct, err := loadAccount(tx, accountID)
			if err != nil {
				return err
			}
			if err := requireSecurity(tx, in.SecurityID); err != nil {
				return err
			}
			existing, err := findByIdentity(tx, acct.ID, source, externalID, domain.KindTrade)
			if err != nil {
				return err
			}

			if existing == nil {
				trade := domain.Trade{
					SecurityID:              in.SecurityID,
					Qty:                     in.Qty,
					Price:                   in.Price,
					Currency:                currency,
					InvestmentActivityLabel: in.ActivityLabel,
				}
				if err := tx.Create(&trade).Error; err != nil {
					return err
				}
				entry := domain.Entry{
					AccountID:     acct.ID,
					EntryableType: domain.KindTrade,
					EntryableID:   trade.ID,
					Date:          domain.DateOf(in.Date),
					Amount:        amount,
					Currency:      currency,
					Name:          displayName(in.Name, "Trade"),
					ExternalID:    &externalID,
					Source:        &source,
					ImportID:      in.ImportID,
				}
				if err := tx.Create(&entry).Error; err != nil {
					return err
				}
				out = ImportedTrade{Entry: entry, Trade: trade, Created: true}
				return nil
			}

			entryUpdates := map[string]any{"currency": currency}
			if !existing.Locked(domain.AttrAmount) {
				entryUpdates["amount"] = amount
			}
			if !existing.Locked(domain.AttrName) && strings.TrimSpace(in.Name) != "" {
				entryUpdates["name"] = strings.TrimSpace(in.Name)
			}
			if !existing.Locked(domain.AttrDate) {
				entryUpdates["date"] = domain.DateOf(in.Date)
			}
			if err := database.UpdateVersioned(tx, "entries", existing.ID, existing.LockVersion, entryUpdates); err != nil {
				return err
			}
			tradeUpdates := map[string]any{
				"security_id": in.SecurityID,
				"qty":         in.Qty,
				"price":       in.Price,
				"currency":    currency,
			}
			if in.ActivityLabel != nil {
				tradeUpdates["investment_activity_label"] = string(*in.ActivityLabel)
			}
			if err := tx.Model(&domain.Trade{}).Where("id = ?", existing.EntryableID).Updates(tradeUpdates).Error; err != nil {
				return err
			}
			if err := tx.Where("id = ?", existing.ID).First(&out.Entry).Error; err != nil {
				return err
			}
			if err := tx.Where("id = ?", existing.EntryableID).First(&out.Trade).Error; err != nil {
				return err
			}
			out.Created = false
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("account_id", accountID.String()).Str("entry_id", out.Entry.ID.String()).
		Bool("created", out.Created).Msg("importer: trade imported")
	return &out, nil
}

// ValuationInput is one provider-reported balance as of a date.
type ValuationInput struct {
	ExternalID string
	Source     string
	Amount     decimal.Decimal
	Currency   string
	Date       time.Time
	Name       string
	Kind       domain.ValuationKind
}

type ImportedValuation struct {
	Entry     domain.Entry
	Valuation domain.Valuation
	Created   bool
}

// ImportValuation creates or updates the valuation entry keyed by (account, source, external_id).
func (s *Service) ImportValuation(ctx context.Context, accountID uuid.UUID, in ValuationInput) (*ImportedValuation, error) {
	externalID, source, err := requireIdentity(in.ExternalID, in.Source)
	if err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, ErrDateRequired
	}

	var out ImportedValuation
	err = database.RetryStale(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			acct, err := loadAccount(tx, accountID)
			if err != nil {
				return err
			}
			existing, err := findByIdentity(tx, acct.ID, source, externalID, domain.KindValuation)
			if err != nil {
				return err
			}
			if existing == nil {
				val := domain.Valuation{Kind: in.Kind}
				if err := tx.Create(&val).Error; err != nil {
					return err
				}
				entry := domain.Entry{
					AccountID:     acct.ID,
					EntryableType: domain.KindValuation,
					EntryableID:   val.ID,
					Date:          domain.DateOf(in.Date),
					Amount:        in.Amount,
					Currency:      currency,
					Name:          displayName(in.Name, "Balance update"),
					ExternalID:    &externalID,
					Source:        &source,
				}
				if err := tx.Create(&entry).Error; err != nil {
					return err
				}
				out = ImportedValuation{Entry: entry, Valuation: val, Created: true}
				return nil
			}

			updates := map[string]any{"currency": currency, "date": domain.DateOf(in.Date)}
			if !existing.Locked(domain.AttrAmount) {
				updates["amount"] = in.Amount
			}
			if err := database.UpdateVersioned(tx, "entries", existing.ID, existing.LockVersion, updates); err != nil {
				return err
			}
			if in.Kind != "" {
				if err := tx.Model(&domain.Valuation{}).Where("id = ?", existing.EntryableID).Update("kind", in.Kind).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("id = ?", existing.ID).First(&out.Entry).Error; err != nil {
				return err
			}
			if err := tx.Where("id = ?", existing.EntryableID).First(&out.Valuation).Error; err != nil {
				return err
			}
			out.Created = false
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func requireSecurity(tx *gorm.DB, securityID uuid.UUID) error {
	var sec domain.Security
	if err := tx.Where("id = ?", securityID).First(&sec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSecurityNotFound
		}
		return err
	}
	return nil
}
