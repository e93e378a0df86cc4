package importer

import (
	"context"

	"ledgersync-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UpdateBalance writes the provider-reported balance onto the account.
// cashBalance defaults to balance when nil.
func (s *Service) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal, cashBalance *decimal.Decimal, source string) error {
	cash := balance
	if cashBalance != nil {
		cash = *cashBalance
	}
	return database.RetryStale(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			acct, err := loadAccount(tx, accountID)
			if err != nil {
				return err
			}
			if err := database.UpdateVersioned(tx, "accounts", acct.ID, acct.LockVersion, map[string]any{
				"balance":      balance,
				"cash_balance": cash,
			}); err != nil {
				return err
			}
			log.Debug().Str("account_id", acct.ID.String()).Str("source", source).
				Str("balance", balance.String()).Str("cash_balance", cash.String()).Msg("importer: balance updated")
			return nil
		})
	})
}
