package importer

import (
	"context"
	"strings"
	"time"

	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MerchantInput identifies a provider merchant. Both ID and Name are needed to create one.
type MerchantInput struct {
	ID      string
	Name    string
	Website string
}

// TransactionInput is one normalized provider transaction.
type TransactionInput struct {
	ExternalID   string
	Source       string
	Amount       decimal.Decimal
	Currency     string
	Date         time.Time
	Name         string
	CategoryID   *uuid.UUID
	CategoryName string
	Merchant     *MerchantInput
	Extra        map[string]any
	ImportID     *uuid.UUID
}

// ImportedTransaction is the canonical row pair produced by ImportTransaction.
type ImportedTransaction struct {
	Entry       domain.Entry
	Transaction domain.Transaction
	Created     bool
}

// ImportTransaction creates or updates the transaction entry keyed by (account, source, external_id).
// Fields the user has locked on an existing entry are left as they are.
func (s *Service) ImportTransaction(ctx context.Context, accountID uuid.UUID, in TransactionInput) (*ImportedTransaction, error) {
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

	var out ImportedTransaction
	err = database.RetryStale(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			acct, err := loadAccount(tx, accountID)
			if err != nil {
				return err
			}
			existing, err := findByIdentity(tx, acct.ID, source, externalID, domain.KindTransaction)
			if err != nil {
				return err
			}

			categoryID, err := resolveCategory(tx, acct, in)
			if err != nil {
				return err
			}
			merchantID, err := resolveMerchant(tx, source, in.Merchant)
			if err != nil {
				return err
			}

			if existing == nil {
				return s.createTransaction(tx, acct, externalID, source, currency, categoryID, merchantID, in, &out)
			}
			return s.updateTransaction(tx, existing, currency, categoryID, merchantID, in, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) createTransaction(tx *gorm.DB, acct *domain.Account, externalID, source, currency string,
	categoryID, merchantID *uuid.UUID, in TransactionInput, out *ImportedTransaction) error {
	extra, err := encodeExtra(in.Extra)
	if err != nil {
		return err
	}
	txn := domain.Transaction{
		CategoryID: categoryID,
		MerchantID: merchantID,
		Extra:      extra,
		Pending:    domain.PendingFromExtra(in.Extra),
	}
	if err := tx.Create(&txn).Error; err != nil {
		return err
	}
	entry := domain.Entry{
		AccountID:     acct.ID,
		EntryableType: domain.KindTransaction,
		EntryableID:   txn.ID,
		Date:          domain.DateOf(in.Date),
		Amount:        in.Amount,
		Currency:      currency,
		Name:          displayName(in.Name, "Transaction"),
		ExternalID:    &externalID,
		Source:        &source,
		ImportID:      in.ImportID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	log.Debug().Str("account_id", acct.ID.String()).Str("entry_id", entry.ID.String()).
		Str("source", source).Str("external_id", externalID).Bool("pending", txn.Pending).Msg("importer: transaction created")
	*out = ImportedTransaction{Entry: entry, Transaction: txn, Created: true}
	return nil
}

func (s *Service) updateTransaction(tx *gorm.DB, entry *domain.Entry, currency string,
	categoryID, merchantID *uuid.UUID, in TransactionInput, out *ImportedTransaction) error {
	var txn domain.Transaction
	if err := tx.Where("id = ?", entry.EntryableID).First(&txn).Error; err != nil {
		return err
	}

	entryUpdates := map[string]any{"currency": currency}
	if !entry.Locked(domain.AttrAmount) {
		entryUpdates["amount"] = in.Amount
	}
	if !entry.Locked(domain.AttrName) && strings.TrimSpace(in.Name) != "" {
		entryUpdates["name"] = strings.TrimSpace(in.Name)
	}
	if !entry.Locked(domain.AttrDate) {
		entryUpdates["date"] = domain.DateOf(in.Date)
	}
	if in.ImportID != nil {
		entryUpdates["import_id"] = *in.ImportID
	}
	if err := database.UpdateVersioned(tx, "entries", entry.ID, entry.LockVersion, entryUpdates); err != nil {
		return err
	}

	// Provider keys replace their previous values; annotations written by the reconciler survive.
	extra := txn.Extras()
	for k, v := range in.Extra {
		extra[k] = v
	}
	encoded, err := encodeExtra(extra)
	if err != nil {
		return err
	}
	txnUpdates := map[string]any{
		"extra":   encoded,
		"pending": domain.PendingFromExtra(extra),
	}
	if categoryID != nil && !entry.Locked(domain.AttrCategory) {
		txnUpdates["category_id"] = *categoryID
	}
	if merchantID != nil && !entry.Locked(domain.AttrMerchant) {
		txnUpdates["merchant_id"] = *merchantID
	}
	if err := database.UpdateVersioned(tx, "transactions", txn.ID, txn.LockVersion, txnUpdates); err != nil {
		return err
	}

	if err := tx.Where("id = ?", entry.ID).First(&out.Entry).Error; err != nil {
		return err
	}
	if err := tx.Where("id = ?", txn.ID).First(&out.Transaction).Error; err != nil {
		return err
	}
	out.Created = false
	return nil
}

func resolveCategory(tx *gorm.DB, acct *domain.Account, in TransactionInput) (*uuid.UUID, error) {
	if in.CategoryID != nil {
		return in.CategoryID, nil
	}
	name := strings.TrimSpace(in.CategoryName)
	if name == "" {
		return nil, nil
	}
	var c domain.Category
	if err := tx.Where(domain.Category{FamilyID: acct.FamilyID, Name: name}).FirstOrCreate(&c).Error; err != nil {
		return nil, err
	}
	return &c.ID, nil
}

// resolveMerchant finds or creates the provider merchant. Without both an id and a name there is no merchant.
func resolveMerchant(tx *gorm.DB, source string, in *MerchantInput) (*uuid.UUID, error) {
	if in == nil {
		return nil, nil
	}
	id := strings.TrimSpace(in.ID)
	name := strings.TrimSpace(in.Name)
	if id == "" || name == "" {
		return nil, nil
	}
	var m domain.Merchant
	err := tx.Where(domain.Merchant{Source: source, ProviderMerchantID: id}).
		Attrs(domain.Merchant{Name: name, WebsiteURL: in.Website}).
		FirstOrCreate(&m).Error
	if err != nil {
		return nil, err
	}
	return &m.ID, nil
}
