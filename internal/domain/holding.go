package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Security is a tradable instrument referenced by trades and holdings.
type Security struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Ticker               string    `gorm:"column:ticker;not null;index" json:"ticker"`
	Name                 string    `gorm:"column:name" json:"name"`
	ExchangeOperatingMIC string    `gorm:"column:exchange_operating_mic" json:"exchange_operating_mic,omitempty"`
	CreatedAt            time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Security) TableName() string {
	return "securities"
}

func (s *Security) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Holding is a dated position snapshot for one security in one account.
// AccountProviderID, once set, names the only provider allowed to mutate the row.
type Holding struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AccountID         uuid.UUID           `gorm:"column:account_id;type:uuid;not null;uniqueIndex:idx_holdings_natural_key;uniqueIndex:idx_holdings_account_external" json:"account_id"`
	SecurityID        uuid.UUID           `gorm:"column:security_id;type:uuid;not null;uniqueIndex:idx_holdings_natural_key" json:"security_id"`
	Date              time.Time           `gorm:"column:date;not null;uniqueIndex:idx_holdings_natural_key" json:"date"`
	Currency          string              `gorm:"column:currency;type:varchar(3);not null;uniqueIndex:idx_holdings_natural_key" json:"currency"`
	Qty               decimal.Decimal     `gorm:"column:qty;type:decimal(24,8);not null" json:"qty"`
	Price             decimal.Decimal     `gorm:"column:price;type:decimal(19,8);not null" json:"price"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:decimal(19,4);not null" json:"amount"`
	CostBasis         decimal.NullDecimal `gorm:"column:cost_basis;type:decimal(19,4)" json:"cost_basis"`
	ExternalID        *string             `gorm:"column:external_id;uniqueIndex:idx_holdings_account_external" json:"external_id,omitempty"`
	AccountProviderID *uuid.UUID          `gorm:"column:account_provider_id;type:uuid;index" json:"account_provider_id,omitempty"`
	CreatedAt         time.Time           `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

func (Holding) TableName() string {
	return "holdings"
}

func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// Unowned reports whether no provider has claimed the row.
func (h *Holding) Unowned() bool {
	return h.AccountProviderID == nil
}

// OwnedBy reports whether providerID owns the row.
func (h *Holding) OwnedBy(providerID uuid.UUID) bool {
	return h.AccountProviderID != nil && *h.AccountProviderID == providerID
}
