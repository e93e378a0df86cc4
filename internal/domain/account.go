package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccountKind is the accountable type of an Account.
type AccountKind string

const (
	AccountKindDepository AccountKind = "depository"
	AccountKindCreditCard AccountKind = "credit_card"
	AccountKindInvestment AccountKind = "investment"
	AccountKindCrypto     AccountKind = "crypto"
	AccountKindLoan       AccountKind = "loan"
	AccountKindOtherAsset AccountKind = "other_asset"
)

// AccountStatus gates whether sync operations run against an account.
type AccountStatus string

const (
	AccountStatusActive          AccountStatus = "active"
	AccountStatusDisabled        AccountStatus = "disabled"
	AccountStatusPendingDeletion AccountStatus = "pending_deletion"
)

// Account is a ledger container. It owns entries and holdings.
type Account struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID           uuid.UUID       `gorm:"column:family_id;type:uuid;not null;index" json:"family_id"`
	Name               string          `gorm:"column:name;not null" json:"name"`
	Kind               AccountKind     `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Subtype            string          `gorm:"column:subtype" json:"subtype"`
	Currency           string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Balance            decimal.Decimal `gorm:"column:balance;type:decimal(19,4);not null;default:0" json:"balance"`
	CashBalance        decimal.Decimal `gorm:"column:cash_balance;type:decimal(19,4);not null;default:0" json:"cash_balance"`
	Status             AccountStatus   `gorm:"column:status;type:varchar(20);not null;default:active" json:"status"`
	HoldingsSnapshot   datatypes.JSON  `gorm:"column:holdings_snapshot" json:"holdings_snapshot,omitempty"`
	HoldingsSnapshotAt *time.Time      `gorm:"column:holdings_snapshot_at" json:"holdings_snapshot_at,omitempty"`
	LockVersion        int             `gorm:"column:lock_version;not null;default:0" json:"-"`
	CreatedAt          time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AccountStatusActive
	}
	return nil
}

// Active reports whether syncs may run against the account.
func (a *Account) Active() bool {
	return a.Status == AccountStatusActive
}

// Investment reports whether the account carries holdings (investment or crypto).
func (a *Account) Investment() bool {
	return a.Kind == AccountKindInvestment || a.Kind == AccountKindCrypto
}

// CanDeleteHoldings is the capability check guarding future-holding deletion on import.
func (a *Account) CanDeleteHoldings() bool {
	return a.Active() && a.Investment()
}

// Snapshot decodes the cached holdings snapshot. A missing or unreadable cache is an empty snapshot.
func (a *Account) Snapshot() []SnapshotHolding {
	if len(a.HoldingsSnapshot) == 0 {
		return nil
	}
	var out []SnapshotHolding
	if err := json.Unmarshal(a.HoldingsSnapshot, &out); err != nil {
		return nil
	}
	return out
}

// AccountProvider links an internal account to one external provider account.
// It is the ownership token carried by imported holdings.
type AccountProvider struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AccountID    uuid.UUID `gorm:"column:account_id;type:uuid;not null;uniqueIndex:idx_account_providers_account_type" json:"account_id"`
	ProviderType string    `gorm:"column:provider_type;not null;uniqueIndex:idx_account_providers_account_type;uniqueIndex:idx_account_providers_provider_type" json:"provider_type"`
	ProviderID   uuid.UUID `gorm:"column:provider_id;type:uuid;not null;uniqueIndex:idx_account_providers_provider_type" json:"provider_id"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AccountProvider) TableName() string {
	return "account_providers"
}

func (p *AccountProvider) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
