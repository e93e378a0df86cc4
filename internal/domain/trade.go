package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade is the entryable payload of security buys and sells.
type Trade struct {
	ID                      uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SecurityID              uuid.UUID       `gorm:"column:security_id;type:uuid;not null;index" json:"security_id"`
	Qty                     decimal.Decimal `gorm:"column:qty;type:decimal(24,8);not null" json:"qty"`
	Price                   decimal.Decimal `gorm:"column:price;type:decimal(19,8);not null" json:"price"`
	Currency                string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	InvestmentActivityLabel *ActivityLabel  `gorm:"column:investment_activity_label;type:varchar(20)" json:"investment_activity_label,omitempty"`
	CreatedAt               time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ValuationKind distinguishes balance anchors from plain reconciliations.
type ValuationKind string

const (
	ValuationReconciliation ValuationKind = "reconciliation"
	ValuationOpeningAnchor  ValuationKind = "opening_anchor"
	ValuationCurrentAnchor  ValuationKind = "current_anchor"
)

// Valuation is the entryable payload of balance snapshots.
type Valuation struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Kind      ValuationKind `gorm:"column:kind;type:varchar(20);not null;default:reconciliation" json:"kind"`
	CreatedAt time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (Valuation) TableName() string {
	return "valuations"
}

func (v *Valuation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Kind == "" {
		v.Kind = ValuationReconciliation
	}
	return nil
}
