package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID  uuid.UUID `gorm:"column:family_id;type:uuid;not null;uniqueIndex:idx_categories_family_name" json:"family_id"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:idx_categories_family_name" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Merchant is a provider-sourced merchant, keyed by the provider's own merchant id.
type Merchant struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Source             string    `gorm:"column:source;not null;uniqueIndex:idx_merchants_source_provider" json:"source"`
	ProviderMerchantID string    `gorm:"column:provider_merchant_id;not null;uniqueIndex:idx_merchants_source_provider" json:"provider_merchant_id"`
	Name               string    `gorm:"column:name;not null" json:"name"`
	WebsiteURL         string    `gorm:"column:website_url" json:"website_url,omitempty"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Merchant) TableName() string {
	return "merchants"
}

func (m *Merchant) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
