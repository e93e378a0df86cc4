package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntryKind discriminates the entryable payload of an Entry.
type EntryKind string

const (
	KindTransaction EntryKind = "Transaction"
	KindTrade       EntryKind = "Trade"
	KindValuation   EntryKind = "Valuation"
)

var ErrUnknownEntryKind = errors.New("unknown entry kind")

type entryKindSpec struct {
	table    string
	label    string
	validate func(e *Entry) error
}

// entryKinds is the per-kind behavior registry. Adding a kind is one entry here.
var entryKinds = map[EntryKind]entryKindSpec{
	KindTransaction: {
		table: "transactions",
		label: "transaction",
		validate: func(e *Entry) error {
			if strings.TrimSpace(e.Name) == "" {
				return errors.New("transaction name is required")
			}
			return nil
		},
	},
	KindTrade: {
		table: "trades",
		label: "trade",
		validate: func(e *Entry) error {
			if strings.TrimSpace(e.Name) == "" {
				return errors.New("trade name is required")
			}
			return nil
		},
	},
	KindValuation: {
		table: "valuations",
		label: "valuation",
		validate: func(*Entry) error { return nil },
	},
}

// Valid reports whether k is a registered kind.
func (k EntryKind) Valid() bool {
	_, ok := entryKinds[k]
	return ok
}

// Label is the lowercase display name of the kind.
func (k EntryKind) Label() string {
	if spec, ok := entryKinds[k]; ok {
		return spec.label
	}
	return strings.ToLower(string(k))
}

// Table is the table holding the kind's payload rows.
func (k EntryKind) Table() string {
	return entryKinds[k].table
}

// Lockable attribute names recorded in Entry.LockedAttributes.
const (
	AttrAmount              = "amount"
	AttrName                = "name"
	AttrDate                = "date"
	AttrCategory            = "category_id"
	AttrMerchant            = "merchant_id"
	AttrExcludeFromCashflow = "exclude_from_cashflow"
)

// Entry is one canonical ledger line. Its payload lives in the table named by EntryableType.
type Entry struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AccountID           uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index;uniqueIndex:idx_entries_account_source_external" json:"account_id"`
	EntryableType       EntryKind       `gorm:"column:entryable_type;type:varchar(20);not null" json:"entryable_type"`
	EntryableID         uuid.UUID       `gorm:"column:entryable_id;type:uuid;not null;index" json:"entryable_id"`
	Date                time.Time       `gorm:"column:date;not null;index" json:"date"`
	Amount              decimal.Decimal `gorm:"column:amount;type:decimal(19,4);not null" json:"amount"`
	Currency            string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Name                string          `gorm:"column:name;not null" json:"name"`
	ExternalID          *string         `gorm:"column:external_id;uniqueIndex:idx_entries_account_source_external" json:"external_id,omitempty"`
	Source              *string         `gorm:"column:source;uniqueIndex:idx_entries_account_source_external" json:"source,omitempty"`
	ImportID            *uuid.UUID      `gorm:"column:import_id;type:uuid" json:"import_id,omitempty"`
	Excluded            bool            `gorm:"column:excluded;not null;default:false" json:"excluded"`
	ExcludeFromCashflow bool            `gorm:"column:exclude_from_cashflow;not null;default:false" json:"exclude_from_cashflow"`
	LockedAttributes    datatypes.JSON  `gorm:"column:locked_attributes" json:"locked_attributes,omitempty"`
	LockVersion         int             `gorm:"column:lock_version;not null;default:0" json:"-"`
	CreatedAt           time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Entry) TableName() string {
	return "entries"
}

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return e.Validate()
}

// Validate runs the kind-specific checks from the registry.
func (e *Entry) Validate() error {
	spec, ok := entryKinds[e.EntryableType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntryKind, e.EntryableType)
	}
	return spec.validate(e)
}

// Locks decodes the lock-set.
func (e *Entry) Locks() map[string]string {
	locks := map[string]string{}
	if len(e.LockedAttributes) > 0 {
		_ = json.Unmarshal(e.LockedAttributes, &locks)
	}
	return locks
}

// Locked reports whether the user has overridden attr.
func (e *Entry) Locked(attr string) bool {
	_, ok := e.Locks()[attr]
	return ok
}

// WithLock returns the lock-set with attr added.
func (e *Entry) WithLock(attr string, at time.Time) (datatypes.JSON, error) {
	locks := e.Locks()
	if _, ok := locks[attr]; !ok {
		locks[attr] = at.UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(locks)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// DateOf truncates t to a UTC calendar date, the granularity of entry and holding dates.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
