package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledgersync-backend/internal/domain"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConflictPolicy decides what happens when a holding import collides with a row owned by another provider.
type ConflictPolicy int

const (
	// DropSilently leaves the foreign-owned row untouched and logs the dropped data.
	DropSilently ConflictPolicy = iota
	// RaiseVisibleWarning leaves the row untouched and returns an *OwnershipConflictError.
	RaiseVisibleWarning
	// Overwrite applies the data and transfers ownership to the importing provider.
	Overwrite
)

func (p ConflictPolicy) String() string {
	switch p {
	case RaiseVisibleWarning:
		return "warn"
	case Overwrite:
		return "overwrite"
	default:
		return "drop"
	}
}

// ParseConflictPolicy accepts "drop", "warn" or "overwrite".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop", "drop_silently":
		return DropSilently, nil
	case "warn", "raise_visible_warning":
		return RaiseVisibleWarning, nil
	case "overwrite":
		return Overwrite, nil
	}
	return DropSilently, fmt.Errorf("unknown holding conflict policy %q", s)
}

// Service turns normalized provider records into canonical ledger rows for one account at a time.
// Every operation is safe to re-run with the same input.
type Service struct {
	DB             *gorm.DB
	ConflictPolicy ConflictPolicy
	Now            func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func loadAccount(tx *gorm.DB, accountID uuid.UUID) (*domain.Account, error) {
	var acct domain.Account
	if err := tx.Where("id = ?", accountID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// findByIdentity returns the entry bound to (account, source, external_id), nil when absent,
// or ErrEntryTypeCollision when the key already belongs to another kind.
func findByIdentity(tx *gorm.DB, accountID uuid.UUID, source, externalID string, want domain.EntryKind) (*domain.Entry, error) {
	var existing domain.Entry
	err := tx.Where("account_id = ? AND source = ? AND external_id = ?", accountID, source, externalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.EntryableType != want {
		return nil, fmt.Errorf("%w: external_id %q from %s is a %s, not a %s",
			ErrEntryTypeCollision, externalID, source, existing.EntryableType.Label(), want.Label())
	}
	return &existing, nil
}

func requireIdentity(externalID, source string) (string, string, error) {
	externalID = strings.TrimSpace(externalID)
	source = strings.TrimSpace(source)
	if externalID == "" {
		return "", "", ErrExternalIDRequired
	}
	if source == "" {
		return "", "", ErrSourceRequired
	}
	return externalID, source, nil
}

// normalizeCurrency upper-cases code and checks it against the ISO 4217 table.
func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || money.GetCurrency(code) == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return code, nil
}

func displayName(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}

func encodeExtra(extra map[string]any) (datatypes.JSON, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
