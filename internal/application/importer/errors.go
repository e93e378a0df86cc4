package importer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidArgument is wrapped by every validation failure. Nothing is written when it is returned.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrExternalIDRequired = fmt.Errorf("%w: external_id is required", ErrInvalidArgument)
	ErrSourceRequired     = fmt.Errorf("%w: source is required", ErrInvalidArgument)
	ErrSecurityRequired   = fmt.Errorf("%w: security is required", ErrInvalidArgument)
	ErrSecurityNotFound   = fmt.Errorf("%w: security not found", ErrInvalidArgument)
	ErrInvalidCurrency    = fmt.Errorf("%w: unknown currency", ErrInvalidArgument)
	ErrDateRequired       = fmt.Errorf("%w: date is required", ErrInvalidArgument)

	ErrAccountNotFound = errors.New("account not found")

	// ErrEntryTypeCollision means an (account, source, external_id) key is already bound to another entry kind.
	ErrEntryTypeCollision = errors.New("entry type collision")
)

// OwnershipConflictError reports that a holding owned by another provider blocked an import.
// It is only returned under RaiseVisibleWarning; the existing row is returned alongside it, unchanged.
type OwnershipConflictError struct {
	HoldingID  uuid.UUID
	OwnerID    uuid.UUID
	ClaimantID *uuid.UUID
	SecurityID uuid.UUID
	Date       time.Time
	Currency   string
}

func (e *OwnershipConflictError) Error() string {
	claimant := "unattributed import"
	if e.ClaimantID != nil {
		claimant = "provider " + e.ClaimantID.String()
	}
	return fmt.Sprintf("holding %s for security %s on %s (%s) is owned by provider %s; data from %s was not applied",
		e.HoldingID, e.SecurityID, e.Date.Format("2006-01-02"), e.Currency, e.OwnerID, claimant)
}
