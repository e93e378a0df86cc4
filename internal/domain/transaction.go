package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction is the entryable payload of cash ledger lines.
type Transaction struct {
	ID                      uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CategoryID              *uuid.UUID     `gorm:"column:category_id;type:uuid" json:"category_id,omitempty"`
	MerchantID              *uuid.UUID     `gorm:"column:merchant_id;type:uuid" json:"merchant_id,omitempty"`
	InvestmentActivityLabel *ActivityLabel `gorm:"column:investment_activity_label;type:varchar(20)" json:"investment_activity_label,omitempty"`
	Extra                   datatypes.JSON `gorm:"column:extra" json:"extra,omitempty"`
	Pending                 bool           `gorm:"column:pending;not null;default:false;index" json:"pending"`
	LockVersion             int            `gorm:"column:lock_version;not null;default:0" json:"-"`
	CreatedAt               time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// pendingProviders are the extra payload namespaces that may carry a pending marker.
var pendingProviders = []string{"plaid", "simplefin", "lunchflow", "enable_banking", "coinbase"}

// PendingFromExtra projects provider-specific pending markers onto one flag.
func PendingFromExtra(extra map[string]any) bool {
	if v, ok := extra["pending"].(bool); ok && v {
		return true
	}
	for _, p := range pendingProviders {
		ns, ok := extra[p].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := ns["pending"].(bool); ok && v {
			return true
		}
	}
	return false
}

// Extras decodes the free-form provider payload.
func (t *Transaction) Extras() map[string]any {
	out := map[string]any{}
	if len(t.Extra) > 0 {
		_ = json.Unmarshal(t.Extra, &out)
	}
	return out
}

const suggestionKey = "potential_posted_match"

// SuggestionReasonFuzzyAmount marks suggestions found by the widened amount band.
const SuggestionReasonFuzzyAmount = "fuzzy_amount_match"

// DuplicateSuggestion is the annotation stored on a pending transaction when a likely posted
// counterpart exists but could not be confirmed automatically.
type DuplicateSuggestion struct {
	EntryID      uuid.UUID `json:"entry_id"`
	Reason       string    `json:"reason"`
	PostedAmount string    `json:"posted_amount"`
	DetectedAt   time.Time `json:"detected_at"`
	Dismissed    bool      `json:"dismissed,omitempty"`
}

// DuplicateSuggestion returns the stored suggestion, or nil.
func (t *Transaction) DuplicateSuggestion() *DuplicateSuggestion {
	raw, ok := t.Extras()[suggestionKey]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var s DuplicateSuggestion
	if err := json.Unmarshal(b, &s); err != nil || s.EntryID == uuid.Nil {
		return nil
	}
	return &s
}

// WithDuplicateSuggestion returns the extra payload with the suggestion set, or removed when s is nil.
// Other keys are preserved.
func (t *Transaction) WithDuplicateSuggestion(s *DuplicateSuggestion) (datatypes.JSON, error) {
	extra := t.Extras()
	if s == nil {
		delete(extra, suggestionKey)
	} else {
		extra[suggestionKey] = s
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
