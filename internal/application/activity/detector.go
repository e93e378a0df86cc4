// Package activity classifies investment transactions from holdings snapshot diffs and descriptions.
package activity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/infrastructure/database"
	"ledgersync-backend/internal/pkg/namematch"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultLookbackDays bounds the transactions considered for matching.
const DefaultLookbackDays = 30

const descriptionPrefixWords = 3

// costBasisTolerance is the absolute tolerance of cost-basis matches.
var costBasisTolerance = decimal.RequireFromString("0.01")

var ErrAccountNotFound = errors.New("account not found")

// Criterion names the rule that paired a change with a transaction.
type Criterion string

const (
	CriterionCostBasis      Criterion = "cost_basis"
	CriterionCostBasisDelta Criterion = "cost_basis_delta"
	CriterionSymbol         Criterion = "symbol"
	CriterionDescription    Criterion = "description"
)

var criteria = []Criterion{CriterionCostBasis, CriterionCostBasisDelta, CriterionSymbol, CriterionDescription}

// RecentTransaction is a transaction entry eligible for matching.
type RecentTransaction struct {
	EntryID             uuid.UUID             `json:"entry_id"`
	TransactionID       uuid.UUID             `json:"transaction_id"`
	Name                string                `json:"name"`
	Amount              decimal.Decimal       `json:"amount"`
	Date                time.Time             `json:"date"`
	ExcludeFromCashflow bool                  `json:"exclude_from_cashflow"`
	Label               *domain.ActivityLabel `json:"label,omitempty"`
}

// Match records a change paired with a transaction and what was written for it.
type Match struct {
	Change    Change                `json:"change"`
	EntryID   uuid.UUID             `json:"entry_id"`
	Criterion Criterion             `json:"criterion"`
	Excluded  bool                  `json:"excluded"`
	Label     *domain.ActivityLabel `json:"label,omitempty"`
}

// Result is the outcome of one detector run.
type Result struct {
	Changes []Change `json:"changes"`
	Matches []Match  `json:"matches"`
}

// Detector runs once per sync against one investment or crypto account.
type Detector struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (d *Detector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RecentTransactions loads the account's non-excluded transaction entries dated on or after since.
func (d *Detector) RecentTransactions(ctx context.Context, accountID uuid.UUID, since time.Time) ([]RecentTransaction, error) {
	type row struct {
		EntryID                 uuid.UUID
		TransactionID           uuid.UUID
		Name                    string
		Amount                  decimal.Decimal
		Date                    time.Time
		ExcludeFromCashflow     bool
		InvestmentActivityLabel *domain.ActivityLabel
	}
	var rows []row
	err := d.DB.WithContext(ctx).Table("entries").
		Select("entries.id AS entry_id, transactions.id AS transaction_id, entries.name, entries.amount, entries.date, " +
			"entries.exclude_from_cashflow, transactions.investment_activity_label").
		Joins("JOIN transactions ON transactions.id = entries.entryable_id").
		Where("entries.account_id = ? AND entries.entryable_type = ? AND entries.excluded = ?", accountID, domain.KindTransaction, false).
		Where("entries.date >= ?", domain.DateOf(since)).
		Order("entries.date DESC, entries.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]RecentTransaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, RecentTransaction{
			EntryID:             r.EntryID,
			TransactionID:       r.TransactionID,
			Name:                r.Name,
			Amount:              r.Amount,
			Date:                r.Date,
			ExcludeFromCashflow: r.ExcludeFromCashflow,
			Label:               r.InvestmentActivityLabel,
		})
	}
	return out, nil
}

// Detect diffs current against the stored snapshot, pairs each change with the first matching
// recent transaction, flags matched entries as excluded from cash flow and stores current as
// the new snapshot. Accounts that are not investment or crypto accounts are left untouched.
func (d *Detector) Detect(ctx context.Context, accountID uuid.UUID, current []HoldingSnapshot, recent []RecentTransaction) (*Result, error) {
	var acct domain.Account
	if err := d.DB.WithContext(ctx).Where("id = ?", accountID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	result := &Result{Changes: []Change{}, Matches: []Match{}}
	if !acct.Investment() {
		return result, nil
	}

	previous := FromSnapshotRows(acct.Snapshot())
	result.Changes = append(result.Changes, Diff(previous, current)...)

	pool := make([]RecentTransaction, len(recent))
	copy(pool, recent)

	for _, change := range result.Changes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		idx, crit := findMatch(change, pool)
		if idx < 0 {
			log.Debug().Str("account_id", acct.ID.String()).Str("symbol", change.Symbol).
				Str("type", string(change.Type)).Msg("activity: no transaction for holding change")
			continue
		}
		m, err := d.apply(ctx, &acct, change, pool[idx])
		if err != nil {
			return result, err
		}
		m.Criterion = crit
		pool[idx].ExcludeFromCashflow = true
		result.Matches = append(result.Matches, m)
		log.Info().Str("account_id", acct.ID.String()).Str("entry_id", m.EntryID.String()).
			Str("symbol", change.Symbol).Str("criterion", string(crit)).Bool("excluded", m.Excluded).
			Msg("activity: holding change matched")
	}

	if err := d.storeSnapshot(ctx, acct.ID, current); err != nil {
		return result, err
	}
	return result, nil
}

// findMatch returns the first transaction satisfying the highest-priority criterion.
func findMatch(change Change, pool []RecentTransaction) (int, Criterion) {
	for _, crit := range criteria {
		for i, t := range pool {
			if t.ExcludeFromCashflow {
				continue
			}
			if matches(crit, change, t) {
				return i, crit
			}
		}
	}
	return -1, ""
}

func matches(crit Criterion, change Change, t RecentTransaction) bool {
	switch crit {
	case CriterionCostBasis:
		return !change.CostBasis.IsZero() && withinTolerance(t.Amount.Abs(), change.CostBasis.Abs())
	case CriterionCostBasisDelta:
		return !change.CostBasisDelta.IsZero() && withinTolerance(t.Amount.Abs(), change.CostBasisDelta)
	case CriterionSymbol:
		return containsSymbol(t.Name, change.Symbol)
	case CriterionDescription:
		prefix := namematch.FirstWords(change.Description, descriptionPrefixWords)
		if prefix == "" {
			return false
		}
		return strings.Contains(" "+namematch.Normalize(t.Name)+" ", " "+prefix+" ")
	}
	return false
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(costBasisTolerance)
}

func containsSymbol(name, symbol string) bool {
	sym := normalizeSymbol(symbol)
	if sym == "" {
		return false
	}
	re, err := regexp.Compile(`(^|[^A-Z0-9])` + regexp.QuoteMeta(sym) + `($|[^A-Z0-9])`)
	if err != nil {
		return false
	}
	return re.MatchString(strings.ToUpper(name))
}

// apply flags the matched entry and sets its label once, each as a versioned write.
func (d *Detector) apply(ctx context.Context, acct *domain.Account, change Change, t RecentTransaction) (Match, error) {
	m := Match{Change: change, EntryID: t.EntryID}
	now := d.now()

	err := database.RetryStale(ctx, func() error {
		return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var entry domain.Entry
			if err := tx.Where("id = ?", t.EntryID).First(&entry).Error; err != nil {
				return err
			}
			if entry.Locked(domain.AttrExcludeFromCashflow) {
				m.Excluded = entry.ExcludeFromCashflow
				return nil
			}
			locks, err := entry.WithLock(domain.AttrExcludeFromCashflow, now)
			if err != nil {
				return err
			}
			m.Excluded = true
			return database.UpdateVersioned(tx, "entries", entry.ID, entry.LockVersion, map[string]any{
				"exclude_from_cashflow": true,
				"locked_attributes":     locks,
			})
		})
	})
	if err != nil {
		return m, err
	}

	err = database.RetryStale(ctx, func() error {
		return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txn domain.Transaction
			if err := tx.Where("id = ?", t.TransactionID).First(&txn).Error; err != nil {
				return err
			}
			if txn.InvestmentActivityLabel != nil {
				m.Label = txn.InvestmentActivityLabel
				return nil
			}
			label := InferFromDescription(t.Name, t.Amount, acct)
			if label == nil {
				label = change.Label().Ptr()
			}
			m.Label = label
			return database.UpdateVersioned(tx, "transactions", txn.ID, txn.LockVersion, map[string]any{
				"investment_activity_label": string(*label),
			})
		})
	})
	return m, err
}

// storeSnapshot replaces the account snapshot wholesale.
func (d *Detector) storeSnapshot(ctx context.Context, accountID uuid.UUID, current []HoldingSnapshot) error {
	encoded, err := domain.EncodeSnapshot(ToSnapshotRows(current))
	if err != nil {
		return err
	}
	at := d.now().UTC()
	return database.RetryStale(ctx, func() error {
		return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var acct domain.Account
			if err := tx.Select("id", "lock_version").Where("id = ?", accountID).First(&acct).Error; err != nil {
				return err
			}
			return database.UpdateVersioned(tx, "accounts", acct.ID, acct.LockVersion, map[string]any{
				"holdings_snapshot":    encoded,
				"holdings_snapshot_at": at,
			})
		})
	})
}
