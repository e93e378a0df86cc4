package activity

import (
	"strings"

	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/pkg/namematch"

	"github.com/shopspring/decimal"
)

// HoldingSnapshot is one position as reported by a provider fetch, already normalized.
type HoldingSnapshot struct {
	Symbol      string
	Description string
	Shares      decimal.Decimal
	CostBasis   decimal.Decimal
	MarketValue decimal.Decimal
}

// ChangeType is the direction of a position change.
type ChangeType string

const (
	ChangeBuy  ChangeType = "buy"
	ChangeSell ChangeType = "sell"
)

// ChangeReason says which diff rule produced a change.
type ChangeReason string

const (
	ReasonNewPosition ChangeReason = "new_position"
	ReasonIncreased   ChangeReason = "shares_increased"
	ReasonDecreased   ChangeReason = "shares_decreased"
	ReasonClosed      ChangeReason = "position_closed"
)

// Change is one detected difference between the previous and current snapshots.
// Shares and CostBasisDelta are absolute values.
type Change struct {
	Type           ChangeType      `json:"type"`
	Reason         ChangeReason    `json:"reason"`
	Symbol         string          `json:"symbol"`
	Description    string          `json:"description"`
	Shares         decimal.Decimal `json:"shares"`
	CostBasis      decimal.Decimal `json:"cost_basis"`
	CostBasisDelta decimal.Decimal `json:"cost_basis_delta"`
}

// Label is the activity label implied by the change direction.
func (c Change) Label() domain.ActivityLabel {
	if c.Type == ChangeSell {
		return domain.LabelSell
	}
	return domain.LabelBuy
}

// Diff compares two snapshots. Counterparts are found by symbol, falling back to the
// normalized description when either side has no symbol match.
func Diff(previous, current []HoldingSnapshot) []Change {
	used := make([]bool, len(previous))
	var changes []Change

	for _, cur := range current {
		idx := counterpart(previous, used, cur)
		if idx < 0 {
			changes = append(changes, Change{
				Type:           ChangeBuy,
				Reason:         ReasonNewPosition,
				Symbol:         cur.Symbol,
				Description:    cur.Description,
				Shares:         cur.Shares.Abs(),
				CostBasis:      cur.CostBasis,
				CostBasisDelta: cur.CostBasis.Abs(),
			})
			continue
		}
		used[idx] = true
		prev := previous[idx]
		delta := cur.Shares.Sub(prev.Shares)
		if delta.IsZero() {
			continue
		}
		c := Change{
			Symbol:         cur.Symbol,
			Description:    cur.Description,
			Shares:         delta.Abs(),
			CostBasis:      cur.CostBasis,
			CostBasisDelta: cur.CostBasis.Sub(prev.CostBasis).Abs(),
		}
		if delta.IsPositive() {
			c.Type, c.Reason = ChangeBuy, ReasonIncreased
		} else {
			c.Type, c.Reason = ChangeSell, ReasonDecreased
		}
		changes = append(changes, c)
	}

	for i, prev := range previous {
		if used[i] {
			continue
		}
		changes = append(changes, Change{
			Type:           ChangeSell,
			Reason:         ReasonClosed,
			Symbol:         prev.Symbol,
			Description:    prev.Description,
			Shares:         prev.Shares.Abs(),
			CostBasis:      prev.CostBasis,
			CostBasisDelta: prev.CostBasis.Abs(),
		})
	}
	return changes
}

func counterpart(previous []HoldingSnapshot, used []bool, cur HoldingSnapshot) int {
	if sym := normalizeSymbol(cur.Symbol); sym != "" {
		for i, p := range previous {
			if !used[i] && normalizeSymbol(p.Symbol) == sym {
				return i
			}
		}
	}
	if desc := namematch.Normalize(cur.Description); desc != "" {
		for i, p := range previous {
			if !used[i] && namematch.Normalize(p.Description) == desc {
				return i
			}
		}
	}
	return -1
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ToSnapshotRows renders holdings for the account snapshot cache.
func ToSnapshotRows(holdings []HoldingSnapshot) []domain.SnapshotHolding {
	rows := make([]domain.SnapshotHolding, 0, len(holdings))
	for _, h := range holdings {
		rows = append(rows, domain.SnapshotHolding{
			Symbol:      h.Symbol,
			Description: h.Description,
			Shares:      h.Shares.String(),
			CostBasis:   h.CostBasis.String(),
			MarketValue: h.MarketValue.String(),
		})
	}
	return rows
}

// FromSnapshotRows decodes cached rows. Unparseable numbers read as zero.
func FromSnapshotRows(rows []domain.SnapshotHolding) []HoldingSnapshot {
	out := make([]HoldingSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, HoldingSnapshot{
			Symbol:      r.Symbol,
			Description: r.Description,
			Shares:      parseDecimal(r.Shares),
			CostBasis:   parseDecimal(r.CostBasis),
			MarketValue: parseDecimal(r.MarketValue),
		})
	}
	return out
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
