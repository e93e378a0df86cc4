package providers

import (
	"strconv"
	"strings"
	"time"

	"ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/application/importer"

	"github.com/shopspring/decimal"
)

// SimpleFINAccount is one account object of a SimpleFIN /accounts response.
type SimpleFINAccount struct {
	ID               string                 `json:"id"`
	Currency         string                 `json:"currency"`
	Balance          decimal.Decimal        `json:"balance"`
	AvailableBalance *decimal.Decimal       `json:"available-balance"`
	BalanceDate      int64                  `json:"balance-date"`
	Holdings         []SimpleFINHolding     `json:"holdings"`
	Transactions     []SimpleFINTransaction `json:"transactions"`
}

type SimpleFINHolding struct {
	ID          string           `json:"id"`
	Symbol      string           `json:"symbol"`
	Description string           `json:"description"`
	Shares      decimal.Decimal  `json:"shares"`
	MarketValue decimal.Decimal  `json:"market_value"`
	CostBasis   *decimal.Decimal `json:"cost_basis"`
	Currency    string           `json:"currency"`
	Created     int64            `json:"created"`
}

type SimpleFINTransaction struct {
	ID           string          `json:"id"`
	Posted       int64           `json:"posted"`
	TransactedAt int64           `json:"transacted_at"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Payee        string          `json:"payee"`
	Memo         string          `json:"memo"`
	Pending      bool            `json:"pending"`
}

// FromSimpleFIN normalizes one SimpleFIN account. SimpleFIN reports outflows as negative
// amounts, so signs are flipped to the ledger convention.
func FromSimpleFIN(a SimpleFINAccount, asOf time.Time) (Batch, error) {
	balance := a.Balance
	b := Batch{Source: SourceSimpleFIN, Balance: &balance, CashBalance: a.AvailableBalance}
	if a.BalanceDate > 0 {
		asOf = time.Unix(a.BalanceDate, 0).UTC()
	}

	for _, h := range a.Holdings {
		symbol := strings.ToUpper(strings.TrimSpace(h.Symbol))
		price := decimal.Zero
		if !h.Shares.IsZero() {
			price = h.MarketValue.Div(h.Shares).Round(4)
		}
		date := asOf
		if h.Created > 0 && date.IsZero() {
			date = time.Unix(h.Created, 0).UTC()
		}
		b.Holdings = append(b.Holdings, Holding{
			Ticker: symbol,
			Name:   h.Description,
			Snapshot: activity.HoldingSnapshot{
				Symbol:      symbol,
				Description: h.Description,
				Shares:      h.Shares,
				CostBasis:   valueOrZero(h.CostBasis),
				MarketValue: h.MarketValue,
			},
			Input: importer.HoldingInput{
				Date:       date,
				Currency:   firstNonEmpty(h.Currency, a.Currency),
				Qty:        h.Shares,
				Price:      price,
				Amount:     h.MarketValue,
				CostBasis:  nullDecimal(h.CostBasis),
				ExternalID: "simplefin_" + firstNonEmpty(h.ID, a.ID+"_"+symbol),
				Source:     SourceSimpleFIN,
			},
		})
	}

	for _, t := range a.Transactions {
		ts := t.Posted
		if ts == 0 {
			ts = t.TransactedAt
		}
		date := asOf
		if ts > 0 {
			date = time.Unix(ts, 0).UTC()
		}
		b.Transactions = append(b.Transactions, importer.TransactionInput{
			ExternalID: t.ID,
			Source:     SourceSimpleFIN,
			Amount:     t.Amount.Neg(),
			Currency:   a.Currency,
			Date:       date,
			Name:       firstNonEmpty(t.Payee, t.Description, t.Memo),
			Extra: map[string]any{
				SourceSimpleFIN: map[string]any{
					"pending":     t.Pending || t.Posted == 0,
					"description": t.Description,
					"posted":      strconv.FormatInt(t.Posted, 10),
				},
			},
		})
	}
	return b, nil
}
