package providers

import (
	"strings"
	"time"

	"ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/application/importer"

	"github.com/shopspring/decimal"
)

// CoinbasePayload is a wallet listing plus recent wallet transactions.
type CoinbasePayload struct {
	NativeCurrency string                `json:"native_currency"`
	Wallets        []CoinbaseWallet      `json:"wallets"`
	Transactions   []CoinbaseTransaction `json:"transactions"`
}

type CoinbaseMoney struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type CoinbaseWallet struct {
	ID       string `json:"id"`
	Currency struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"currency"`
	Balance       CoinbaseMoney `json:"balance"`
	NativeBalance CoinbaseMoney `json:"native_balance"`
	UpdatedAt     string        `json:"updated_at"`
}

type CoinbaseTransaction struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Status       string        `json:"status"`
	Amount       CoinbaseMoney `json:"amount"`
	NativeAmount CoinbaseMoney `json:"native_amount"`
	Description  string        `json:"description"`
	CreatedAt    string        `json:"created_at"`
	Details      struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
	} `json:"details"`
}

// FromCoinbase normalizes a Coinbase fetch. Wallets become holdings valued in the native
// currency. Coinbase amounts are positive for value received, so signs are flipped.
func FromCoinbase(p CoinbasePayload, asOf time.Time) (Batch, error) {
	b := Batch{Source: SourceCoinbase}
	total := decimal.Zero

	for _, w := range p.Wallets {
		code := strings.ToUpper(strings.TrimSpace(w.Currency.Code))
		if w.Balance.Amount.IsZero() {
			continue
		}
		total = total.Add(w.NativeBalance.Amount)
		price := w.NativeBalance.Amount.Div(w.Balance.Amount).Round(8)
		b.Holdings = append(b.Holdings, Holding{
			Ticker: code,
			Name:   w.Currency.Name,
			Snapshot: activity.HoldingSnapshot{
				Symbol:      code,
				Description: w.Currency.Name,
				Shares:      w.Balance.Amount,
				MarketValue: w.NativeBalance.Amount,
			},
			Input: importer.HoldingInput{
				Date:       parseDate(w.UpdatedAt, asOf),
				Currency:   firstNonEmpty(w.NativeBalance.Currency, p.NativeCurrency),
				Qty:        w.Balance.Amount,
				Price:      price,
				Amount:     w.NativeBalance.Amount,
				ExternalID: "coinbase_" + w.ID,
				Source:     SourceCoinbase,
			},
		})
	}
	b.Balance = &total

	for _, t := range p.Transactions {
		name := firstNonEmpty(t.Details.Title, t.Description, t.Type)
		if sub := strings.TrimSpace(t.Details.Subtitle); sub != "" && t.Details.Title != "" {
			name += " " + sub
		}
		b.Transactions = append(b.Transactions, importer.TransactionInput{
			ExternalID: t.ID,
			Source:     SourceCoinbase,
			Amount:     t.NativeAmount.Amount.Neg(),
			Currency:   firstNonEmpty(t.NativeAmount.Currency, p.NativeCurrency),
			Date:       parseDate(t.CreatedAt, asOf),
			Name:       name,
			Extra: map[string]any{
				SourceCoinbase: map[string]any{
					"pending":       strings.EqualFold(t.Status, "pending"),
					"type":          t.Type,
					"crypto_amount": t.Amount.Amount.String(),
					"crypto_code":   t.Amount.Currency,
				},
			},
		})
	}
	return b, nil
}
