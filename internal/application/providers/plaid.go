package providers

import (
	"fmt"
	"strings"
	"time"

	"ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/application/importer"
	"ledgersync-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// PlaidPayload is the subset of an investments + transactions fetch for one Plaid account.
type PlaidPayload struct {
	AccountID string `json:"account_id"`
	Balances  struct {
		Current   *decimal.Decimal `json:"current"`
		Available *decimal.Decimal `json:"available"`
	} `json:"balances"`
	Holdings               []PlaidHolding               `json:"holdings"`
	Securities             []PlaidSecurity              `json:"securities"`
	Transactions           []PlaidTransaction           `json:"transactions"`
	InvestmentTransactions []PlaidInvestmentTransaction `json:"investment_transactions"`
}

type PlaidHolding struct {
	SecurityID             string           `json:"security_id"`
	Quantity               decimal.Decimal  `json:"quantity"`
	InstitutionPrice       decimal.Decimal  `json:"institution_price"`
	InstitutionPriceAsOf   string           `json:"institution_price_as_of"`
	InstitutionValue       decimal.Decimal  `json:"institution_value"`
	CostBasis              *decimal.Decimal `json:"cost_basis"`
	IsoCurrencyCode        string           `json:"iso_currency_code"`
	UnofficialCurrencyCode string           `json:"unofficial_currency_code"`
}

type PlaidSecurity struct {
	SecurityID   string `json:"security_id"`
	TickerSymbol string `json:"ticker_symbol"`
	Name         string `json:"name"`
}

type PlaidTransaction struct {
	TransactionID           string          `json:"transaction_id"`
	Amount                  decimal.Decimal `json:"amount"`
	IsoCurrencyCode         string          `json:"iso_currency_code"`
	Date                    string          `json:"date"`
	Name                    string          `json:"name"`
	MerchantName            string          `json:"merchant_name"`
	MerchantEntityID        string          `json:"merchant_entity_id"`
	Website                 string          `json:"website"`
	Pending                 bool            `json:"pending"`
	PersonalFinanceCategory *struct {
		Primary string `json:"primary"`
	} `json:"personal_finance_category"`
}

// PlaidInvestmentTransaction is one row of /investments/transactions/get. Quantity is negative
// for sells; amount is positive when cash left the account.
type PlaidInvestmentTransaction struct {
	InvestmentTransactionID string          `json:"investment_transaction_id"`
	SecurityID              string          `json:"security_id"`
	Date                    string          `json:"date"`
	Name                    string          `json:"name"`
	Quantity                decimal.Decimal `json:"quantity"`
	Price                   decimal.Decimal `json:"price"`
	Amount                  decimal.Decimal `json:"amount"`
	IsoCurrencyCode         string          `json:"iso_currency_code"`
	Type                    string          `json:"type"`
	Subtype                 string          `json:"subtype"`
}

// FromPlaid normalizes a Plaid fetch. Plaid amounts are positive for outflows, which is the
// ledger convention, so they are kept as reported.
func FromPlaid(p PlaidPayload, asOf time.Time) (Batch, error) {
	b := Batch{Source: SourcePlaid, Balance: p.Balances.Current, CashBalance: p.Balances.Available}

	securities := make(map[string]PlaidSecurity, len(p.Securities))
	for _, s := range p.Securities {
		securities[s.SecurityID] = s
	}

	for _, h := range p.Holdings {
		sec, ok := securities[h.SecurityID]
		if !ok {
			return Batch{}, fmt.Errorf("plaid holding references unknown security %q", h.SecurityID)
		}
		ticker := strings.ToUpper(strings.TrimSpace(sec.TickerSymbol))
		currency := firstNonEmpty(h.IsoCurrencyCode, h.UnofficialCurrencyCode)
		b.Holdings = append(b.Holdings, Holding{
			Ticker: ticker,
			Name:   sec.Name,
			Snapshot: activity.HoldingSnapshot{
				Symbol:      ticker,
				Description: sec.Name,
				Shares:      h.Quantity,
				CostBasis:   valueOrZero(h.CostBasis),
				MarketValue: h.InstitutionValue,
			},
			Input: importer.HoldingInput{
				Date:       parseDate(h.InstitutionPriceAsOf, asOf),
				Currency:   currency,
				Qty:        h.Quantity,
				Price:      h.InstitutionPrice,
				Amount:     h.InstitutionValue,
				CostBasis:  nullDecimal(h.CostBasis),
				ExternalID: fmt.Sprintf("plaid_%s_%s", p.AccountID, h.SecurityID),
				Source:     SourcePlaid,
			},
		})
	}

	for _, t := range p.Transactions {
		in := importer.TransactionInput{
			ExternalID: t.TransactionID,
			Source:     SourcePlaid,
			Amount:     t.Amount,
			Currency:   t.IsoCurrencyCode,
			Date:       parseDate(t.Date, asOf),
			Name:       firstNonEmpty(t.MerchantName, t.Name),
			Extra: map[string]any{
				SourcePlaid: map[string]any{"pending": t.Pending, "name": t.Name},
			},
		}
		if t.PersonalFinanceCategory != nil {
			in.CategoryName = humanizeCategory(t.PersonalFinanceCategory.Primary)
		}
		if t.MerchantEntityID != "" && t.MerchantName != "" {
			in.Merchant = &importer.MerchantInput{ID: t.MerchantEntityID, Name: t.MerchantName, Website: t.Website}
		}
		b.Transactions = append(b.Transactions, in)
	}

	for _, t := range p.InvestmentTransactions {
		if err := addPlaidInvestment(&b, securities, t, asOf); err != nil {
			return Batch{}, err
		}
	}
	return b, nil
}

// addPlaidInvestment imports buys and sells as trades and other cash activity (dividends,
// fees, transfers) as transactions so the activity detector can label it. Cancels are dropped.
func addPlaidInvestment(b *Batch, securities map[string]PlaidSecurity, t PlaidInvestmentTransaction, asOf time.Time) error {
	kind := strings.ToLower(strings.TrimSpace(t.Type))
	switch kind {
	case "cancel":
		return nil
	case "buy", "sell":
		sec, ok := securities[t.SecurityID]
		if !ok {
			return fmt.Errorf("plaid investment transaction %q references unknown security %q", t.InvestmentTransactionID, t.SecurityID)
		}
		label := domain.LabelBuy
		if kind == "sell" {
			label = domain.LabelSell
		}
		b.Trades = append(b.Trades, Trade{
			Ticker: strings.ToUpper(strings.TrimSpace(sec.TickerSymbol)),
			Name:   sec.Name,
			Input: importer.TradeInput{
				ExternalID:    t.InvestmentTransactionID,
				Source:        SourcePlaid,
				Qty:           t.Quantity,
				Price:         t.Price,
				Amount:        t.Amount,
				Currency:      t.IsoCurrencyCode,
				Date:          parseDate(t.Date, asOf),
				Name:          t.Name,
				ActivityLabel: label.Ptr(),
			},
		})
		return nil
	}
	b.Transactions = append(b.Transactions, importer.TransactionInput{
		ExternalID: t.InvestmentTransactionID,
		Source:     SourcePlaid,
		Amount:     t.Amount,
		Currency:   t.IsoCurrencyCode,
		Date:       parseDate(t.Date, asOf),
		Name:       t.Name,
		Extra: map[string]any{
			SourcePlaid: map[string]any{"pending": false, "investment_type": kind, "investment_subtype": t.Subtype},
		},
	})
	return nil
}

// humanizeCategory turns "FOOD_AND_DRINK" into "Food and drink".
func humanizeCategory(s string) string {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
