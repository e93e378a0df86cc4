package providers

import (
	"testing"
	"time"

	"ledgersync-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDecode_Plaid(t *testing.T) {
	raw := []byte(`{
		"account_id": "acc-1",
		"balances": {"current": 10500.25, "available": 320.10},
		"securities": [{"security_id": "sec-vti", "ticker_symbol": "vti", "name": "Vanguard Total Stock Market ETF"}],
		"holdings": [{"security_id": "sec-vti", "quantity": 10, "institution_price": 210.5, "institution_value": 2105,
			"cost_basis": 2000, "iso_currency_code": "USD", "institution_price_as_of": "2024-05-31"}],
		"transactions": [{"transaction_id": "tx-1", "amount": 2000, "iso_currency_code": "USD", "date": "2024-05-30",
			"name": "BUY VTI", "merchant_name": "", "pending": true,
			"personal_finance_category": {"primary": "TRANSFER_OUT"}}]
	}`)

	b, err := Decode("Plaid", raw, asOf)
	require.NoError(t, err)
	assert.Equal(t, SourcePlaid, b.Source)
	require.NotNil(t, b.Balance)
	assert.True(t, b.Balance.Equal(dec("10500.25")))
	assert.True(t, b.CashBalance.Equal(dec("320.10")))

	require.Len(t, b.Holdings, 1)
	h := b.Holdings[0]
	assert.Equal(t, "VTI", h.Ticker)
	assert.Equal(t, "plaid_acc-1_sec-vti", h.Input.ExternalID)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), h.Input.Date)
	assert.True(t, h.Input.CostBasis.Valid)
	assert.True(t, h.Snapshot.CostBasis.Equal(dec("2000")))

	require.Len(t, b.Transactions, 1)
	tx := b.Transactions[0]
	assert.True(t, tx.Amount.Equal(dec("2000")))
	assert.Equal(t, "BUY VTI", tx.Name)
	assert.Equal(t, "Transfer out", tx.CategoryName)
	assert.Nil(t, tx.Merchant)
	assert.Equal(t, true, tx.Extra[SourcePlaid].(map[string]any)["pending"])

	require.Len(t, b.Snapshots(), 1)
}

func TestFromPlaid_InvestmentTransactions(t *testing.T) {
	b, err := FromPlaid(PlaidPayload{
		Securities: []PlaidSecurity{{SecurityID: "sec-vti", TickerSymbol: "vti", Name: "Vanguard Total Stock Market ETF"}},
		InvestmentTransactions: []PlaidInvestmentTransaction{
			{InvestmentTransactionID: "it-1", SecurityID: "sec-vti", Type: "buy", Date: "2024-05-29", Name: "BUY VTI",
				Quantity: dec("2"), Price: dec("210"), Amount: dec("420"), IsoCurrencyCode: "USD"},
			{InvestmentTransactionID: "it-2", SecurityID: "sec-vti", Type: "sell", Date: "2024-05-30", Name: "SELL VTI",
				Quantity: dec("-1"), Price: dec("212"), Amount: dec("-212"), IsoCurrencyCode: "USD"},
			{InvestmentTransactionID: "it-3", SecurityID: "sec-vti", Type: "cash", Subtype: "dividend", Date: "2024-05-31",
				Name: "VTI DIVIDEND", Amount: dec("-3.10"), IsoCurrencyCode: "USD"},
			{InvestmentTransactionID: "it-4", Type: "cancel", Name: "CANCELLED"},
		},
	}, asOf)
	require.NoError(t, err)

	require.Len(t, b.Trades, 2)
	buy := b.Trades[0]
	assert.Equal(t, "VTI", buy.Ticker)
	assert.Equal(t, "it-1", buy.Input.ExternalID)
	assert.True(t, buy.Input.Amount.Equal(dec("420")))
	assert.Equal(t, domain.LabelBuy, *buy.Input.ActivityLabel)
	assert.Equal(t, domain.LabelSell, *b.Trades[1].Input.ActivityLabel)
	assert.True(t, b.Trades[1].Input.Qty.Equal(dec("-1")))

	require.Len(t, b.Transactions, 1)
	div := b.Transactions[0]
	assert.Equal(t, "it-3", div.ExternalID)
	assert.True(t, div.Amount.Equal(dec("-3.10")))
	assert.Equal(t, "cash", div.Extra[SourcePlaid].(map[string]any)["investment_type"])

	_, err = FromPlaid(PlaidPayload{InvestmentTransactions: []PlaidInvestmentTransaction{
		{InvestmentTransactionID: "it-9", SecurityID: "missing", Type: "buy"},
	}}, asOf)
	assert.Error(t, err)
}

func TestFromPlaid_UnknownSecurity(t *testing.T) {
	_, err := FromPlaid(PlaidPayload{Holdings: []PlaidHolding{{SecurityID: "missing"}}}, asOf)
	assert.Error(t, err)
}

func TestFromPlaid_MerchantNeedsIDAndName(t *testing.T) {
	b, err := FromPlaid(PlaidPayload{Transactions: []PlaidTransaction{
		{TransactionID: "a", Name: "STARBUCKS 123", MerchantName: "Starbucks", MerchantEntityID: "m-1"},
		{TransactionID: "b", Name: "STARBUCKS 456", MerchantName: "Starbucks"},
	}}, asOf)
	require.NoError(t, err)
	require.NotNil(t, b.Transactions[0].Merchant)
	assert.Equal(t, "m-1", b.Transactions[0].Merchant.ID)
	assert.Nil(t, b.Transactions[1].Merchant)
}

func TestDecode_SimpleFIN(t *testing.T) {
	raw := []byte(`{
		"id": "sf-acct", "currency": "USD", "balance": "5000.00", "balance-date": 1717243200,
		"holdings": [{"id": "h-1", "symbol": "fxaix", "description": "Fidelity 500 Index", "shares": "4",
			"market_value": "760.00", "cost_basis": "700.00"}],
		"transactions": [
			{"id": "t-1", "posted": 1717156800, "amount": "-45.20", "description": "COFFEE SHOP", "payee": "Coffee Shop"},
			{"id": "t-2", "posted": 0, "transacted_at": 1717160400, "amount": "12.00", "description": "REFUND"}
		]
	}`)

	b, err := Decode(SourceSimpleFIN, raw, time.Time{})
	require.NoError(t, err)
	require.Len(t, b.Holdings, 1)
	h := b.Holdings[0]
	assert.Equal(t, "FXAIX", h.Ticker)
	assert.Equal(t, "simplefin_h-1", h.Input.ExternalID)
	assert.True(t, h.Input.Price.Equal(dec("190")))
	assert.Equal(t, "USD", h.Input.Currency)
	assert.Equal(t, time.Unix(1717243200, 0).UTC(), h.Input.Date)

	require.Len(t, b.Transactions, 2)
	assert.True(t, b.Transactions[0].Amount.Equal(dec("45.20")))
	assert.Equal(t, "Coffee Shop", b.Transactions[0].Name)
	assert.Equal(t, false, b.Transactions[0].Extra[SourceSimpleFIN].(map[string]any)["pending"])

	assert.True(t, b.Transactions[1].Amount.Equal(dec("-12")))
	assert.Equal(t, true, b.Transactions[1].Extra[SourceSimpleFIN].(map[string]any)["pending"])
	assert.Equal(t, time.Unix(1717160400, 0).UTC(), b.Transactions[1].Date)
}

func TestDecode_Coinbase(t *testing.T) {
	raw := []byte(`{
		"native_currency": "USD",
		"wallets": [
			{"id": "w-btc", "currency": {"code": "btc", "name": "Bitcoin"}, "balance": {"amount": "0.5", "currency": "BTC"},
				"native_balance": {"amount": "30000.00", "currency": "USD"}, "updated_at": "2024-05-31T10:00:00Z"},
			{"id": "w-empty", "currency": {"code": "DOGE", "name": "Dogecoin"}, "balance": {"amount": "0", "currency": "DOGE"},
				"native_balance": {"amount": "0", "currency": "USD"}}
		],
		"transactions": [{"id": "cb-1", "type": "buy", "status": "pending",
			"amount": {"amount": "0.1", "currency": "BTC"}, "native_amount": {"amount": "6000.00", "currency": "USD"},
			"created_at": "2024-05-30T09:00:00Z", "details": {"title": "Bought Bitcoin", "subtitle": "using Cash"}}]
	}`)

	b, err := Decode(SourceCoinbase, raw, asOf)
	require.NoError(t, err)
	require.Len(t, b.Holdings, 1)
	h := b.Holdings[0]
	assert.Equal(t, "BTC", h.Ticker)
	assert.True(t, h.Input.Price.Equal(dec("60000")))
	assert.False(t, h.Input.CostBasis.Valid)
	assert.True(t, b.Balance.Equal(dec("30000")))

	require.Len(t, b.Transactions, 1)
	tx := b.Transactions[0]
	assert.True(t, tx.Amount.Equal(dec("-6000")))
	assert.Equal(t, "Bought Bitcoin using Cash", tx.Name)
	assert.Equal(t, true, tx.Extra[SourceCoinbase].(map[string]any)["pending"])
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("mint", []byte(`{}`), asOf)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = Decode(SourcePlaid, []byte(`{not json`), asOf)
	assert.Error(t, err)
}
