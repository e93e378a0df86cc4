// Package providers converts raw upstream payloads into the records the importer and
// activity detector consume. Each provider has exactly one normalization function.
package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/application/importer"

	"github.com/shopspring/decimal"
)

const (
	SourcePlaid     = "plaid"
	SourceSimpleFIN = "simplefin"
	SourceCoinbase  = "coinbase"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Holding is one normalized position. Input.SecurityID is resolved by the caller from Ticker.
type Holding struct {
	Ticker   string
	Name     string
	Snapshot activity.HoldingSnapshot
	Input    importer.HoldingInput
}

// Trade is one normalized buy or sell. Input.SecurityID is resolved by the caller from Ticker.
type Trade struct {
	Ticker string
	Name   string
	Input  importer.TradeInput
}

// Batch is everything one provider fetch reported for one account.
type Batch struct {
	Source       string
	Holdings     []Holding
	Trades       []Trade
	Transactions []importer.TransactionInput
	Balance      *decimal.Decimal
	CashBalance  *decimal.Decimal
}

// Snapshots returns the holdings as detector input.
func (b Batch) Snapshots() []activity.HoldingSnapshot {
	out := make([]activity.HoldingSnapshot, 0, len(b.Holdings))
	for _, h := range b.Holdings {
		out = append(out, h.Snapshot)
	}
	return out
}

// Decode parses a raw payload for the named provider. asOf dates holdings that carry no date.
func Decode(provider string, raw []byte, asOf time.Time) (Batch, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case SourcePlaid:
		var p PlaidPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return Batch{}, fmt.Errorf("decode plaid payload: %w", err)
		}
		return FromPlaid(p, asOf)
	case SourceSimpleFIN:
		var p SimpleFINAccount
		if err := json.Unmarshal(raw, &p); err != nil {
			return Batch{}, fmt.Errorf("decode simplefin payload: %w", err)
		}
		return FromSimpleFIN(p, asOf)
	case SourceCoinbase:
		var p CoinbasePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return Batch{}, fmt.Errorf("decode coinbase payload: %w", err)
		}
		return FromCoinbase(p, asOf)
	}
	return Batch{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
}

func parseDate(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
