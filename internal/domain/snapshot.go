package domain

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// SnapshotHolding is one element of the account holdings-snapshot cache.
// Numeric values are persisted as decimal strings.
type SnapshotHolding struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Shares      string `json:"shares"`
	CostBasis   string `json:"cost_basis"`
	MarketValue string `json:"market_value"`
}

// EncodeSnapshot renders snapshot rows for the holdings_snapshot column.
func EncodeSnapshot(rows []SnapshotHolding) (datatypes.JSON, error) {
	if rows == nil {
		rows = []SnapshotHolding{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
