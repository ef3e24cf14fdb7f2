package market

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is one per-coin row as returned by the upstream markets API.
// Optional numeric fields stay nil when the API omits them.
type RawRecord struct {
	ID                string           `json:"id"`
	Symbol            string           `json:"symbol"`
	CurrentPrice      *decimal.Decimal `json:"current_price"`
	MarketCap         *decimal.Decimal `json:"market_cap"`
	TotalVolume       *decimal.Decimal `json:"total_volume"`
	PriceChange24h    *decimal.Decimal `json:"price_change_24h"`
	PriceChangePct24h *decimal.Decimal `json:"price_change_percentage_24h"`
	LastUpdated       string           `json:"last_updated"`
}

// Record is a normalized observation ready for storage, analysis, and display.
// Optional fields absent upstream are zero, and LastUpdated is UTC.
type Record struct {
	ID                string
	Symbol            string
	CurrentPrice      decimal.Decimal
	MarketCap         decimal.Decimal
	TotalVolume       decimal.Decimal
	PriceChange24h    decimal.Decimal
	PriceChangePct24h decimal.Decimal
	LastUpdated       time.Time
}

// DisplaySymbol returns the symbol in the canonical uppercase form used
// wherever symbols are stored or shown.
func (r Record) DisplaySymbol() string {
	return strings.ToUpper(r.Symbol)
}

// AlertEntry is one coin whose 24h move met the alert threshold.
type AlertEntry struct {
	CoinID    string
	Symbol    string
	Price     decimal.Decimal
	ChangePct decimal.Decimal
	Direction string
}

// AlertReport lists threshold exceedances for one run, ordered by descending
// absolute change percentage. A run with no exceedances has no report.
type AlertReport struct {
	ThresholdPct decimal.Decimal
	Entries      []AlertEntry
}
