package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRow is one persisted per-coin observation, keyed by (run_ts, coin_id).
type PriceRow struct {
	RunTS             time.Time
	CoinID            string
	Symbol            string
	CurrentPrice      decimal.Decimal
	MarketCap         decimal.Decimal
	TotalVolume       decimal.Decimal
	PriceChange24h    decimal.Decimal
	PriceChangePct24h decimal.Decimal
	LastUpdated       time.Time
	CreatedAt         time.Time
}

// AlertRow captures an emitted alert entry for auditing.
type AlertRow struct {
	RunTS        time.Time
	CoinID       string
	Symbol       string
	Price        decimal.Decimal
	ChangePct    decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	CreatedAt    time.Time
}

// RunInfo summarises one pipeline run present in storage.
type RunInfo struct {
	RunTS          time.Time
	CoinsProcessed int64
}

// Stats aggregates the latest observation per coin.
type Stats struct {
	TotalCoins     int64
	TotalMarketCap decimal.Decimal
	TotalVolume24h decimal.Decimal
	AvgChange24h   decimal.Decimal
	MaxGain24h     decimal.Decimal
	MaxLoss24h     decimal.Decimal
}
