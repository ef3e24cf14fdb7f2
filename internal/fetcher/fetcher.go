package fetcher

import (
	"context"

	"crypto-price-alerts/internal/market"
)

// PriceFetcher retrieves the current per-coin market snapshot for one run.
type PriceFetcher interface {
	FetchPrices(ctx context.Context) ([]market.RawRecord, error)
}
