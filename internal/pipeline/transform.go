package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/market"
)

// bareTimestampLayout covers ISO 8601 text with no UTC offset at all,
// which is read as UTC.
const bareTimestampLayout = "2006-01-02T15:04:05"

// Transform normalizes a validated batch one-to-one, preserving order.
// Optional numeric fields absent upstream become zero, and last_updated is
// parsed into a UTC timestamp. A timestamp that fails to parse aborts the
// whole batch, since it signals malformed upstream data.
func Transform(batch []market.RawRecord) ([]market.Record, error) {
	out := make([]market.Record, 0, len(batch))

	for _, rec := range batch {
		ts, err := parseTimestamp(rec.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", rec.ID, err)
		}

		out = append(out, market.Record{
			ID:                rec.ID,
			Symbol:            rec.Symbol,
			CurrentPrice:      deref(rec.CurrentPrice),
			MarketCap:         deref(rec.MarketCap),
			TotalVolume:       deref(rec.TotalVolume),
			PriceChange24h:    deref(rec.PriceChange24h),
			PriceChangePct24h: deref(rec.PriceChangePct24h),
			LastUpdated:       ts.UTC(),
		})
	}

	return out, nil
}

// parseTimestamp accepts ISO 8601 text; a trailing "Z" is treated as the
// UTC offset "+00:00" before parsing.
func parseTimestamp(s string) (time.Time, error) {
	normalized := strings.Replace(s, "Z", "+00:00", 1)
	if ts, err := time.Parse(time.RFC3339, normalized); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(bareTimestampLayout, normalized, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last_updated %q: %w", s, err)
	}
	return ts, nil
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
