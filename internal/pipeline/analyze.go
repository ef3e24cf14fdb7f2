package pipeline

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/market"
)

// Analyze scans a normalized batch for coins whose absolute 24h change meets
// the threshold. It returns nil when nothing qualifies; callers treat the
// absence of a report as the no-alert outcome. The input batch is not
// modified. Entries are ordered by descending absolute change percentage,
// stable with respect to batch order.
func Analyze(batch []market.Record, thresholdPct decimal.Decimal) *market.AlertReport {
	var entries []market.AlertEntry

	for _, rec := range batch {
		if rec.PriceChangePct24h.Abs().GreaterThanOrEqual(thresholdPct) {
			entries = append(entries, market.AlertEntry{
				CoinID:    rec.ID,
				Symbol:    strings.ToUpper(rec.Symbol),
				Price:     rec.CurrentPrice,
				ChangePct: rec.PriceChangePct24h,
				Direction: classifyChange(rec.PriceChangePct24h),
			})
		}
	}

	if len(entries) == 0 {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ChangePct.Abs().GreaterThan(entries[j].ChangePct.Abs())
	})

	return &market.AlertReport{ThresholdPct: thresholdPct, Entries: entries}
}

func classifyChange(d decimal.Decimal) string {
	if d.Sign() < 0 {
		return "down"
	}
	return "up"
}
