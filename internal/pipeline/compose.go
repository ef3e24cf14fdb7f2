package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/format"
	"crypto-price-alerts/internal/market"
)

const runTimestampLayout = "02/01/2006 15:04"

// ComposeSummary renders the per-run price summary sent when no coin crossed
// the alert threshold. The timestamp is the run's logical time, not the send
// time. Output is Telegram Markdown.
func ComposeSummary(batch []market.Record, runTS time.Time) string {
	var b strings.Builder

	b.WriteString("*Crypto Price Update*\n")
	fmt.Fprintf(&b, "_%s_\n\n", formatRunTS(runTS))

	totalVolume := decimal.Zero
	for _, rec := range batch {
		fmt.Fprintf(&b, "%s *%s*: %s (%s)\n",
			format.Trend(rec.PriceChangePct24h),
			rec.DisplaySymbol(),
			messagePrice(rec.CurrentPrice),
			format.Percentage(rec.PriceChangePct24h, true),
		)
		totalVolume = totalVolume.Add(rec.TotalVolume)
	}

	fmt.Fprintf(&b, "\n_Total 24h Volume: $%sB_",
		totalVolume.Div(decimal.NewFromInt(1_000_000_000)).StringFixed(2))

	return b.String()
}

// ComposeAlert renders the alert notification for a report produced by
// Analyze, one block per entry in report order.
func ComposeAlert(report *market.AlertReport, runTS time.Time) string {
	var b strings.Builder

	b.WriteString("*CRYPTO ALERT*\n")
	fmt.Fprintf(&b, "_%s_\n", formatRunTS(runTS))
	fmt.Fprintf(&b, "_Threshold: ±%s%%_\n\n", report.ThresholdPct.StringFixed(1))

	for _, entry := range report.Entries {
		fmt.Fprintf(&b, "%s *%s*: %s\n", directionSymbol(entry.Direction), entry.Symbol, messagePrice(entry.Price))
		fmt.Fprintf(&b, "   Change: *%s*\n\n", format.Percentage(entry.ChangePct, true))
	}

	b.WriteString("_Check the market for opportunities._")

	return b.String()
}

// messagePrice is the notification price rule: grouped with 2 decimals from
// $1,000, otherwise 4 decimals. The 8-decimal sub-dollar case belongs to the
// dashboard-side format.Price.
func messagePrice(v decimal.Decimal) string {
	if v.GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		return "$" + format.GroupThousands(v.StringFixed(2))
	}
	return "$" + v.StringFixed(4)
}

func formatRunTS(ts time.Time) string {
	return ts.UTC().Format(runTimestampLayout) + " UTC"
}

func directionSymbol(direction string) string {
	if direction == "down" {
		return format.TrendDown
	}
	return format.TrendUp
}
