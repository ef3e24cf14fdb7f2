// Package format holds the display primitives shared by notification
// messages and CLI output. All functions are pure.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	dec1K = decimal.NewFromInt(1_000)
	dec1M = decimal.NewFromInt(1_000_000)
	dec1B = decimal.NewFromInt(1_000_000_000)
)

// Trend indicator symbols, keyed to the magnitude of a 24h move.
const (
	TrendStrongUp   = "▲▲"
	TrendUp         = "▲"
	TrendStrongDown = "▼▼"
	TrendDown       = "▼"
	TrendFlat       = "→"
)

// Price renders a USD price: thousands-separated with 2 decimals from $1,000,
// 4 decimals down to $1, and 8 decimals below a dollar.
func Price(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(dec1K):
		return "$" + GroupThousands(v.StringFixed(2))
	case v.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return "$" + v.StringFixed(4)
	default:
		return "$" + v.StringFixed(8)
	}
}

// LargeNumber renders market caps and volumes with a magnitude suffix.
func LargeNumber(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(dec1B):
		return "$" + v.Div(dec1B).StringFixed(2) + "B"
	case v.GreaterThanOrEqual(dec1M):
		return "$" + v.Div(dec1M).StringFixed(2) + "M"
	case v.GreaterThanOrEqual(dec1K):
		return "$" + v.Div(dec1K).StringFixed(2) + "K"
	default:
		return "$" + v.StringFixed(2)
	}
}

// Percentage renders a percentage to 2 decimals. With includeSign, positive
// values gain a leading "+"; negatives already carry their minus.
func Percentage(v decimal.Decimal, includeSign bool) string {
	s := v.StringFixed(2) + "%"
	if includeSign && v.Sign() > 0 {
		return "+" + s
	}
	return s
}

// Trend classifies a 24h percentage change into one of the five indicator
// symbols: strong moves beyond ±5, ordinary moves inside, flat at zero.
func Trend(changePct decimal.Decimal) string {
	five := decimal.NewFromInt(5)
	switch {
	case changePct.GreaterThan(five):
		return TrendStrongUp
	case changePct.Sign() > 0:
		return TrendUp
	case changePct.LessThan(five.Neg()):
		return TrendStrongDown
	case changePct.Sign() < 0:
		return TrendDown
	default:
		return TrendFlat
	}
}

// GroupThousands inserts comma separators into the integer part of a fixed
// decimal string such as "1234567.89".
func GroupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx:]
	}

	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + fracPart
}
