package pipeline

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/market"
)

func decPtr(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func validRaw(id, symbol, price string) market.RawRecord {
	return market.RawRecord{
		ID:           id,
		Symbol:       symbol,
		CurrentPrice: decPtr(price),
		LastUpdated:  "2024-12-01T00:00:00Z",
	}
}

func TestValidateAcceptsCompleteBatch(t *testing.T) {
	batch := []market.RawRecord{
		validRaw("bitcoin", "btc", "97000.12"),
		validRaw("ethereum", "eth", "3456.78"),
		validRaw("dogecoin", "doge", "0.31"),
	}

	if err := Validate(batch); err != nil {
		t.Fatalf("complete batch should validate: %v", err)
	}
}

func TestValidateEmptyBatch(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if err := Validate([]market.RawRecord{}); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch for empty slice, got %v", err)
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	mutations := map[string]func(*market.RawRecord){
		"id":            func(r *market.RawRecord) { r.ID = "" },
		"symbol":        func(r *market.RawRecord) { r.Symbol = "" },
		"current_price": func(r *market.RawRecord) { r.CurrentPrice = nil },
		"last_updated":  func(r *market.RawRecord) { r.LastUpdated = "" },
	}

	for field, mutate := range mutations {
		batch := []market.RawRecord{
			validRaw("bitcoin", "btc", "97000.12"),
			validRaw("ethereum", "eth", "3456.78"),
		}
		mutate(&batch[1])

		if err := Validate(batch); err == nil {
			t.Fatalf("batch missing %s should fail validation", field)
		}
	}
}

func TestValidateNonPositivePrice(t *testing.T) {
	for _, price := range []string{"0", "-1.5"} {
		batch := []market.RawRecord{validRaw("bitcoin", "btc", price)}
		if err := Validate(batch); err == nil {
			t.Fatalf("price %s should fail validation", price)
		}
	}
}
