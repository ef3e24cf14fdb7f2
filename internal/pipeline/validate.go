// Package pipeline implements the pure per-run processing chain:
// validate the fetched batch, normalize it, scan it for alert-worthy moves,
// and compose the outgoing notification text.
package pipeline

import (
	"errors"
	"fmt"

	"crypto-price-alerts/internal/market"
)

// ErrEmptyBatch reports a run that fetched no records at all.
var ErrEmptyBatch = errors.New("pipeline: empty batch")

// Validate checks a fetched batch for required fields and sane values.
// It returns nil when every record is usable, otherwise the first violation
// found; a single bad record fails the whole batch.
func Validate(batch []market.RawRecord) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}

	for i, rec := range batch {
		if rec.ID == "" {
			return fmt.Errorf("record %d: missing id", i)
		}
		if rec.Symbol == "" {
			return fmt.Errorf("record %d (%s): missing symbol", i, rec.ID)
		}
		if rec.LastUpdated == "" {
			return fmt.Errorf("record %d (%s): missing last_updated", i, rec.ID)
		}
		if rec.CurrentPrice == nil {
			return fmt.Errorf("record %d (%s): missing current_price", i, rec.ID)
		}
		if rec.CurrentPrice.Sign() <= 0 {
			return fmt.Errorf("record %d (%s): invalid price %s", i, rec.ID, rec.CurrentPrice.String())
		}
	}

	return nil
}
