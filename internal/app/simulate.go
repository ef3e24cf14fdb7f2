package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/fetcher"
	"crypto-price-alerts/internal/market"
	"crypto-price-alerts/internal/service"
)

// SimulateAlert drives a single run through a synthetic batch whose 24h
// change is the given percentage, exercising the full alert path without
// touching the database.
func (a *App) SimulateAlert(ctx context.Context, changePct decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	price := decimal.NewFromInt(50_000)
	pf := &staticFetcher{batch: []market.RawRecord{
		{
			ID:                "bitcoin",
			Symbol:            "btc",
			CurrentPrice:      &price,
			PriceChangePct24h: &changePct,
			LastUpdated:       time.Now().UTC().Format(time.RFC3339),
		},
	}}

	svc := service.New(a.Config, nil, pf, nil, nil, notifier, a.Logger)

	runTS := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	outcome, err := svc.ExecuteRun(ctx, runTS)
	if err != nil {
		return err
	}

	a.Logger.Info().Str("outcome", string(outcome.Kind)).Msg("simulated run complete")
	return nil
}

type staticFetcher struct {
	batch []market.RawRecord
}

func (s *staticFetcher) FetchPrices(ctx context.Context) ([]market.RawRecord, error) {
	return s.batch, nil
}

var _ fetcher.PriceFetcher = (*staticFetcher)(nil)
