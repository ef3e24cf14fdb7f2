package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"crypto-price-alerts/internal/format"
	"crypto-price-alerts/internal/storage"
)

// Show prints the latest observation per coin.
func (a *App) Show(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show prices")
	}
	if closeStore != nil {
		defer closeStore()
	}

	rows, err := store.ListLatestPrices(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no prices found")
		return nil
	}

	printPriceRows(rows)
	return nil
}

// Movers prints the latest observations ranked by absolute 24h change.
func (a *App) Movers(ctx context.Context, limit int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show movers")
	}
	if closeStore != nil {
		defer closeStore()
	}

	rows, err := store.TopMovers(ctx, limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no prices found")
		return nil
	}

	printPriceRows(rows)
	return nil
}

// Alerts prints alert history: either observations whose stored change met
// the configured threshold, or, with Audit, the emitted alert records.
func (a *App) Alerts(ctx context.Context, opts AlertsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Audit {
		alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Fprintln(os.Stdout, "no alerts found")
			return nil
		}
		printAlertRows(alerts)
		return nil
	}

	since := time.Now().UTC().Add(-time.Duration(opts.Hours) * time.Hour)
	threshold := thresholdDecimal(a.Config.Alerting.ThresholdPct)
	rows, err := store.ListAlertHistory(ctx, since, threshold)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	printPriceRows(rows)
	return nil
}

// Stats prints aggregate statistics and the recent run log.
func (a *App) Stats(ctx context.Context, runLimit int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show statistics")
	}
	if closeStore != nil {
		defer closeStore()
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		return err
	}
	total, err := store.CountPrices(ctx)
	if err != nil {
		return err
	}
	runs, err := store.ListRuns(ctx, runLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Coins tracked:      %d\n", stats.TotalCoins)
	fmt.Fprintf(os.Stdout, "Rows stored:        %d\n", total)
	fmt.Fprintf(os.Stdout, "Total market cap:   %s\n", format.LargeNumber(stats.TotalMarketCap))
	fmt.Fprintf(os.Stdout, "Total 24h volume:   %s\n", format.LargeNumber(stats.TotalVolume24h))
	fmt.Fprintf(os.Stdout, "Average 24h change: %s\n", format.Percentage(stats.AvgChange24h, true))
	fmt.Fprintf(os.Stdout, "Best 24h change:    %s\n", format.Percentage(stats.MaxGain24h, true))
	fmt.Fprintf(os.Stdout, "Worst 24h change:   %s\n", format.Percentage(stats.MaxLoss24h, true))

	if len(runs) > 0 {
		fmt.Fprintln(os.Stdout)
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Run (UTC)\tCoins")
		for _, run := range runs {
			fmt.Fprintf(writer, "%s\t%d\n", run.RunTS.UTC().Format(time.RFC3339), run.CoinsProcessed)
		}
		writer.Flush()
	}

	return nil
}

func printPriceRows(rows []storage.PriceRow) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Run (UTC)\tCoin\tSymbol\tPrice\t24h %\tMarket Cap\tVolume")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s %s\t%s\t%s\n",
			row.RunTS.UTC().Format(time.RFC3339),
			row.CoinID,
			row.Symbol,
			format.Price(row.CurrentPrice),
			format.Trend(row.PriceChangePct24h),
			format.Percentage(row.PriceChangePct24h, true),
			format.LargeNumber(row.MarketCap),
			format.LargeNumber(row.TotalVolume),
		)
	}

	writer.Flush()
}

func printAlertRows(alerts []storage.AlertRow) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Run (UTC)\tCoin\tSymbol\tPrice\tChange\tThreshold\tDirection")

	for _, rec := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.RunTS.UTC().Format(time.RFC3339),
			rec.CoinID,
			rec.Symbol,
			format.Price(rec.Price),
			format.Percentage(rec.ChangePct, true),
			format.Percentage(rec.ThresholdPct, false),
			rec.Direction,
		)
	}

	writer.Flush()
}
