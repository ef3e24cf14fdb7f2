package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"crypto-price-alerts/internal/storage"
)

// Export renders stored price history as CSV and/or a PNG chart. The PNG
// chart covers a single coin; CSV may cover all.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.PNGPath != "" && opts.CoinID == "" {
		return errors.New("--coin is required when exporting a PNG chart")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	rows, err := store.ListPriceHistory(ctx, opts.CoinID, from)
	if err != nil {
		return err
	}

	filtered := rows[:0]
	for _, row := range rows {
		if row.RunTS.Before(to) {
			filtered = append(filtered, row)
		}
	}
	rows = filtered

	if len(rows) == 0 {
		a.Logger.Info().Msg("no price history found for export window")
		return nil
	}

	downsampled := downsampleRows(rows, opts.MaxPoints)
	a.Logger.Info().Int("total", len(rows)).Int("exported", len(downsampled)).Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writePricesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePricesPNG(opts.PNGPath, opts.CoinID, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRows(rows []storage.PriceRow, max int) []storage.PriceRow {
	if max <= 0 || len(rows) <= max {
		return rows
	}

	result := make([]storage.PriceRow, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writePricesCSV(path string, rows []storage.PriceRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"run_ts", "coin_id", "symbol", "current_price", "market_cap", "total_volume", "price_change_24h", "price_change_percentage_24h", "last_updated"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.RunTS.Format(time.RFC3339),
			row.CoinID,
			row.Symbol,
			row.CurrentPrice.String(),
			row.MarketCap.String(),
			row.TotalVolume.String(),
			row.PriceChange24h.String(),
			row.PriceChangePct24h.String(),
			row.LastUpdated.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePricesPNG(path, coinID string, rows []storage.PriceRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(rows))
	price := make([]float64, len(rows))
	changePct := make([]float64, len(rows))

	for i, row := range rows {
		x[i] = row.RunTS
		price[i] = row.CurrentPrice.InexactFloat64()
		changePct[i] = row.PriceChangePct24h.InexactFloat64()
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (" + coinID + ", USD)",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "24h Change (%)",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: price,
			},
			chart.TimeSeries{
				Name:    "24h Change %",
				XValues: x,
				YValues: changePct,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
