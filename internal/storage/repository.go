package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/market"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertPriceSQL = `INSERT INTO crypto_prices (
        run_ts,
        coin_id,
        symbol,
        current_price,
        market_cap,
        total_volume,
        price_change_24h,
        price_change_percentage_24h,
        last_updated
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (run_ts, coin_id) DO UPDATE
    SET
        symbol                      = EXCLUDED.symbol,
        current_price               = EXCLUDED.current_price,
        market_cap                  = EXCLUDED.market_cap,
        total_volume                = EXCLUDED.total_volume,
        price_change_24h            = EXCLUDED.price_change_24h,
        price_change_percentage_24h = EXCLUDED.price_change_percentage_24h,
        last_updated                = EXCLUDED.last_updated;`

	priceColumns = `run_ts,
        coin_id,
        symbol,
        current_price,
        market_cap,
        total_volume,
        price_change_24h,
        price_change_percentage_24h,
        last_updated,
        created_at`

	listLatestPricesSQL = `SELECT DISTINCT ON (coin_id)
        ` + priceColumns + `
    FROM crypto_prices
    ORDER BY coin_id, run_ts DESC;`

	listPriceHistorySQL = `SELECT
        ` + priceColumns + `
    FROM crypto_prices
    WHERE run_ts >= $1
      AND ($2 = '' OR coin_id = $2)
    ORDER BY run_ts;`

	listAlertHistorySQL = `SELECT
        ` + priceColumns + `
    FROM crypto_prices
    WHERE run_ts >= $1
      AND ABS(price_change_percentage_24h) >= $2
    ORDER BY run_ts DESC, ABS(price_change_percentage_24h) DESC;`

	topMoversSQL = `SELECT
        ` + priceColumns + `
    FROM (
        SELECT DISTINCT ON (coin_id)
            ` + priceColumns + `
        FROM crypto_prices
        ORDER BY coin_id, run_ts DESC
    ) latest
    ORDER BY ABS(price_change_percentage_24h) DESC
    LIMIT $1;`

	statisticsSQL = `WITH latest AS (
        SELECT DISTINCT ON (coin_id)
            market_cap,
            total_volume,
            price_change_percentage_24h
        FROM crypto_prices
        ORDER BY coin_id, run_ts DESC
    )
    SELECT
        COUNT(*),
        COALESCE(SUM(market_cap), 0),
        COALESCE(SUM(total_volume), 0),
        COALESCE(AVG(price_change_percentage_24h), 0),
        COALESCE(MAX(price_change_percentage_24h), 0),
        COALESCE(MIN(price_change_percentage_24h), 0)
    FROM latest;`

	listRunsSQL = `SELECT
        run_ts,
        COUNT(DISTINCT coin_id)
    FROM crypto_prices
    GROUP BY run_ts
    ORDER BY run_ts DESC
    LIMIT $1;`

	countPricesSQL = `SELECT COUNT(*) FROM crypto_prices;`

	insertAlertSQL = `INSERT INTO price_alerts (
        run_ts,
        coin_id,
        symbol,
        price,
        change_pct,
        threshold_pct,
        direction
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (run_ts, coin_id) DO UPDATE
    SET symbol        = EXCLUDED.symbol,
        price         = EXCLUDED.price,
        change_pct    = EXCLUDED.change_pct,
        threshold_pct = EXCLUDED.threshold_pct,
        direction     = EXCLUDED.direction;`

	listRecentAlertsSQL = `SELECT
        run_ts,
        coin_id,
        symbol,
        price,
        change_pct,
        threshold_pct,
        direction,
        created_at
    FROM price_alerts
    ORDER BY created_at DESC, ABS(change_pct) DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceStore defines operations for price persistence and dashboard queries.
type PriceStore interface {
	UpsertPrices(ctx context.Context, runTS time.Time, records []market.Record) error
	ListLatestPrices(ctx context.Context) ([]PriceRow, error)
	ListPriceHistory(ctx context.Context, coinID string, since time.Time) ([]PriceRow, error)
	ListAlertHistory(ctx context.Context, since time.Time, thresholdPct decimal.Decimal) ([]PriceRow, error)
	TopMovers(ctx context.Context, limit int) ([]PriceRow, error)
	Statistics(ctx context.Context) (Stats, error)
	ListRuns(ctx context.Context, limit int) ([]RunInfo, error)
	CountPrices(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlerts(ctx context.Context, runTS time.Time, report *market.AlertReport) error
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRow, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to price observations and alert records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertPrices persists one batch under the run timestamp. Re-running with
// the same run timestamp overwrites the existing rows instead of duplicating
// them. Symbols are stored uppercase.
func (s *Store) UpsertPrices(ctx context.Context, runTS time.Time, records []market.Record) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertPriceSQL,
			runTS,
			rec.ID,
			rec.DisplaySymbol(),
			rec.CurrentPrice.String(),
			rec.MarketCap.String(),
			rec.TotalVolume.String(),
			rec.PriceChange24h.String(),
			rec.PriceChangePct24h.String(),
			rec.LastUpdated,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert price batch: %w", execErr)
		}
	}
	return nil
}

// ListLatestPrices returns the most recent observation per coin.
func (s *Store) ListLatestPrices(ctx context.Context) ([]PriceRow, error) {
	return s.queryPrices(ctx, listLatestPricesSQL)
}

// ListPriceHistory returns observations since a cutoff, oldest first. An
// empty coinID selects every coin.
func (s *Store) ListPriceHistory(ctx context.Context, coinID string, since time.Time) ([]PriceRow, error) {
	return s.queryPrices(ctx, listPriceHistorySQL, since, strings.TrimSpace(coinID))
}

// ListAlertHistory returns stored observations whose absolute percentage
// change met the threshold, newest first.
func (s *Store) ListAlertHistory(ctx context.Context, since time.Time, thresholdPct decimal.Decimal) ([]PriceRow, error) {
	return s.queryPrices(ctx, listAlertHistorySQL, since, thresholdPct.String())
}

// TopMovers returns the latest observations ranked by absolute change.
func (s *Store) TopMovers(ctx context.Context, limit int) ([]PriceRow, error) {
	return s.queryPrices(ctx, topMoversSQL, limit)
}

func (s *Store) queryPrices(ctx context.Context, sql string, args ...any) ([]PriceRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sql, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query prices: %w", queryErr)
	}
	defer rows.Close()

	prices := make([]PriceRow, 0)
	for rows.Next() {
		row, scanErr := scanPriceRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		prices = append(prices, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return prices, nil
}

// Statistics aggregates the latest observation per coin.
func (s *Store) Statistics(ctx context.Context) (Stats, error) {
	pool, err := s.getPool()
	if err != nil {
		return Stats{}, err
	}

	var (
		stats     Stats
		marketCap string
		volume    string
		avg       string
		maxGain   string
		maxLoss   string
	)
	if scanErr := pool.QueryRow(ctx, statisticsSQL).Scan(
		&stats.TotalCoins,
		&marketCap,
		&volume,
		&avg,
		&maxGain,
		&maxLoss,
	); scanErr != nil {
		return Stats{}, fmt.Errorf("query statistics: %w", scanErr)
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&stats.TotalMarketCap, marketCap},
		{&stats.TotalVolume24h, volume},
		{&stats.AvgChange24h, avg},
		{&stats.MaxGain24h, maxGain},
		{&stats.MaxLoss24h, maxLoss},
	}
	for _, f := range fields {
		d, convErr := decimal.NewFromString(f.src)
		if convErr != nil {
			return Stats{}, fmt.Errorf("parse statistics value: %w", convErr)
		}
		*f.dst = d
	}

	return stats, nil
}

// ListRuns lists recent pipeline runs present in storage, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunInfo, 0, limit)
	for rows.Next() {
		var run RunInfo
		if err := rows.Scan(&run.RunTS, &run.CoinsProcessed); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// CountPrices counts stored observations.
func (s *Store) CountPrices(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countPricesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count prices: %w", scanErr)
	}
	return count, nil
}

// InsertAlerts persists every entry of an alert report under the run
// timestamp, idempotently.
func (s *Store) InsertAlerts(ctx context.Context, runTS time.Time, report *market.AlertReport) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if report == nil || len(report.Entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range report.Entries {
		batch.Queue(insertAlertSQL,
			runTS,
			entry.CoinID,
			entry.Symbol,
			entry.Price.String(),
			entry.ChangePct.String(),
			report.ThresholdPct.String(),
			entry.Direction,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range report.Entries {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("insert alert batch: %w", execErr)
		}
	}
	return nil
}

// ListRecentAlerts lists most recently emitted alert records.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRow, 0, limit)
	for rows.Next() {
		var (
			rec          AlertRow
			priceStr     string
			changeStr    string
			thresholdStr string
		)
		if err := rows.Scan(
			&rec.RunTS,
			&rec.CoinID,
			&rec.Symbol,
			&priceStr,
			&changeStr,
			&thresholdStr,
			&rec.Direction,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		if rec.Price, convErr = decimal.NewFromString(priceStr); convErr != nil {
			return nil, fmt.Errorf("parse alert price: %w", convErr)
		}
		if rec.ChangePct, convErr = decimal.NewFromString(changeStr); convErr != nil {
			return nil, fmt.Errorf("parse alert change pct: %w", convErr)
		}
		if rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr); convErr != nil {
			return nil, fmt.Errorf("parse alert threshold pct: %w", convErr)
		}

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanPriceRow(rows pgx.Rows) (PriceRow, error) {
	var (
		row       PriceRow
		price     string
		marketCap string
		volume    string
		change    string
		changePct string
	)

	if err := rows.Scan(
		&row.RunTS,
		&row.CoinID,
		&row.Symbol,
		&price,
		&marketCap,
		&volume,
		&change,
		&changePct,
		&row.LastUpdated,
		&row.CreatedAt,
	); err != nil {
		return PriceRow{}, err
	}

	fields := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&row.CurrentPrice, price, "current_price"},
		{&row.MarketCap, marketCap, "market_cap"},
		{&row.TotalVolume, volume, "total_volume"},
		{&row.PriceChange24h, change, "price_change_24h"},
		{&row.PriceChangePct24h, changePct, "price_change_percentage_24h"},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return PriceRow{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = d
	}

	return row, nil
}
