package storage

import (
	"context"
	"fmt"
)

// schemaSQL mirrors migrations/001_create_tables.sql so a fresh database can
// be bootstrapped at startup without external tooling.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS crypto_prices (
    run_ts                      TIMESTAMPTZ NOT NULL,
    coin_id                     TEXT        NOT NULL,
    symbol                      TEXT        NOT NULL,
    current_price               NUMERIC     NOT NULL,
    market_cap                  NUMERIC     NOT NULL DEFAULT 0,
    total_volume                NUMERIC     NOT NULL DEFAULT 0,
    price_change_24h            NUMERIC     NOT NULL DEFAULT 0,
    price_change_percentage_24h NUMERIC     NOT NULL DEFAULT 0,
    last_updated                TIMESTAMPTZ NOT NULL,
    created_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (run_ts, coin_id)
);

CREATE INDEX IF NOT EXISTS idx_crypto_prices_coin_run
    ON crypto_prices (coin_id, run_ts DESC);

CREATE TABLE IF NOT EXISTS price_alerts (
    run_ts        TIMESTAMPTZ NOT NULL,
    coin_id       TEXT        NOT NULL,
    symbol        TEXT        NOT NULL,
    price         NUMERIC     NOT NULL,
    change_pct    NUMERIC     NOT NULL,
    threshold_pct NUMERIC     NOT NULL,
    direction     TEXT        NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (run_ts, coin_id)
);
`

// EnsureSchema creates the tables if they do not exist. Safe to run on every
// startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, schemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}
