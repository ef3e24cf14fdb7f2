package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestCoinGeckoMissingCoinList(t *testing.T) {
	c := NewCoinGecko(CoinGeckoOptions{}, noopLogger())
	if _, err := c.FetchPrices(context.Background()); err == nil {
		t.Fatal("empty coin list should error")
	}
}

func TestCoinGeckoQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("vs_currency") != "usd" {
			t.Fatalf("vs_currency = %q", q.Get("vs_currency"))
		}
		if q.Get("ids") != "bitcoin,ethereum" {
			t.Fatalf("ids = %q", q.Get("ids"))
		}
		if q.Get("price_change_percentage") != "24h" {
			t.Fatalf("price_change_percentage = %q", q.Get("price_change_percentage"))
		}
		if q.Get("sparkline") != "false" {
			t.Fatalf("sparkline = %q", q.Get("sparkline"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{
		BaseURL: srv.URL,
		CoinIDs: []string{"bitcoin", "ethereum"},
		Timeout: time.Second,
	}, noopLogger())

	if _, err := c.FetchPrices(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}

func TestCoinGeckoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"id": "bitcoin",
				"symbol": "btc",
				"current_price": 97000.12,
				"market_cap": 1900000000000,
				"total_volume": 30000000000,
				"price_change_24h": 1200.5,
				"price_change_percentage_24h": 1.25,
				"last_updated": "2024-12-01T00:00:00Z"
			},
			{
				"id": "cardano",
				"symbol": "ada",
				"current_price": 0.91,
				"last_updated": "2024-12-01T00:00:00Z"
			}
		]`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{
		BaseURL: srv.URL,
		CoinIDs: []string{"bitcoin", "cardano"},
		Timeout: time.Second,
	}, noopLogger())

	batch, err := c.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 records, got %d", len(batch))
	}
	if batch[0].ID != "bitcoin" || batch[0].CurrentPrice == nil {
		t.Fatalf("unexpected first record: %+v", batch[0])
	}
	if batch[0].CurrentPrice.String() != "97000.12" {
		t.Fatalf("price = %s", batch[0].CurrentPrice.String())
	}
	if batch[1].MarketCap != nil {
		t.Fatalf("absent market_cap should stay nil, got %v", batch[1].MarketCap)
	}
}

func TestCoinGeckoHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"upstream broke"}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{
		BaseURL: srv.URL,
		CoinIDs: []string{"bitcoin"},
		Timeout: time.Second,
	}, noopLogger())

	if _, err := c.FetchPrices(context.Background()); err == nil {
		t.Fatal("HTTP 500 should return an error")
	}
}

func TestCoinGeckoRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{
		BaseURL: srv.URL,
		CoinIDs: []string{"bitcoin"},
		Timeout: time.Second,
	}, noopLogger())

	if _, err := c.FetchPrices(context.Background()); err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
}
