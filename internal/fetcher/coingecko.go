package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crypto-price-alerts/internal/market"
)

const marketsPath = "/coins/markets"

// CoinGeckoOptions parameterise the markets fetcher.
type CoinGeckoOptions struct {
	BaseURL    string
	CoinIDs    []string
	VsCurrency string
	Timeout    time.Duration
	UserAgent  string
}

// CoinGecko fetches market snapshots from the CoinGecko REST API.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a markets fetcher.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPrices retrieves one row per configured coin, ordered by market cap.
func (c *CoinGecko) FetchPrices(ctx context.Context) ([]market.RawRecord, error) {
	if len(c.opts.CoinIDs) == 0 {
		return nil, errors.New("coin id list required")
	}

	vsCurrency := c.opts.VsCurrency
	if vsCurrency == "" {
		vsCurrency = "usd"
	}

	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("ids", strings.Join(c.opts.CoinIDs, ","))
	params.Set("order", "market_cap_desc")
	params.Set("per_page", "100")
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")

	endpoint := c.baseURL + marketsPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "cryptowatcher/1.0")
	}

	c.logger.Debug().Int("coins", len(c.opts.CoinIDs)).Msg("fetching market snapshot")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var batch []market.RawRecord
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, fmt.Errorf("decode markets response: %w", err)
	}

	c.logger.Debug().Int("records", len(batch)).Msg("market snapshot fetched")
	return batch, nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func parseHTTPError(status int, payload []byte) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("coingecko rate limited (%d)", status)
	}

	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error != "" {
			return fmt.Errorf("coingecko api error (%d): %s", status, apiErr.Error)
		}
		if apiErr.Status.ErrorMessage != "" {
			return fmt.Errorf("coingecko api error (%d): %s", status, apiErr.Status.ErrorMessage)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("coingecko api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("coingecko api error (%d)", status)
}

var _ PriceFetcher = (*CoinGecko)(nil)
