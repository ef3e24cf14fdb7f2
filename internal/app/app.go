package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/alerting"
	"crypto-price-alerts/internal/config"
	"crypto-price-alerts/internal/fetcher"
	"crypto-price-alerts/internal/scheduler"
	"crypto-price-alerts/internal/service"
	"crypto-price-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.PriceFetcher {
	return fetcher.NewCoinGecko(fetcher.CoinGeckoOptions{
		BaseURL:    a.Config.CoinGecko.BaseURL,
		CoinIDs:    a.Config.CoinGecko.CoinIDs,
		VsCurrency: a.Config.CoinGecko.VsCurrency,
		Timeout:    a.Config.CoinGecko.RequestTimeout,
		UserAgent:  a.Config.CoinGecko.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store, sched *scheduler.Scheduler) *service.Service {
	var priceStore storage.PriceStore
	var alertStore storage.AlertStore
	if store != nil {
		priceStore = store
		alertStore = store
	}
	return service.New(a.Config, sched, a.newFetcher(), priceStore, alertStore, a.newNotifier(), a.Logger)
}

// Run executes the long-running pipeline service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	} else if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, sched)

	a.Logger.Info().Msg("starting pipeline service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("pipeline service stopped")
	return nil
}

func thresholdDecimal(pct float64) decimal.Decimal {
	return decimal.NewFromFloat(pct)
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	CoinID    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// AlertsOptions configure the alerts command.
type AlertsOptions struct {
	Hours int
	Audit bool
	Limit int
}
