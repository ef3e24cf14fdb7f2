package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/alerting"
	"crypto-price-alerts/internal/config"
	"crypto-price-alerts/internal/fetcher"
	"crypto-price-alerts/internal/market"
	"crypto-price-alerts/internal/pipeline"
	"crypto-price-alerts/internal/scheduler"
	"crypto-price-alerts/internal/storage"
)

// OutcomeKind distinguishes the two ways a run can end.
type OutcomeKind string

const (
	// OutcomeAlert means at least one coin crossed the threshold.
	OutcomeAlert OutcomeKind = "alert"
	// OutcomeSummary means no coin crossed the threshold.
	OutcomeSummary OutcomeKind = "summary"
)

// Outcome is the result of one completed run. Report is nil for a summary
// outcome; Message is the notification text that was (or would be) sent.
type Outcome struct {
	Kind    OutcomeKind
	Records []market.Record
	Report  *market.AlertReport
	Message string
}

// Service orchestrates fetching, validation, persistence, analysis, and
// notification for each run.
type Service struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.PriceFetcher
	store     storage.PriceStore
	alerts    storage.AlertStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	threshold  decimal.Decimal
	alertsOn   bool
	retries    int
	retryDelay time.Duration
	locker     storage.AdvisoryLocker
	lockKey    int64
}

// New constructs the pipeline service.
func New(cfg *config.Config, sched *scheduler.Scheduler, pf fetcher.PriceFetcher, store storage.PriceStore, alerts storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		fetcher:    pf,
		store:      store,
		alerts:     alerts,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		threshold:  decimal.NewFromFloat(cfg.Alerting.ThresholdPct),
		alertsOn:   cfg.Alerting.Enabled,
		retries:    cfg.CoinGecko.Retries,
		retryDelay: cfg.CoinGecko.RetryDelay,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned run loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessRun)
}

// ProcessRun executes one run under the advisory lock guard.
func (s *Service) ProcessRun(ctx context.Context, runTS time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("run_ts", runTS).Msg("skip run because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.ExecuteRun(ctx, runTS)
	return err
}

// ExecuteRun drives one batch end to end: fetch with bounded retry, validate,
// transform, load, analyze, compose, notify. A run either fully succeeds or
// fails as a whole; there is no per-record recovery.
func (s *Service) ExecuteRun(ctx context.Context, runTS time.Time) (Outcome, error) {
	batch, err := s.fetchWithRetry(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch prices: %w", err)
	}

	// Bad data is bad data on every retry, so validation and transform
	// failures stop the run without re-fetching.
	if err := pipeline.Validate(batch); err != nil {
		s.logger.Error().Err(err).Time("run_ts", runTS).Msg("batch failed validation")
		return Outcome{}, fmt.Errorf("validate batch: %w", err)
	}

	records, err := pipeline.Transform(batch)
	if err != nil {
		s.logger.Error().Err(err).Time("run_ts", runTS).Msg("batch failed transform")
		return Outcome{}, fmt.Errorf("transform batch: %w", err)
	}

	// Load precedes notification; a notification failure must not undo
	// persisted rows.
	if s.store != nil {
		if err := s.store.UpsertPrices(ctx, runTS, records); err != nil {
			return Outcome{}, fmt.Errorf("load prices: %w", err)
		}
	}

	outcome := Outcome{Kind: OutcomeSummary, Records: records}
	if s.alertsOn {
		outcome.Report = pipeline.Analyze(records, s.threshold)
	}

	if outcome.Report != nil {
		outcome.Kind = OutcomeAlert
		outcome.Message = pipeline.ComposeAlert(outcome.Report, runTS)

		if s.alerts != nil {
			if err := s.alerts.InsertAlerts(ctx, runTS, outcome.Report); err != nil {
				s.logger.Error().Err(err).Time("run_ts", runTS).Msg("failed to persist alert records")
			}
		}
	} else {
		outcome.Message = pipeline.ComposeSummary(records, runTS)
	}

	s.logger.Info().Time("run_ts", runTS).
		Int("records", len(records)).
		Str("outcome", string(outcome.Kind)).
		Msg("run processed")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, outcome.Message); err != nil {
			return Outcome{}, fmt.Errorf("send notification: %w", err)
		}
	}

	return outcome, nil
}

func (s *Service) fetchWithRetry(ctx context.Context) ([]market.RawRecord, error) {
	attempts := s.retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		batch, err := s.fetcher.FetchPrices(ctx)
		if err == nil {
			return batch, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("fetch failed, retrying")

		if s.retryDelay > 0 {
			timer := time.NewTimer(s.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, fmt.Errorf("after %d attempt(s): %w", attempts, lastErr)
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
