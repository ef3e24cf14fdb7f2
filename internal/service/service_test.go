package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-price-alerts/internal/config"
	"crypto-price-alerts/internal/market"
	"crypto-price-alerts/internal/storage"
)

var testRunTS = time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	batches [][]market.RawRecord
	errs    []error
	calls   int
}

func (f *fakeFetcher) FetchPrices(ctx context.Context) ([]market.RawRecord, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.batches) {
		return f.batches[idx], nil
	}
	if len(f.batches) > 0 {
		return f.batches[len(f.batches)-1], nil
	}
	return nil, errors.New("no batch configured")
}

type fakeStore struct {
	upserts  map[string]market.Record
	runTS    time.Time
	calls    int
	upsertEr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserts: make(map[string]market.Record)}
}

func (f *fakeStore) UpsertPrices(ctx context.Context, runTS time.Time, records []market.Record) error {
	f.calls++
	if f.upsertEr != nil {
		return f.upsertEr
	}
	f.runTS = runTS
	for _, rec := range records {
		f.upserts[runTS.Format(time.RFC3339)+"/"+rec.ID] = rec
	}
	return nil
}

func (f *fakeStore) ListLatestPrices(ctx context.Context) ([]storage.PriceRow, error) {
	return nil, nil
}
func (f *fakeStore) ListPriceHistory(ctx context.Context, coinID string, since time.Time) ([]storage.PriceRow, error) {
	return nil, nil
}
func (f *fakeStore) ListAlertHistory(ctx context.Context, since time.Time, thresholdPct decimal.Decimal) ([]storage.PriceRow, error) {
	return nil, nil
}
func (f *fakeStore) TopMovers(ctx context.Context, limit int) ([]storage.PriceRow, error) {
	return nil, nil
}
func (f *fakeStore) Statistics(ctx context.Context) (storage.Stats, error) {
	return storage.Stats{}, nil
}
func (f *fakeStore) ListRuns(ctx context.Context, limit int) ([]storage.RunInfo, error) {
	return nil, nil
}
func (f *fakeStore) CountPrices(ctx context.Context) (int64, error) { return 0, nil }

type fakeAlertStore struct {
	inserted *market.AlertReport
}

func (f *fakeAlertStore) InsertAlerts(ctx context.Context, runTS time.Time, report *market.AlertReport) error {
	f.inserted = report
	return nil
}
func (f *fakeAlertStore) ListRecentAlerts(ctx context.Context, limit int) ([]storage.AlertRow, error) {
	return nil, nil
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, message string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

func decPtr(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func rawRecord(id, symbol, price, changePct string) market.RawRecord {
	return market.RawRecord{
		ID:                id,
		Symbol:            symbol,
		CurrentPrice:      decPtr(price),
		PriceChangePct24h: decPtr(changePct),
		LastUpdated:       "2024-12-01T00:00:00Z",
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Alerting.Enabled = true
	cfg.Alerting.ThresholdPct = 5.0
	cfg.CoinGecko.Retries = 0
	return cfg
}

func TestExecuteRunAlertPath(t *testing.T) {
	pf := &fakeFetcher{batches: [][]market.RawRecord{{
		rawRecord("bitcoin", "btc", "97000.12", "7.5"),
		rawRecord("ethereum", "eth", "3456.78", "1.0"),
		rawRecord("cardano", "ada", "0.91", "-2.0"),
	}}}
	store := newFakeStore()
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), nil, pf, store, alerts, notifier, zerolog.Nop())

	outcome, err := svc.ExecuteRun(context.Background(), testRunTS)
	if err != nil {
		t.Fatalf("execute run: %v", err)
	}
	if outcome.Kind != OutcomeAlert {
		t.Fatalf("expected alert outcome, got %s", outcome.Kind)
	}
	if len(outcome.Report.Entries) != 1 || outcome.Report.Entries[0].CoinID != "bitcoin" {
		t.Fatalf("unexpected report: %+v", outcome.Report)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if !strings.Contains(msg, "BTC") || !strings.Contains(msg, "+7.50%") {
		t.Fatalf("alert message missing fields:\n%s", msg)
	}
	if strings.Contains(msg, "ETH") || strings.Contains(msg, "ADA") {
		t.Fatalf("alert message should omit below-threshold coins:\n%s", msg)
	}
	if alerts.inserted == nil {
		t.Fatal("alert records should be persisted")
	}
	if len(store.upserts) != 3 {
		t.Fatalf("all records should be loaded, got %d", len(store.upserts))
	}
	if !store.runTS.Equal(testRunTS) {
		t.Fatalf("rows should be keyed by the run timestamp, got %v", store.runTS)
	}
}

func TestExecuteRunSummaryPath(t *testing.T) {
	pf := &fakeFetcher{batches: [][]market.RawRecord{{
		rawRecord("bitcoin", "btc", "97000.12", "1.5"),
		rawRecord("ethereum", "eth", "3456.78", "-0.5"),
	}}}
	store := newFakeStore()
	notifier := &fakeNotifier{}

	svc := New(testConfig(), nil, pf, store, &fakeAlertStore{}, notifier, zerolog.Nop())

	outcome, err := svc.ExecuteRun(context.Background(), testRunTS)
	if err != nil {
		t.Fatalf("execute run: %v", err)
	}
	if outcome.Kind != OutcomeSummary {
		t.Fatalf("expected summary outcome, got %s", outcome.Kind)
	}
	if outcome.Report != nil {
		t.Fatalf("summary outcome should carry no report: %+v", outcome.Report)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "Crypto Price Update") {
		t.Fatalf("expected summary notification, got %v", notifier.messages)
	}
}

func TestExecuteRunValidationStopsRun(t *testing.T) {
	bad := rawRecord("bitcoin", "btc", "97000.12", "1.0")
	bad.CurrentPrice = nil
	pf := &fakeFetcher{batches: [][]market.RawRecord{{bad}}}
	store := newFakeStore()
	notifier := &fakeNotifier{}

	svc := New(testConfig(), nil, pf, store, nil, notifier, zerolog.Nop())

	if _, err := svc.ExecuteRun(context.Background(), testRunTS); err == nil {
		t.Fatal("invalid batch should fail the run")
	}
	if store.calls != 0 {
		t.Fatal("nothing should be loaded after validation failure")
	}
	if len(notifier.messages) != 0 {
		t.Fatal("nothing should be notified after validation failure")
	}
	if pf.calls != 1 {
		t.Fatalf("validation failure must not trigger a re-fetch, got %d calls", pf.calls)
	}
}

func TestExecuteRunRetriesFetch(t *testing.T) {
	pf := &fakeFetcher{
		errs: []error{errors.New("timeout"), errors.New("timeout")},
		batches: [][]market.RawRecord{
			nil, nil,
			{rawRecord("bitcoin", "btc", "97000.12", "1.0")},
		},
	}
	cfg := testConfig()
	cfg.CoinGecko.Retries = 3

	svc := New(cfg, nil, pf, newFakeStore(), nil, &fakeNotifier{}, zerolog.Nop())

	if _, err := svc.ExecuteRun(context.Background(), testRunTS); err != nil {
		t.Fatalf("run should succeed after retries: %v", err)
	}
	if pf.calls != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", pf.calls)
	}
}

func TestExecuteRunFetchRetriesExhausted(t *testing.T) {
	pf := &fakeFetcher{errs: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}
	cfg := testConfig()
	cfg.CoinGecko.Retries = 2

	svc := New(cfg, nil, pf, newFakeStore(), nil, &fakeNotifier{}, zerolog.Nop())

	if _, err := svc.ExecuteRun(context.Background(), testRunTS); err == nil {
		t.Fatal("exhausted retries should fail the run")
	}
	if pf.calls != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", pf.calls)
	}
}

func TestExecuteRunNotifyFailureFailsRunAfterLoad(t *testing.T) {
	pf := &fakeFetcher{batches: [][]market.RawRecord{{
		rawRecord("bitcoin", "btc", "97000.12", "1.0"),
	}}}
	store := newFakeStore()
	notifier := &fakeNotifier{err: errors.New("telegram down")}

	svc := New(testConfig(), nil, pf, store, nil, notifier, zerolog.Nop())

	if _, err := svc.ExecuteRun(context.Background(), testRunTS); err == nil {
		t.Fatal("notification failure should fail the run")
	}
	if len(store.upserts) != 1 {
		t.Fatal("load should have happened before the notification failure")
	}
}

func TestExecuteRunIdempotentLoad(t *testing.T) {
	batch := []market.RawRecord{rawRecord("bitcoin", "btc", "97000.12", "1.0")}
	pf := &fakeFetcher{batches: [][]market.RawRecord{batch, batch}}
	store := newFakeStore()

	svc := New(testConfig(), nil, pf, store, nil, &fakeNotifier{}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := svc.ExecuteRun(context.Background(), testRunTS); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(store.upserts) != 1 {
		t.Fatalf("same run timestamp should leave one row per coin, got %d", len(store.upserts))
	}
	if store.calls != 2 {
		t.Fatalf("expected 2 load calls, got %d", store.calls)
	}
}

func TestExecuteRunAlertingDisabled(t *testing.T) {
	pf := &fakeFetcher{batches: [][]market.RawRecord{{
		rawRecord("bitcoin", "btc", "97000.12", "25.0"),
	}}}
	cfg := testConfig()
	cfg.Alerting.Enabled = false

	svc := New(cfg, nil, pf, newFakeStore(), nil, &fakeNotifier{}, zerolog.Nop())

	outcome, err := svc.ExecuteRun(context.Background(), testRunTS)
	if err != nil {
		t.Fatalf("execute run: %v", err)
	}
	if outcome.Kind != OutcomeSummary {
		t.Fatalf("disabled alerting should always summarise, got %s", outcome.Kind)
	}
}
