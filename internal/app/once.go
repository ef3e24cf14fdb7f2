package app

import (
	"context"
	"time"
)

// Once triggers a single pipeline run at the current aligned run timestamp.
func (a *App) Once(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	if store != nil {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	svc := a.newService(store, nil)

	runTS := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	outcome, err := svc.ExecuteRun(ctx, runTS)
	if err != nil {
		return err
	}

	a.Logger.Info().Time("run_ts", runTS).
		Str("outcome", string(outcome.Kind)).
		Int("records", len(outcome.Records)).
		Msg("manual run complete")
	return nil
}
