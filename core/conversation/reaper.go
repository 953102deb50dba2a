package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobinfo/wabot/core/logger"
)

// Reaper flags conversations stalled past the configured threshold.
// Detection is pull-model: CheckStale runs on every access to a sender's
// record, so no per-session timer exists. An optional cron sweep catches
// senders who never come back.
type Reaper struct {
	store     Store
	threshold time.Duration
	cron      *cron.Cron
}

// NewReaper builds a reaper over the given store.
func NewReaper(store Store, threshold time.Duration) *Reaper {
	return &Reaper{store: store, threshold: threshold}
}

// CheckStale abandons the active flow in place when the record has been idle
// past the threshold. It reports whether the state changed; the caller owns
// persistence.
func (r *Reaper) CheckStale(state *State, now time.Time) bool {
	if !state.StaleSince(r.threshold, now) {
		return false
	}
	state.Abandon(now)
	logger.REAPER.Info("stale flow abandoned",
		slog.String("event", "reaper.lazy"),
		slog.String("sender", state.SenderID),
	)
	return true
}

// Sweep abandons every stale active flow in the store.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.threshold)
	count, err := r.store.MarkAbandoned(ctx, cutoff)
	if err != nil {
		logger.REAPER.Error("sweep failed",
			slog.String("event", "reaper.sweep"),
			slog.String("err", err.Error()),
		)
		return 0, err
	}
	if count > 0 {
		logger.REAPER.Info("sweep complete",
			slog.String("event", "reaper.sweep"),
			slog.Int("abandoned", count),
		)
	}
	return count, nil
}

// StartSweep schedules a periodic sweep with the given cron expression.
// An empty schedule disables the sweep and leaves only lazy detection.
func (r *Reaper) StartSweep(schedule string) error {
	if schedule == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = r.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	c.Start()
	r.cron = c
	logger.REAPER.Info("sweep scheduled",
		slog.String("event", "reaper.schedule"),
		slog.String("spec", schedule),
	)
	return nil
}

// Stop halts the scheduled sweep, if any.
func (r *Reaper) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}
