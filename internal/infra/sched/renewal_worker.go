package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"signal-billing/internal/infra/metrics"
	"signal-billing/internal/infra/redis"
	"signal-billing/internal/usecase"
)

const renewalLockKey = "lock:renewal_sweep"

// RenewalWorker drives the auto-renew billing schedule. Each tick takes the
// distributed lock so only one instance sweeps; rescheduling happens through
// next_billing_at rows, so a missed tick is caught up on the next one.
type RenewalWorker struct {
	interval  time.Duration
	batchSize int
	renewUC   usecase.AutoRenewUseCase
	locker    redis.Locker
	log       *zerolog.Logger
}

func NewRenewalWorker(interval time.Duration, batchSize int, renewUC usecase.AutoRenewUseCase, locker redis.Locker, logger *zerolog.Logger) *RenewalWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	compLog := logger.With().Str("component", "RenewalWorker").Logger()
	return &RenewalWorker{
		interval:  interval,
		batchSize: batchSize,
		renewUC:   renewUC,
		locker:    locker,
		log:       &compLog,
	}
}

func (w *RenewalWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting renewal worker")
	// Run once on startup, then on every tick
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping renewal worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RenewalWorker) sweep(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, renewalLockKey, 2*w.interval)
	if err != nil {
		metrics.IncWorkerLock("renewal", false)
		w.log.Debug().Msg("renewal sweep held elsewhere")
		return
	}
	metrics.IncWorkerLock("renewal", true)
	defer func() {
		if err := w.locker.Unlock(ctx, renewalLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("failed to release renewal lock")
		}
	}()

	stats, err := w.renewUC.RunDue(ctx, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("renewal sweep failed")
		return
	}
	if stats.Due > 0 {
		w.log.Info().
			Int("due", stats.Due).
			Int("renewed", stats.Renewed).
			Int("cancelled", stats.Cancelled).
			Int("suspended", stats.Suspended).
			Msg("renewal sweep done")
	}
}
