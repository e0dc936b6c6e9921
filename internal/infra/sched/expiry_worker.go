package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"signal-billing/internal/domain/ports/repository"
	"signal-billing/internal/infra/metrics"
	"signal-billing/internal/infra/redis"
)

const expiryLockKey = "lock:license_expiry"

// ExpiryWorker flips licenses past end_at to expired. Consumers also check
// expiry lazily; this sweep keeps the table honest for reporting.
type ExpiryWorker struct {
	interval time.Duration
	licenses repository.LicenseRepository
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, licenses repository.LicenseRepository, locker redis.Locker, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		licenses: licenses,
		locker:   locker,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, expiryLockKey, w.interval)
	if err != nil {
		metrics.IncWorkerLock("expiry", false)
		return
	}
	metrics.IncWorkerLock("expiry", true)
	defer func() {
		if err := w.locker.Unlock(ctx, expiryLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("failed to release expiry lock")
		}
	}()

	n, err := w.licenses.ExpireDue(ctx, repository.NoTX, 500)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		metrics.AddLicensesExpired(n)
		w.log.Info().Int("count", n).Msg("licenses expired")
	}
}
