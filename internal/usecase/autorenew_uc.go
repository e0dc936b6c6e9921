package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/adapter"
	"signal-billing/internal/domain/ports/repository"
	"signal-billing/internal/infra/metrics"
)

var (
	_ AutoRenewUseCase  = (*autoRenewUC)(nil)
	_ AutoRenewEnroller = (*autoRenewUC)(nil)
)

// RunStats summarizes one scheduler sweep over due subscriptions.
type RunStats struct {
	Due       int
	Renewed   int
	Skipped   int
	Failed    int
	Cancelled int
	Suspended int
}

// AutoRenewUseCase drives the recurring billing schedule. RunDue is the
// scheduler entry point; the rest are owner and operator controls.
type AutoRenewUseCase interface {
	AutoRenewEnroller

	// RunDue bills every active subscription whose next_billing_at has
	// passed, each in its own transaction under a row lock.
	RunDue(ctx context.Context, limit int) (*RunStats, error)
	Pause(ctx context.Context, ownerID, subscriptionID string) error
	Resume(ctx context.Context, ownerID, subscriptionID string) error
	Cancel(ctx context.Context, ownerID, subscriptionID string) error
	List(ctx context.Context, ownerID string) ([]*model.AutoRenewSubscription, error)
	Attempts(ctx context.Context, ownerID, subscriptionID string, limit int) ([]*model.AutoRenewAttempt, error)
}

type autoRenewUC struct {
	subs     repository.SubscriptionRepository
	licenses repository.LicenseRepository
	wallets  WalletUseCase
	orders   OrderUseCase
	notifier adapter.Notifier
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewAutoRenewUseCase(subs repository.SubscriptionRepository, licenses repository.LicenseRepository, wallets WalletUseCase, orders OrderUseCase, notifier adapter.Notifier, tm repository.TransactionManager, logger *zerolog.Logger) *autoRenewUC {
	l := logger.With().Str("component", "AutoRenewUC").Logger()
	return &autoRenewUC{subs: subs, licenses: licenses, wallets: wallets, orders: orders, notifier: notifier, tm: tm, log: &l}
}

// SyncPendingFromOrder creates a pending subscription for each order item
// flagged for auto-renew, skipping subjects that already have a live one.
// Runs when the order is created, before payment.
func (u *autoRenewUC) SyncPendingFromOrder(ctx context.Context, tx repository.Tx, o *model.Order) error {
	for _, item := range o.Items {
		if !item.AutoRenew || item.LicenseDays == nil {
			continue
		}
		_, err := u.subs.FindLiveByOwnerAndSubject(ctx, tx, o.OwnerID, item.SubjectID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		cycle := *item.LicenseDays
		if item.CycleDaysOverride != nil {
			cycle = *item.CycleDaysOverride
		}
		price := item.Price
		if item.AutoRenewPrice != nil {
			price = *item.AutoRenewPrice
		}
		sub, err := model.NewAutoRenewSubscription(uuid.NewString(), o.OwnerID, item.SubjectID, cycle, price, model.MethodWallet)
		if err != nil {
			return err
		}
		sub.LastOrderID = &o.ID
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
	}
	return nil
}

// ActivateForOrder flips the owner's pending subscriptions for the paid
// order's subjects to active and anchors next_billing_at at the license end
// plus the grace period. Lifetime items never activate a schedule.
func (u *autoRenewUC) ActivateForOrder(ctx context.Context, tx repository.Tx, o *model.Order) error {
	for _, item := range o.Items {
		if !item.AutoRenew || item.LicenseDays == nil {
			continue
		}
		sub, err := u.subs.FindLiveByOwnerAndSubject(ctx, tx, o.OwnerID, item.SubjectID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		if sub.Status != model.AutoRenewStatusPendingActivation {
			continue
		}

		lic, err := u.licenses.FindActiveByOwnerAndSubject(ctx, tx, o.OwnerID, item.SubjectID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if lic == nil || lic.EndAt == nil {
			continue
		}

		next := lic.EndAt.Add(time.Duration(sub.GracePeriodHours) * time.Hour)
		sub.Status = model.AutoRenewStatusActive
		sub.NextBillingAt = &next
		sub.CurrentLicenseID = &lic.ID
		sub.LastOrderID = &o.ID
		sub.UpdatedAt = time.Now()
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		u.log.Info().
			Str("subscription_id", sub.ID).
			Int64("subject_id", sub.SubjectID).
			Time("next_billing_at", next).
			Msg("auto-renew activated")
	}
	return nil
}

func (u *autoRenewUC) RunDue(ctx context.Context, limit int) (*RunStats, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := u.subs.ListDue(ctx, repository.NoTX, time.Now(), limit)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{Due: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := u.billOne(ctx, id, stats); err != nil {
			// One broken subscription must not stall the whole sweep.
			u.log.Error().Err(err).Str("subscription_id", id).Msg("billing run failed")
			stats.Failed++
		}
	}
	metrics.ObserveRenewalRun(stats.Due, stats.Renewed, stats.Failed)
	if stats.Due > 0 {
		u.log.Info().
			Int("due", stats.Due).
			Int("renewed", stats.Renewed).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Int("cancelled", stats.Cancelled).
			Int("suspended", stats.Suspended).
			Msg("renewal sweep finished")
	}
	return stats, nil
}

// billOne processes a single subscription in its own transaction. The row
// lock from FindByID serializes concurrent scheduler instances; a second
// runner sees the pushed next_billing_at and moves on.
func (u *autoRenewUC) billOne(ctx context.Context, id string, stats *RunStats) error {
	var events []adapter.Event
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		now := time.Now()
		if sub.Status != model.AutoRenewStatusActive || sub.NextBillingAt == nil || sub.NextBillingAt.After(now) {
			return nil
		}
		sub.LastAttemptAt = &now

		if sub.PaymentMethod != model.MethodWallet {
			// Only wallet billing is chargeable unattended. A skip is a policy
			// limit, not a failure: push the schedule by the retry interval,
			// record the skipped attempt, leave the failure counter alone.
			next := now.Add(sub.RetryInterval())
			sub.NextBillingAt = &next
			sub.UpdatedAt = now
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			stats.Skipped++
			return u.recordAttempt(ctx, tx, sub, model.AttemptStatusSkipped, "unsupported payment method", nil, nil, nil)
		}

		wallet, err := u.wallets.Get(ctx, sub.OwnerID, DefaultCurrency)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		var balance int64
		if wallet != nil {
			balance = wallet.Balance
		}

		if wallet == nil || balance < sub.Price {
			// Insufficient funds cancels outright rather than retrying, so a
			// drained wallet is not charged the moment it is topped up weeks
			// later.
			sub.Status = model.AutoRenewStatusCancelled
			sub.NextBillingAt = nil
			sub.ConsecutiveFailures++
			sub.UpdatedAt = now
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			if err := u.licenses.DetachSubscription(ctx, tx, sub.ID); err != nil {
				return err
			}
			stats.Cancelled++
			events = append(events, adapter.Event{Type: adapter.EventRenewFailed, OwnerID: sub.OwnerID, SubjectID: &sub.SubjectID})
			return u.recordAttempt(ctx, tx, sub, model.AttemptStatusFailed, "insufficient wallet balance", nil, &balance, nil)
		}

		order, err := u.orders.CreateRenewalOrder(ctx, tx, sub)
		if err != nil {
			// Roll the whole billing transaction back; the failure is
			// recorded afterwards in its own transaction.
			return err
		}

		next := now.Add(time.Duration(sub.CycleDays) * 24 * time.Hour)
		sub.Status = model.AutoRenewStatusActive
		sub.NextBillingAt = &next
		sub.LastSuccessAt = &now
		sub.LastOrderID = &order.ID
		sub.ConsecutiveFailures = 0
		sub.UpdatedAt = now

		lic, err := u.licenses.FindActiveByOwnerAndSubject(ctx, tx, sub.OwnerID, sub.SubjectID)
		if err == nil {
			sub.CurrentLicenseID = &lic.ID
			if lic.EndAt != nil {
				anchored := lic.EndAt.Add(time.Duration(sub.GracePeriodHours) * time.Hour)
				sub.NextBillingAt = &anchored
			}
			lic.SubscriptionID = &sub.ID
			if err := u.licenses.Save(ctx, tx, lic); err != nil {
				return err
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		stats.Renewed++
		events = append(events, adapter.Event{Type: adapter.EventAutoRenewed, OwnerID: sub.OwnerID, SubjectID: &sub.SubjectID, OrderID: &order.ID})
		return u.recordAttempt(ctx, tx, sub, model.AttemptStatusSuccess, "", &sub.Price, &balance, &order.ID)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return u.recordFailure(ctx, id, err, stats)
	}
	u.notify(ctx, events)
	return nil
}

// recordFailure runs after the billing transaction rolled back. It reloads
// the subscription in a fresh transaction, writes the failed attempt and
// pushes next_billing_at by the retry interval, suspending once
// max_retry_attempts is reached. A lost insufficient-funds race cancels, same
// as the pre-checked path.
func (u *autoRenewUC) recordFailure(ctx context.Context, id string, cause error, stats *RunStats) error {
	var events []adapter.Event
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		now := time.Now()
		sub.ConsecutiveFailures++
		sub.LastAttemptAt = &now
		sub.UpdatedAt = now

		switch {
		case errors.Is(cause, domain.ErrInsufficientFunds):
			sub.Status = model.AutoRenewStatusCancelled
			sub.NextBillingAt = nil
			if err := u.licenses.DetachSubscription(ctx, tx, sub.ID); err != nil {
				return err
			}
			stats.Cancelled++
			events = append(events, adapter.Event{Type: adapter.EventRenewFailed, OwnerID: sub.OwnerID, SubjectID: &sub.SubjectID})
		case sub.ConsecutiveFailures >= sub.MaxRetryAttempts:
			sub.Status = model.AutoRenewStatusSuspended
			sub.NextBillingAt = nil
			stats.Suspended++
			events = append(events, adapter.Event{Type: adapter.EventRenewFailed, OwnerID: sub.OwnerID, SubjectID: &sub.SubjectID})
		default:
			next := now.Add(sub.RetryInterval())
			sub.NextBillingAt = &next
			stats.Failed++
		}
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		return u.recordAttempt(ctx, tx, sub, model.AttemptStatusFailed, cause.Error(), nil, nil, nil)
	})
	if err != nil {
		return err
	}
	u.notify(ctx, events)
	return nil
}

func (u *autoRenewUC) recordAttempt(ctx context.Context, tx repository.Tx, sub *model.AutoRenewSubscription, status model.AutoRenewAttemptStatus, reason string, charged, balance *int64, orderID *string) error {
	attempt := &model.AutoRenewAttempt{
		ID:                    ulid.MustNew(ulid.Now(), rand.Reader).String(),
		SubscriptionID:        sub.ID,
		Status:                status,
		FailReason:            reason,
		ChargedAmount:         charged,
		WalletBalanceSnapshot: balance,
		OrderID:               orderID,
		RanAt:                 time.Now(),
	}
	metrics.IncRenewalAttempt(string(status))
	return u.subs.InsertAttempt(ctx, tx, attempt)
}

func (u *autoRenewUC) Pause(ctx context.Context, ownerID, subscriptionID string) error {
	return u.transition(ctx, ownerID, subscriptionID, func(sub *model.AutoRenewSubscription) error {
		if sub.Status != model.AutoRenewStatusActive {
			return domain.ErrInvalidState
		}
		sub.Status = model.AutoRenewStatusPaused
		return nil
	})
}

func (u *autoRenewUC) Resume(ctx context.Context, ownerID, subscriptionID string) error {
	return u.transition(ctx, ownerID, subscriptionID, func(sub *model.AutoRenewSubscription) error {
		if sub.Status != model.AutoRenewStatusPaused && sub.Status != model.AutoRenewStatusSuspended {
			return domain.ErrInvalidState
		}
		sub.Status = model.AutoRenewStatusActive
		sub.ConsecutiveFailures = 0
		if sub.NextBillingAt == nil {
			next := time.Now()
			sub.NextBillingAt = &next
		}
		return nil
	})
}

func (u *autoRenewUC) Cancel(ctx context.Context, ownerID, subscriptionID string) error {
	return u.transitionTx(ctx, ownerID, subscriptionID, func(ctx context.Context, tx repository.Tx, sub *model.AutoRenewSubscription) error {
		if !sub.IsLive() {
			return domain.ErrInvalidState
		}
		sub.Status = model.AutoRenewStatusCancelled
		sub.NextBillingAt = nil
		sub.CurrentLicenseID = nil
		return u.licenses.DetachSubscription(ctx, tx, sub.ID)
	})
}

func (u *autoRenewUC) transition(ctx context.Context, ownerID, subscriptionID string, mutate func(*model.AutoRenewSubscription) error) error {
	return u.transitionTx(ctx, ownerID, subscriptionID, func(_ context.Context, _ repository.Tx, sub *model.AutoRenewSubscription) error {
		return mutate(sub)
	})
}

func (u *autoRenewUC) transitionTx(ctx context.Context, ownerID, subscriptionID string, mutate func(context.Context, repository.Tx, *model.AutoRenewSubscription) error) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.OwnerID != ownerID {
			return domain.ErrNotFound
		}
		if err := mutate(ctx, tx, sub); err != nil {
			return err
		}
		sub.UpdatedAt = time.Now()
		return u.subs.Save(ctx, tx, sub)
	})
}

func (u *autoRenewUC) List(ctx context.Context, ownerID string) ([]*model.AutoRenewSubscription, error) {
	return u.subs.ListByOwner(ctx, repository.NoTX, ownerID)
}

func (u *autoRenewUC) Attempts(ctx context.Context, ownerID, subscriptionID string, limit int) ([]*model.AutoRenewAttempt, error) {
	sub, err := u.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return u.subs.ListAttempts(ctx, repository.NoTX, subscriptionID, limit)
}

func (u *autoRenewUC) notify(ctx context.Context, events []adapter.Event) {
	if u.notifier == nil {
		return
	}
	for _, ev := range events {
		if err := u.notifier.Notify(ctx, ev); err != nil {
			u.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("renewal notification failed")
		}
	}
}
