package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, owner_id, subject_id, status, cycle_days, price, payment_method, next_billing_at, last_success_at, last_attempt_at, consecutive_failures, grace_period_hours, retry_interval_minutes, max_retry_attempts, current_license_id, last_order_id, meta, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.AutoRenewSubscription) error {
	const q = `
INSERT INTO auto_renew_subscriptions (
  ` + subscriptionColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
) ON CONFLICT (id) DO UPDATE SET
  status=$4, cycle_days=$5, price=$6, payment_method=$7, next_billing_at=$8,
  last_success_at=$9, last_attempt_at=$10, consecutive_failures=$11,
  grace_period_hours=$12, retry_interval_minutes=$13, max_retry_attempts=$14,
  current_license_id=$15, last_order_id=$16, meta=$17, updated_at=$19;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.OwnerID, s.SubjectID, s.Status, s.CycleDays, s.Price, s.PaymentMethod,
		s.NextBillingAt, s.LastSuccessAt, s.LastAttemptAt, s.ConsecutiveFailures,
		s.GracePeriodHours, s.RetryIntervalMinutes, s.MaxRetryAttempts,
		s.CurrentLicenseID, s.LastOrderID, s.Meta, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		if isUniqueViolation(err) {
			// partial unique index on live (owner, subject) pairs
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AutoRenewSubscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM auto_renew_subscriptions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindLiveByOwnerAndSubject(ctx context.Context, tx repository.Tx, ownerID string, subjectID int64) (*model.AutoRenewSubscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM auto_renew_subscriptions
 WHERE owner_id=$1 AND subject_id=$2 AND status IN ('pending_activation','active','paused')
 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, ownerID, subjectID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.AutoRenewSubscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM auto_renew_subscriptions WHERE owner_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.AutoRenewSubscription
	for rows.Next() {
		s := new(model.AutoRenewSubscription)
		if err := scanSubscriptionInto(rows, s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id FROM auto_renew_subscriptions
 WHERE status='active' AND next_billing_at IS NOT NULL AND next_billing_at <= $1
 ORDER BY next_billing_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *subscriptionRepo) InsertAttempt(ctx context.Context, tx repository.Tx, a *model.AutoRenewAttempt) error {
	const q = `
INSERT INTO auto_renew_attempts (
  id, subscription_id, status, fail_reason, charged_amount, wallet_balance_snapshot, order_id, ran_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
);`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.SubscriptionID, a.Status, a.FailReason, a.ChargedAmount, a.WalletBalanceSnapshot, a.OrderID, a.RanAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) ListAttempts(ctx context.Context, tx repository.Tx, subscriptionID string, limit int) ([]*model.AutoRenewAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, subscription_id, status, fail_reason, charged_amount, wallet_balance_snapshot, order_id, ran_at
  FROM auto_renew_attempts WHERE subscription_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, subscriptionID, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.AutoRenewAttempt
	for rows.Next() {
		a := new(model.AutoRenewAttempt)
		if err := rows.Scan(&a.ID, &a.SubscriptionID, &a.Status, &a.FailReason, &a.ChargedAmount, &a.WalletBalanceSnapshot, &a.OrderID, &a.RanAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.AutoRenewSubscription, error) {
	s := &model.AutoRenewSubscription{}
	if err := scanSubscriptionInto(row, s); err != nil {
		return nil, err
	}
	return s, nil
}

func scanSubscriptionInto(row pgx.Row, s *model.AutoRenewSubscription) error {
	if err := row.Scan(
		&s.ID, &s.OwnerID, &s.SubjectID, &s.Status, &s.CycleDays, &s.Price, &s.PaymentMethod,
		&s.NextBillingAt, &s.LastSuccessAt, &s.LastAttemptAt, &s.ConsecutiveFailures,
		&s.GracePeriodHours, &s.RetryIntervalMinutes, &s.MaxRetryAttempts,
		&s.CurrentLicenseID, &s.LastOrderID, &s.Meta, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return scanErr(err)
	}
	return nil
}
