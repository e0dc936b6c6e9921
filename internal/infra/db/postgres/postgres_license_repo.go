package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.LicenseRepository = (*licenseRepo)(nil)

type licenseRepo struct{ pool *pgxpool.Pool }

func NewLicenseRepo(pool *pgxpool.Pool) *licenseRepo {
	return &licenseRepo{pool: pool}
}

const licenseColumns = `id, owner_id, subject_id, order_id, subscription_id, status, start_at, end_at, created_at, updated_at`

func (r *licenseRepo) Save(ctx context.Context, tx repository.Tx, l *model.License) error {
	const q = `
INSERT INTO licenses (
  ` + licenseColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
) ON CONFLICT (id) DO UPDATE SET
  order_id=$4, subscription_id=$5, status=$6, end_at=$8, updated_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q, l.ID, l.OwnerID, l.SubjectID, l.OrderID, l.SubscriptionID, l.Status, l.StartAt, l.EndAt, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *licenseRepo) FindActiveByOwnerAndSubject(ctx context.Context, tx repository.Tx, ownerID string, subjectID int64) (*model.License, error) {
	// Lifetime (NULL end_at) sorts first, then the latest end date.
	q := `SELECT ` + licenseColumns + ` FROM licenses
 WHERE owner_id=$1 AND subject_id=$2 AND status='active' AND (end_at IS NULL OR end_at > NOW())
 ORDER BY end_at DESC NULLS FIRST LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, ownerID, subjectID)
	if err != nil {
		return nil, err
	}
	return scanLicense(row)
}

func (r *licenseRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit, offset int) ([]*model.License, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + licenseColumns + ` FROM licenses WHERE owner_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID, limit, offset)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.License
	for rows.Next() {
		l := new(model.License)
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.SubjectID, &l.OrderID, &l.SubscriptionID, &l.Status, &l.StartAt, &l.EndAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *licenseRepo) DetachSubscription(ctx context.Context, tx repository.Tx, subscriptionID string) error {
	const q = `UPDATE licenses SET subscription_id=NULL, updated_at=NOW() WHERE subscription_id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *licenseRepo) ExpireDue(ctx context.Context, tx repository.Tx, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	const q = `
UPDATE licenses SET status='expired', updated_at=NOW()
 WHERE id IN (
   SELECT id FROM licenses
    WHERE status='active' AND end_at IS NOT NULL AND end_at <= NOW()
    ORDER BY end_at ASC LIMIT $1
 );`
	cmd, err := execSQL(ctx, r.pool, tx, q, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func scanLicense(row pgx.Row) (*model.License, error) {
	l := &model.License{}
	if err := row.Scan(&l.ID, &l.OwnerID, &l.SubjectID, &l.OrderID, &l.SubscriptionID, &l.Status, &l.StartAt, &l.EndAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return l, nil
}
