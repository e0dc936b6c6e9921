package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.AttemptRepository = (*attemptRepo)(nil)

type attemptRepo struct{ pool *pgxpool.Pool }

func NewAttemptRepo(pool *pgxpool.Pool) *attemptRepo {
	return &attemptRepo{pool: pool}
}

const attemptColumns = `id, intent_id, status, bank_code, account_number, account_name, transfer_content, transfer_amount, qr_image_url, provider_session_id, expires_at, meta, created_at`

func (r *attemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.PaymentAttempt) error {
	const q = `
INSERT INTO payment_attempts (
  ` + attemptColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
);`

	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.IntentID, a.Status, a.BankCode, a.AccountNumber, a.AccountName, a.TransferContent, a.TransferAmount, a.QRImageURL, a.ProviderSessionID, a.ExpiresAt, a.Meta, a.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *attemptRepo) LatestByIntent(ctx context.Context, tx repository.Tx, intentID string) (*model.PaymentAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE intent_id=$1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, intentID)
	if err != nil {
		return nil, err
	}
	return scanAttempt(row)
}

func (r *attemptRepo) ListByIntent(ctx context.Context, tx repository.Tx, intentID string) ([]*model.PaymentAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE intent_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, intentID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentAttempt
	for rows.Next() {
		a := new(model.PaymentAttempt)
		if err := rows.Scan(&a.ID, &a.IntentID, &a.Status, &a.BankCode, &a.AccountNumber, &a.AccountName, &a.TransferContent, &a.TransferAmount, &a.QRImageURL, &a.ProviderSessionID, &a.ExpiresAt, &a.Meta, &a.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	return out, nil
}

func scanAttempt(row pgx.Row) (*model.PaymentAttempt, error) {
	a := &model.PaymentAttempt{}
	if err := row.Scan(&a.ID, &a.IntentID, &a.Status, &a.BankCode, &a.AccountNumber, &a.AccountName, &a.TransferContent, &a.TransferAmount, &a.QRImageURL, &a.ProviderSessionID, &a.ExpiresAt, &a.Meta, &a.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	return a, nil
}
