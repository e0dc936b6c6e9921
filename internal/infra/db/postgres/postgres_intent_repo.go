package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.IntentRepository = (*intentRepo)(nil)

type intentRepo struct{ pool *pgxpool.Pool }

func NewIntentRepo(pool *pgxpool.Pool) *intentRepo {
	return &intentRepo{pool: pool}
}

const intentColumns = `id, owner_id, order_id, purpose, amount, currency, status, order_code, reference_code, qr_code_url, expires_at, meta, created_at, updated_at`

func (r *intentRepo) Save(ctx context.Context, tx repository.Tx, i *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (
  ` + intentColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  status=$7, reference_code=$9, qr_code_url=$10, meta=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q, i.ID, i.OwnerID, i.OrderID, i.Purpose, i.Amount, i.Currency, i.Status, i.OrderCode, i.ReferenceCode, i.QRCodeURL, i.ExpiresAt, i.Meta, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		if isUniqueViolation(err) {
			// order_code collision; the token generator makes this practically
			// unreachable but the constraint is still the source of truth
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *intentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *intentRepo) FindByOrderCode(ctx context.Context, tx repository.Tx, orderCode string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE order_code=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderCode)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *intentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus, referenceCode *string) error {
	const q = `UPDATE payment_intents SET status=$2, reference_code=COALESCE($3, reference_code), updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, referenceCode)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *intentRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit, offset int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE owner_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
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

	var out []*model.PaymentIntent
	for rows.Next() {
		i := new(model.PaymentIntent)
		if err := rows.Scan(&i.ID, &i.OwnerID, &i.OrderID, &i.Purpose, &i.Amount, &i.Currency, &i.Status, &i.OrderCode, &i.ReferenceCode, &i.QRCodeURL, &i.ExpiresAt, &i.Meta, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, i)
	}
	return out, nil
}

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	i := &model.PaymentIntent{}
	if err := row.Scan(&i.ID, &i.OwnerID, &i.OrderID, &i.Purpose, &i.Amount, &i.Currency, &i.Status, &i.OrderCode, &i.ReferenceCode, &i.QRCodeURL, &i.ExpiresAt, &i.Meta, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return i, nil
}
