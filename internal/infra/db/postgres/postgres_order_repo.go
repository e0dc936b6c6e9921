package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, owner_id, total_amount, status, payment_method, description, intent_id, created_at, updated_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (
  ` + orderColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
);`
	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.OwnerID, o.TotalAmount, o.Status, o.PaymentMethod, o.Description, o.IntentID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}

	const qi = `
INSERT INTO order_items (
  id, order_id, subject_id, price, license_days, auto_renew, cycle_days_override, auto_renew_price, meta
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
);`
	for _, it := range o.Items {
		if _, err := execSQL(ctx, r.pool, tx, qi, it.ID, o.ID, it.SubjectID, it.Price, it.LicenseDays, it.AutoRenew, it.CycleDaysOverride, it.AutoRenewPrice, it.Meta); err != nil {
			if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
				return err
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, tx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) FindByIntent(ctx context.Context, tx repository.Tx, intentID string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE intent_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, intentID)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, tx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) error {
	const q = `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status)
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

func (r *orderRepo) LinkIntent(ctx context.Context, tx repository.Tx, id string, intentID string) error {
	const q = `UPDATE orders SET intent_id=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, intentID)
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

func (r *orderRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, statuses []model.OrderStatus, limit, offset int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE owner_id=$1`
	args := []interface{}{ownerID}
	if len(statuses) > 0 {
		ss := make([]string, 0, len(statuses))
		for _, s := range statuses {
			ss = append(ss, string(s))
		}
		q += ` AND status = ANY($2) ORDER BY created_at DESC LIMIT $3 OFFSET $4;`
		args = append(args, ss, limit, offset)
	} else {
		q += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
		args = append(args, limit, offset)
	}

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o := new(model.Order)
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.TotalAmount, &o.Status, &o.PaymentMethod, &o.Description, &o.IntentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	rows.Close()

	for _, o := range out {
		if err := r.loadItems(ctx, tx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *orderRepo) loadItems(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `SELECT id, order_id, subject_id, price, license_days, auto_renew, cycle_days_override, auto_renew_price, meta FROM order_items WHERE order_id=$1 ORDER BY id;`
	rows, err := queryRows(ctx, r.pool, tx, q, o.ID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	o.Items = o.Items[:0]
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SubjectID, &it.Price, &it.LicenseDays, &it.AutoRenew, &it.CycleDaysOverride, &it.AutoRenewPrice, &it.Meta); err != nil {
			return domain.ErrReadDatabaseRow
		}
		o.Items = append(o.Items, it)
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	if err := row.Scan(&o.ID, &o.OwnerID, &o.TotalAmount, &o.Status, &o.PaymentMethod, &o.Description, &o.IntentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return o, nil
}
