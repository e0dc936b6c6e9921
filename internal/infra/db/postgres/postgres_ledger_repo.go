package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

// ledgerRepo is append-only; there is no UPDATE or DELETE statement in this
// file on purpose.
type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

const ledgerColumns = `id, wallet_id, tx_type, amount, direction, balance_before, balance_after, order_id, payment_id, note, meta, created_at`

func (r *ledgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	const q = `
INSERT INTO ledger_entries (
  ` + ledgerColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
);`

	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.WalletID, e.TxType, e.Amount, e.Direction, e.BalanceBefore, e.BalanceAfter, e.OrderID, e.PaymentID, e.Note, e.Meta, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *ledgerRepo) ListByWallet(ctx context.Context, tx repository.Tx, walletID string, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE wallet_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, walletID, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		e := new(model.LedgerEntry)
		if err := rows.Scan(&e.ID, &e.WalletID, &e.TxType, &e.Amount, &e.Direction, &e.BalanceBefore, &e.BalanceAfter, &e.OrderID, &e.PaymentID, &e.Note, &e.Meta, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *ledgerRepo) SumSigned(ctx context.Context, tx repository.Tx, walletID string) (int64, error) {
	const q = `
SELECT COALESCE(SUM(CASE WHEN direction='credit' THEN amount ELSE -amount END), 0)
  FROM ledger_entries WHERE wallet_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, walletID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
