package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.WalletRepository = (*walletRepo)(nil)

type walletRepo struct{ pool *pgxpool.Pool }

func NewWalletRepo(pool *pgxpool.Pool) *walletRepo {
	return &walletRepo{pool: pool}
}

func (r *walletRepo) Save(ctx context.Context, tx repository.Tx, w *model.Wallet) error {
	const q = `
INSERT INTO wallets (
  id, owner_id, balance, currency, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
) ON CONFLICT (owner_id, currency) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, w.ID, w.OwnerID, w.Balance, w.Currency, w.Status, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

const walletColumns = `id, owner_id, balance, currency, status, created_at, updated_at`

func (r *walletRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Wallet, error) {
	q := `SELECT ` + walletColumns + ` FROM wallets WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanWallet(row)
}

func (r *walletRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID, currency string) (*model.Wallet, error) {
	q := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id=$1 AND currency=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, ownerID, currency)
	if err != nil {
		return nil, err
	}
	return scanWallet(row)
}

func (r *walletRepo) UpdateBalance(ctx context.Context, tx repository.Tx, id string, balance int64) error {
	const q = `UPDATE wallets SET balance=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, balance)
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

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	w := &model.Wallet{}
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Currency, &w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return w, nil
}
