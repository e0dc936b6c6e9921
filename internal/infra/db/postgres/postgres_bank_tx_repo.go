package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.BankTransactionRepository = (*bankTxRepo)(nil)

// bankTxRepo is the reconciliation inbox. provider_tx_id is the primary key;
// ON CONFLICT DO NOTHING is what turns redelivered webhooks into no-ops.
type bankTxRepo struct{ pool *pgxpool.Pool }

func NewBankTxRepo(pool *pgxpool.Pool) *bankTxRepo {
	return &bankTxRepo{pool: pool}
}

const bankTxColumns = `provider_tx_id, gateway, transaction_date, account_number, amount_in, amount_out, content, reference_number, outcome, matched_intent_id, matched_payment_id, created_at`

func (r *bankTxRepo) Insert(ctx context.Context, tx repository.Tx, b *model.BankTransaction) (bool, error) {
	const q = `
INSERT INTO bank_transactions (
  ` + bankTxColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (provider_tx_id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, b.ProviderTxID, b.Gateway, b.TransactionDate, b.AccountNumber, b.AmountIn, b.AmountOut, b.Content, b.ReferenceNumber, b.Outcome, b.MatchedIntentID, b.MatchedPaymentID, b.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *bankTxRepo) FindByProviderTxID(ctx context.Context, tx repository.Tx, providerTxID int64) (*model.BankTransaction, error) {
	const q = `SELECT ` + bankTxColumns + ` FROM bank_transactions WHERE provider_tx_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, providerTxID)
	if err != nil {
		return nil, err
	}
	return scanBankTx(row)
}

func (r *bankTxRepo) RecordOutcome(ctx context.Context, tx repository.Tx, providerTxID int64, outcome model.ReconcileOutcome, intentID, paymentID *string) error {
	const q = `UPDATE bank_transactions SET outcome=$2, matched_intent_id=$3, matched_payment_id=$4 WHERE provider_tx_id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, providerTxID, outcome, intentID, paymentID)
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

func scanBankTx(row pgx.Row) (*model.BankTransaction, error) {
	b := &model.BankTransaction{}
	if err := row.Scan(&b.ProviderTxID, &b.Gateway, &b.TransactionDate, &b.AccountNumber, &b.AmountIn, &b.AmountOut, &b.Content, &b.ReferenceNumber, &b.Outcome, &b.MatchedIntentID, &b.MatchedPaymentID, &b.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	return b, nil
}
