package repository

import (
	"context"

	"signal-billing/internal/domain/model"
)

type PaymentRepository interface {
	// Insert writes the settlement row for an intent. The unique constraint
	// on intent_id makes a second insert fail with
	// domain.ErrDuplicateSettlement, never a silent overwrite.
	Insert(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByIntent(ctx context.Context, tx Tx, intentID string) (*model.Payment, error)
}

// BankTransactionRepository is the reconciliation inbox.
type BankTransactionRepository interface {
	// Insert stores a transaction keyed by provider_tx_id. It returns false
	// with no error when the row already existed (duplicate delivery); the
	// uniqueness constraint, not a pre-check, decides the race.
	Insert(ctx context.Context, tx Tx, b *model.BankTransaction) (inserted bool, err error)
	FindByProviderTxID(ctx context.Context, tx Tx, providerTxID int64) (*model.BankTransaction, error)
	// RecordOutcome writes the processing result and matched ids back onto
	// the inbox row.
	RecordOutcome(ctx context.Context, tx Tx, providerTxID int64, outcome model.ReconcileOutcome, intentID, paymentID *string) error
}
