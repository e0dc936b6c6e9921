package repository

import (
	"context"

	"signal-billing/internal/domain/model"
)

// WalletRepository persists wallets. Find methods take FOR UPDATE row locks
// when called with a live transaction handle, which is how every
// read-modify-write of a balance is serialized across process instances.
type WalletRepository interface {
	Save(ctx context.Context, tx Tx, w *model.Wallet) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Wallet, error)
	FindByOwner(ctx context.Context, tx Tx, ownerID, currency string) (*model.Wallet, error)
	UpdateBalance(ctx context.Context, tx Tx, id string, balance int64) error
}

// LedgerRepository appends immutable ledger rows. There is deliberately no
// update or delete.
type LedgerRepository interface {
	Insert(ctx context.Context, tx Tx, e *model.LedgerEntry) error
	ListByWallet(ctx context.Context, tx Tx, walletID string, limit int) ([]*model.LedgerEntry, error)
	// SumSigned returns the signed sum of all entries for a wallet; used to
	// audit the balance == ledger invariant.
	SumSigned(ctx context.Context, tx Tx, walletID string) (int64, error)
}
