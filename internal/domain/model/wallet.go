package model

import (
	"time"

	"signal-billing/internal/domain"
)

type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
)

// Wallet holds a user's balance in a single currency. The balance column is a
// cache of the ledger: every mutation goes through a LedgerEntry written in
// the same transaction, and wallet.Balance must always equal the signed sum
// of its ledger entries.
type Wallet struct {
	ID        string // UUID
	OwnerID   string // UUID of the owning user
	Balance   int64  // minor units (VND has none); never written outside the ledger path
	Currency  string
	Status    WalletStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewWallet(id, ownerID, currency string) (*Wallet, error) {
	if id == "" || ownerID == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Wallet{
		ID:        id,
		OwnerID:   ownerID,
		Balance:   0,
		Currency:  currency,
		Status:    WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (w *Wallet) IsActive() bool { return w.Status == WalletStatusActive }
