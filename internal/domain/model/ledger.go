package model

import (
	"time"

	"signal-billing/internal/domain"
)

type LedgerTxType string

const (
	LedgerTxDeposit     LedgerTxType = "deposit"
	LedgerTxPurchase    LedgerTxType = "purchase"
	LedgerTxRefund      LedgerTxType = "refund"
	LedgerTxWithdrawal  LedgerTxType = "withdrawal"
	LedgerTxTransferIn  LedgerTxType = "transfer_in"
	LedgerTxTransferOut LedgerTxType = "transfer_out"
)

type LedgerDirection string

const (
	LedgerCredit LedgerDirection = "credit"
	LedgerDebit  LedgerDirection = "debit"
)

var validLedgerTxTypes = map[LedgerTxType]bool{
	LedgerTxDeposit:     true,
	LedgerTxPurchase:    true,
	LedgerTxRefund:      true,
	LedgerTxWithdrawal:  true,
	LedgerTxTransferIn:  true,
	LedgerTxTransferOut: true,
}

// LedgerEntry is one immutable line of the wallet ledger. Amount is always
// positive; Direction carries the sign. Rows are never updated or deleted.
type LedgerEntry struct {
	ID            string // ULID, sorts by creation time
	WalletID      string
	TxType        LedgerTxType
	Amount        int64
	Direction     LedgerDirection
	BalanceBefore int64
	BalanceAfter  int64
	OrderID       *string
	PaymentID     *string
	Note          string
	Meta          map[string]interface{}
	CreatedAt     time.Time
}

// NewLedgerEntry computes BalanceAfter from BalanceBefore and validates the
// arithmetic invariant at construction, so an entry that does not balance can
// never be persisted.
func NewLedgerEntry(id, walletID string, txType LedgerTxType, amount int64, direction LedgerDirection, balanceBefore int64) (*LedgerEntry, error) {
	if id == "" || walletID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !validLedgerTxTypes[txType] {
		return nil, domain.ErrInvalidArgument
	}
	var after int64
	switch direction {
	case LedgerCredit:
		after = balanceBefore + amount
	case LedgerDebit:
		after = balanceBefore - amount
	default:
		return nil, domain.ErrInvalidArgument
	}
	return &LedgerEntry{
		ID:            id,
		WalletID:      walletID,
		TxType:        txType,
		Amount:        amount,
		Direction:     direction,
		BalanceBefore: balanceBefore,
		BalanceAfter:  after,
		CreatedAt:     time.Now(),
	}, nil
}

// Signed returns the entry amount with its direction applied.
func (e *LedgerEntry) Signed() int64 {
	if e.Direction == LedgerCredit {
		return e.Amount
	}
	return -e.Amount
}
