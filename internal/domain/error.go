package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidState      = errors.New("illegal state transition")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrWalletSuspended   = errors.New("wallet is suspended")
	ErrIntentExpired     = errors.New("payment intent has expired")
	ErrNoMatchingIntent  = errors.New("no payment intent matches the transaction")
	ErrAmountMismatch    = errors.New("transaction amount does not match the intent")

	// Repository-layer errors
	ErrOperationFailed     = errors.New("database operation failed")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrInvalidExecContext  = errors.New("invalid executor context passed to repository")
	ErrLockNotAcquired     = errors.New("could not acquire lock")
	ErrDuplicateSettlement = errors.New("intent already has a settlement payment")
)

// InsufficientFundsError carries the exact shortage so callers can offer a
// top-up path instead of a bare failure. errors.Is(err, ErrInsufficientFunds)
// holds for values of this type.
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: requires %d, has %d", e.Required, e.Available)
}

func (e *InsufficientFundsError) Shortage() int64 { return e.Required - e.Available }

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }
