package usecase

import (
	"context"
	"crypto/rand"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/repository"
	"signal-billing/internal/infra/metrics"
)

// DefaultCurrency is the platform settlement currency.
const DefaultCurrency = "VND"

// Compile-time check
var _ WalletUseCase = (*walletUC)(nil)

// LedgerRequest describes one wallet mutation. Amount must be positive; the
// direction comes from the method called.
type LedgerRequest struct {
	OwnerID   string
	Currency  string // empty means DefaultCurrency
	Amount    int64
	TxType    model.LedgerTxType
	OrderID   *string
	PaymentID *string
	Note      string
	Meta      map[string]interface{}
}

// WalletUseCase is the only write path to wallet balances. Credit and Debit
// take an optional transaction handle so the reconciler and the order issuer
// can fold the ledger write into their own atomic unit; passing NoTX makes
// the use case open its own transaction.
type WalletUseCase interface {
	GetOrCreate(ctx context.Context, ownerID, currency string) (*model.Wallet, error)
	Get(ctx context.Context, ownerID, currency string) (*model.Wallet, error)
	Credit(ctx context.Context, tx repository.Tx, req LedgerRequest) (*model.LedgerEntry, error)
	Debit(ctx context.Context, tx repository.Tx, req LedgerRequest) (*model.LedgerEntry, error)
	History(ctx context.Context, ownerID, currency string, limit int) ([]*model.LedgerEntry, error)
}

type walletUC struct {
	wallets repository.WalletRepository
	ledger  repository.LedgerRepository
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewWalletUseCase(wallets repository.WalletRepository, ledger repository.LedgerRepository, tm repository.TransactionManager, logger *zerolog.Logger) *walletUC {
	l := logger.With().Str("component", "WalletUC").Logger()
	return &walletUC{wallets: wallets, ledger: ledger, tm: tm, log: &l}
}

func (u *walletUC) GetOrCreate(ctx context.Context, ownerID, currency string) (*model.Wallet, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	w, err := u.wallets.FindByOwner(ctx, repository.NoTX, ownerID, currency)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	w, err = model.NewWallet(uuid.NewString(), ownerID, currency)
	if err != nil {
		return nil, err
	}
	// Save upserts on the (owner, currency) uniqueness constraint, so a
	// concurrent create resolves to the same row.
	if err := u.wallets.Save(ctx, repository.NoTX, w); err != nil {
		return nil, err
	}
	return u.wallets.FindByOwner(ctx, repository.NoTX, ownerID, currency)
}

func (u *walletUC) Get(ctx context.Context, ownerID, currency string) (*model.Wallet, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	return u.wallets.FindByOwner(ctx, repository.NoTX, ownerID, currency)
}

func (u *walletUC) Credit(ctx context.Context, tx repository.Tx, req LedgerRequest) (*model.LedgerEntry, error) {
	return u.mutate(ctx, tx, req, model.LedgerCredit)
}

func (u *walletUC) Debit(ctx context.Context, tx repository.Tx, req LedgerRequest) (*model.LedgerEntry, error) {
	return u.mutate(ctx, tx, req, model.LedgerDebit)
}

func (u *walletUC) History(ctx context.Context, ownerID, currency string, limit int) ([]*model.LedgerEntry, error) {
	w, err := u.Get(ctx, ownerID, currency)
	if err != nil {
		return nil, err
	}
	return u.ledger.ListByWallet(ctx, repository.NoTX, w.ID, limit)
}

func (u *walletUC) mutate(ctx context.Context, tx repository.Tx, req LedgerRequest, dir model.LedgerDirection) (*model.LedgerEntry, error) {
	if req.OwnerID == "" || req.Amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}

	if tx != nil {
		return u.mutateInTx(ctx, tx, req, dir)
	}
	var entry *model.LedgerEntry
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		entry, err = u.mutateInTx(ctx, tx, req, dir)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// mutateInTx holds the row lock on the wallet for the duration of the
// enclosing transaction: read balance, write one immutable ledger row, update
// the cached balance. No other path writes wallet.balance.
func (u *walletUC) mutateInTx(ctx context.Context, tx repository.Tx, req LedgerRequest, dir model.LedgerDirection) (*model.LedgerEntry, error) {
	w, err := u.wallets.FindByOwner(ctx, tx, req.OwnerID, req.Currency)
	if err != nil {
		return nil, err
	}
	if !w.IsActive() {
		return nil, domain.ErrWalletSuspended
	}
	if dir == model.LedgerDebit && w.Balance < req.Amount {
		return nil, &domain.InsufficientFundsError{Required: req.Amount, Available: w.Balance}
	}

	entry, err := model.NewLedgerEntry(ulid.MustNew(ulid.Now(), rand.Reader).String(), w.ID, req.TxType, req.Amount, dir, w.Balance)
	if err != nil {
		return nil, err
	}
	entry.OrderID = req.OrderID
	entry.PaymentID = req.PaymentID
	entry.Note = req.Note
	entry.Meta = req.Meta

	if err := u.ledger.Insert(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := u.wallets.UpdateBalance(ctx, tx, w.ID, entry.BalanceAfter); err != nil {
		return nil, err
	}

	metrics.AddLedgerEntry(string(dir), string(req.TxType), req.Amount)
	u.log.Debug().
		Str("wallet_id", w.ID).
		Str("direction", string(dir)).
		Int64("amount", req.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Msg("ledger entry written")
	return entry, nil
}
