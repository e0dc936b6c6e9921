package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through repositories. The
// concrete type is infra-defined (pgx.Tx for Postgres). Repositories MUST
// gracefully accept a nil Tx and fall back to the pool.
type Tx interface{}

// NoTX is passed where a method requires a Tx argument but the caller wants
// the non-transactional path.
var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the transaction handle via tx.
//
// Keeping the handle opaque lets use cases compose repository calls into one
// atomic unit (lock, validate, write ledger/aggregate) without leaking
// storage types, which is what gives at-most-one-settlement-per-intent and
// no-lost-update-on-balance under concurrent access.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
