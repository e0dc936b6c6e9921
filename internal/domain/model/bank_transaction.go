package model

import "time"

// ReconcileOutcome is the persisted result of processing one bank
// transaction. Stored on the inbox row so redelivered webhooks can be
// answered from it without reprocessing.
type ReconcileOutcome string

const (
	OutcomeMatched        ReconcileOutcome = "matched"
	OutcomeNoMatch        ReconcileOutcome = "no_match"
	OutcomeAmountMismatch ReconcileOutcome = "amount_mismatch"
	OutcomeIgnoredOut     ReconcileOutcome = "ignored_outgoing"
	OutcomeIntentExpired  ReconcileOutcome = "intent_expired"
	OutcomeAlreadyDone    ReconcileOutcome = "already_processed"
)

// BankTransaction is the reconciliation inbox: one row per transaction the
// provider reports, keyed by the provider's own id. The uniqueness constraint
// on ProviderTxID is what makes webhook delivery idempotent; matched ids and
// the outcome are written back after processing.
type BankTransaction struct {
	ProviderTxID     int64 // provider-side id, primary key
	Gateway          string
	TransactionDate  time.Time
	AccountNumber    string
	AmountIn         int64
	AmountOut        int64
	Content          string // transfer memo, carries the order code
	ReferenceNumber  string
	Outcome          ReconcileOutcome
	MatchedIntentID  *string
	MatchedPaymentID *string
	CreatedAt        time.Time
}
