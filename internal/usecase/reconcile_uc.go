package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ordercode"
	"signal-billing/internal/domain/ports/adapter"
	"signal-billing/internal/domain/ports/repository"
	"signal-billing/internal/infra/metrics"
)

var _ ReconcileUseCase = (*reconcileUC)(nil)

// BankWebhookEvent is one transaction as the provider reports it. The webhook
// handler decodes the provider payload into this shape before ingestion.
type BankWebhookEvent struct {
	ProviderTxID    int64
	Gateway         string
	TransactionDate time.Time
	AccountNumber   string
	TransferType    string // "in" or "out"
	TransferAmount  int64
	Content         string
	ReferenceNumber string
}

// ReconcileResult is what Ingest reports back to the webhook handler. Every
// outcome here is a successful delivery; the handler acknowledges them all.
type ReconcileResult struct {
	Outcome   model.ReconcileOutcome
	Duplicate bool
	IntentID  *string
	PaymentID *string
}

// ReconcileUseCase matches incoming bank transactions to payment intents and
// settles them. Redelivered transactions are answered from the inbox row the
// first delivery wrote.
type ReconcileUseCase interface {
	Ingest(ctx context.Context, ev BankWebhookEvent) (*ReconcileResult, error)
}

type reconcileUC struct {
	bankTxs  repository.BankTransactionRepository
	intents  repository.IntentRepository
	payments repository.PaymentRepository
	wallets  WalletUseCase
	orders   OrderUseCase
	notifier adapter.Notifier
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewReconcileUseCase(bankTxs repository.BankTransactionRepository, intents repository.IntentRepository, payments repository.PaymentRepository, wallets WalletUseCase, orders OrderUseCase, notifier adapter.Notifier, tm repository.TransactionManager, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{bankTxs: bankTxs, intents: intents, payments: payments, wallets: wallets, orders: orders, notifier: notifier, tm: tm, log: &l}
}

func (u *reconcileUC) Ingest(ctx context.Context, ev BankWebhookEvent) (*ReconcileResult, error) {
	if ev.ProviderTxID == 0 {
		return nil, domain.ErrInvalidArgument
	}

	row := &model.BankTransaction{
		ProviderTxID:    ev.ProviderTxID,
		Gateway:         ev.Gateway,
		TransactionDate: ev.TransactionDate,
		AccountNumber:   ev.AccountNumber,
		Content:         ev.Content,
		ReferenceNumber: ev.ReferenceNumber,
		CreatedAt:       time.Now(),
	}
	if ev.TransferType == "in" {
		row.AmountIn = ev.TransferAmount
	} else {
		row.AmountOut = ev.TransferAmount
	}

	// The inbox row goes in first, in its own transaction, so a crash during
	// matching still leaves the money traceable. The unique key on
	// provider_tx_id is the idempotency barrier for redeliveries.
	inserted, err := u.bankTxs.Insert(ctx, repository.NoTX, row)
	if err != nil {
		return nil, err
	}
	if !inserted {
		prev, err := u.bankTxs.FindByProviderTxID(ctx, repository.NoTX, ev.ProviderTxID)
		if err != nil {
			return nil, err
		}
		metrics.IncReconcileOutcome(string(model.OutcomeAlreadyDone))
		return &ReconcileResult{
			Outcome:   prev.Outcome,
			Duplicate: true,
			IntentID:  prev.MatchedIntentID,
			PaymentID: prev.MatchedPaymentID,
		}, nil
	}

	res, err := u.process(ctx, ev)
	if err != nil {
		return nil, err
	}
	if recErr := u.bankTxs.RecordOutcome(ctx, repository.NoTX, ev.ProviderTxID, res.Outcome, res.IntentID, res.PaymentID); recErr != nil {
		u.log.Error().Err(recErr).Int64("provider_tx_id", ev.ProviderTxID).Msg("recording reconcile outcome failed")
	}
	metrics.IncReconcileOutcome(string(res.Outcome))
	return res, nil
}

func (u *reconcileUC) process(ctx context.Context, ev BankWebhookEvent) (*ReconcileResult, error) {
	if ev.TransferType != "in" || ev.TransferAmount <= 0 {
		return &ReconcileResult{Outcome: model.OutcomeIgnoredOut}, nil
	}

	intent := u.lookupIntent(ctx, ev.Content)
	if intent == nil {
		u.log.Warn().Int64("provider_tx_id", ev.ProviderTxID).Str("content", ev.Content).Msg("no intent matches transfer memo")
		return &ReconcileResult{Outcome: model.OutcomeNoMatch}, nil
	}

	// Amount verification comes before any terminal handling: a wrong-amount
	// transfer is flagged for operator review without mutating state, even
	// when the intent is already settled.
	if ev.TransferAmount != intent.Amount {
		u.log.Warn().
			Str("intent_id", intent.ID).
			Int64("expected", intent.Amount).
			Int64("received", ev.TransferAmount).
			Msg("transfer amount does not match intent")
		return &ReconcileResult{Outcome: model.OutcomeAmountMismatch, IntentID: &intent.ID}, nil
	}
	if intent.IsTerminal() {
		return u.afterTerminal(ctx, ev, intent)
	}
	if intent.IsExpired(time.Now()) {
		if err := u.expireIntent(ctx, intent.ID); err != nil {
			return nil, err
		}
		return &ReconcileResult{Outcome: model.OutcomeIntentExpired, IntentID: &intent.ID}, nil
	}

	return u.settle(ctx, ev, intent)
}

// lookupIntent tries each parse candidate of the transfer memo in order and
// returns the first intent whose order code matches.
func (u *reconcileUC) lookupIntent(ctx context.Context, content string) *model.PaymentIntent {
	for _, code := range ordercode.Candidates(content) {
		intent, err := u.intents.FindByOrderCode(ctx, repository.NoTX, code)
		if err == nil {
			return intent
		}
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Error().Err(err).Str("order_code", code).Msg("intent lookup failed")
			return nil
		}
	}
	return nil
}

// afterTerminal handles money arriving for an intent that is already settled
// or dead. A succeeded order intent with its order still pending gets
// self-healed; everything else is recorded and acknowledged.
func (u *reconcileUC) afterTerminal(ctx context.Context, ev BankWebhookEvent, intent *model.PaymentIntent) (*ReconcileResult, error) {
	if intent.Status == model.IntentStatusSucceeded && intent.Purpose != model.PurposeWalletTopup {
		if _, err := u.orders.SettleByIntent(ctx, repository.NoTX, intent.ID); err != nil {
			u.log.Error().Err(err).Str("intent_id", intent.ID).Msg("self-heal settlement failed")
		}
	}
	outcome := model.OutcomeAlreadyDone
	if intent.Status == model.IntentStatusExpired {
		outcome = model.OutcomeIntentExpired
	}
	res := &ReconcileResult{Outcome: outcome, IntentID: &intent.ID}
	if p, err := u.payments.FindByIntent(ctx, repository.NoTX, intent.ID); err == nil {
		res.PaymentID = &p.ID
	}
	return res, nil
}

// settle moves the intent to succeeded, writes the settlement payment and
// applies the funds, all in one transaction.
func (u *reconcileUC) settle(ctx context.Context, ev BankWebhookEvent, intent *model.PaymentIntent) (*ReconcileResult, error) {
	var (
		payment    *model.Payment
		paidOrder  *model.Order
		duplicated bool
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Reload under lock; a concurrent delivery may have won the race.
		locked, err := u.intents.FindByID(ctx, tx, intent.ID)
		if err != nil {
			return err
		}
		if locked.IsTerminal() {
			duplicated = true
			return nil
		}

		if err := locked.Succeed(); err != nil {
			return err
		}
		if err := u.intents.UpdateStatus(ctx, tx, locked.ID, locked.Status, &ev.ReferenceNumber); err != nil {
			return err
		}

		payment, err = model.NewPayment(uuid.NewString(), locked.OwnerID, locked.ID, ev.TransferAmount, ev.ReferenceNumber)
		if err != nil {
			return err
		}
		payment.OrderID = locked.OrderID
		if err := u.payments.Insert(ctx, tx, payment); err != nil {
			if errors.Is(err, domain.ErrDuplicateSettlement) {
				duplicated = true
				payment = nil
				return nil
			}
			return err
		}

		if locked.Purpose == model.PurposeWalletTopup {
			if _, err := u.wallets.Credit(ctx, tx, LedgerRequest{
				OwnerID:   locked.OwnerID,
				Amount:    ev.TransferAmount,
				TxType:    model.LedgerTxDeposit,
				PaymentID: &payment.ID,
				Note:      "Bank transfer top-up",
			}); err != nil {
				return err
			}
			paidOrder, err = u.autoPayLinkedOrder(ctx, tx, locked)
			return err
		}

		paidOrder, err = u.orders.SettleByIntent(ctx, tx, locked.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if duplicated {
		res := &ReconcileResult{Outcome: model.OutcomeAlreadyDone, IntentID: &intent.ID}
		if p, err := u.payments.FindByIntent(ctx, repository.NoTX, intent.ID); err == nil {
			res.PaymentID = &p.ID
		}
		return res, nil
	}

	u.notifySettled(ctx, intent, paidOrder, ev.TransferAmount)
	u.log.Info().
		Str("intent_id", intent.ID).
		Str("payment_id", payment.ID).
		Int64("amount", ev.TransferAmount).
		Str("purpose", string(intent.Purpose)).
		Msg("bank transaction reconciled")
	return &ReconcileResult{Outcome: model.OutcomeMatched, IntentID: &intent.ID, PaymentID: &payment.ID}, nil
}

// autoPayLinkedOrder chains a credited top-up into settling the pending
// wallet order it was raised for, when there is one.
func (u *reconcileUC) autoPayLinkedOrder(ctx context.Context, tx repository.Tx, intent *model.PaymentIntent) (*model.Order, error) {
	orderID, ok := intent.Meta["order_id"].(string)
	if !ok || orderID == "" {
		return nil, nil
	}
	return u.orders.TryAutoPayAfterTopup(ctx, tx, orderID)
}

func (u *reconcileUC) expireIntent(ctx context.Context, intentID string) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		intent, err := u.intents.FindByID(ctx, tx, intentID)
		if err != nil {
			return err
		}
		if !intent.IsPending() {
			return nil
		}
		intent.Expire()
		metrics.IncIntentExpired()
		return u.intents.UpdateStatus(ctx, tx, intent.ID, intent.Status, nil)
	})
}

func (u *reconcileUC) notifySettled(ctx context.Context, intent *model.PaymentIntent, paidOrder *model.Order, amount int64) {
	if u.notifier == nil {
		return
	}
	if intent.Purpose == model.PurposeWalletTopup {
		ev := adapter.Event{Type: adapter.EventTopupCredited, OwnerID: intent.OwnerID}
		if err := u.notifier.Notify(ctx, ev); err != nil {
			u.log.Warn().Err(err).Str("intent_id", intent.ID).Msg("top-up notification failed")
		}
	}
	if paidOrder != nil && paidOrder.IsPaid() {
		ev := adapter.Event{Type: adapter.EventOrderPaid, OwnerID: paidOrder.OwnerID, OrderID: &paidOrder.ID}
		if len(paidOrder.Items) == 1 {
			ev.SubjectID = &paidOrder.Items[0].SubjectID
		}
		if err := u.notifier.Notify(ctx, ev); err != nil {
			u.log.Warn().Err(err).Str("order_id", paidOrder.ID).Msg("order-paid notification failed")
		}
	}
}
