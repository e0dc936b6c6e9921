package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/adapter"
	"signal-billing/internal/domain/ports/repository"
	"signal-billing/internal/infra/metrics"
)

var _ OrderUseCase = (*orderUC)(nil)

// OrderItemInput is one requested subject line for a new order.
type OrderItemInput struct {
	SubjectID         int64
	Price             int64
	LicenseDays       *int // nil = lifetime
	AutoRenew         bool
	CycleDaysOverride *int
	AutoRenewPrice    *int64
	Meta              map[string]interface{}
}

// CreateOrderResult reports how far a new order got. For a wallet order that
// could not cover the total, the order stays pending and Shortage carries the
// exact missing amount so the client can offer a top-up.
type CreateOrderResult struct {
	Order               *model.Order
	Intent              *model.PaymentIntent
	InsufficientBalance bool
	WalletBalance       int64
	Shortage            int64
}

// AutoRenewEnroller is what the issuer needs from the auto-renew side:
// keeping subscriptions in sync with order items flagged for renewal.
type AutoRenewEnroller interface {
	SyncPendingFromOrder(ctx context.Context, tx repository.Tx, o *model.Order) error
	ActivateForOrder(ctx context.Context, tx repository.Tx, o *model.Order) error
}

// OrderUseCase turns paid orders into licenses. Settlement is idempotent:
// pending -> paid happens exactly once, later calls re-assert licenses
// without double-charging.
type OrderUseCase interface {
	CreateOrder(ctx context.Context, ownerID string, items []OrderItemInput, method model.PaymentMethod, description string) (*CreateOrderResult, error)
	// PayWithWallet retries wallet settlement of a pending wallet order,
	// typically after a top-up.
	PayWithWallet(ctx context.Context, ownerID, orderID string) (*model.Order, error)
	// CreateTopupForOrder creates a top-up intent for exactly the missing
	// amount of a pending wallet order. Settlement chains automatically when
	// the top-up is reconciled.
	CreateTopupForOrder(ctx context.Context, ownerID, orderID string) (*model.PaymentIntent, error)
	// SettleByIntent settles the order linked to a succeeded intent and
	// returns it, or nil when no order is linked. With a nil tx it runs in
	// its own transaction and sends the paid notification itself; inside a
	// caller's tx, notification is the caller's job after commit.
	SettleByIntent(ctx context.Context, tx repository.Tx, intentID string) (*model.Order, error)
	// TryAutoPayAfterTopup attempts wallet settlement of the order a top-up
	// intent was raised for. Insufficient balance is not an error; the order
	// just stays pending and nil is returned.
	TryAutoPayAfterTopup(ctx context.Context, tx repository.Tx, orderID string) (*model.Order, error)
	// CreateRenewalOrder creates and immediately wallet-settles a renewal
	// order inside the caller's transaction. Used by the billing scheduler.
	CreateRenewalOrder(ctx context.Context, tx repository.Tx, sub *model.AutoRenewSubscription) (*model.Order, error)
	Get(ctx context.Context, ownerID, orderID string) (*model.Order, error)
}

type orderUC struct {
	orders   repository.OrderRepository
	licenses repository.LicenseRepository
	subjects repository.SubjectRepository
	wallets  WalletUseCase
	intents  IntentUseCase
	notifier adapter.Notifier
	tm       repository.TransactionManager
	enroller AutoRenewEnroller
	log      *zerolog.Logger
}

func NewOrderUseCase(orders repository.OrderRepository, licenses repository.LicenseRepository, subjects repository.SubjectRepository, wallets WalletUseCase, intents IntentUseCase, notifier adapter.Notifier, tm repository.TransactionManager, logger *zerolog.Logger) *orderUC {
	l := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{orders: orders, licenses: licenses, subjects: subjects, wallets: wallets, intents: intents, notifier: notifier, tm: tm, log: &l}
}

// BindEnroller wires the auto-renew use case in after construction; the two
// use cases reference each other.
func (u *orderUC) BindEnroller(e AutoRenewEnroller) { u.enroller = e }

func (u *orderUC) CreateOrder(ctx context.Context, ownerID string, items []OrderItemInput, method model.PaymentMethod, description string) (*CreateOrderResult, error) {
	if len(items) == 0 {
		return nil, domain.ErrInvalidArgument
	}

	var total int64
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if it.Price <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		if it.LicenseDays != nil && *it.LicenseDays <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		if it.CycleDaysOverride != nil && *it.CycleDaysOverride <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		if it.AutoRenewPrice != nil && *it.AutoRenewPrice <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		total += it.Price
		ids = append(ids, it.SubjectID)
	}

	existing, err := u.subjects.FilterExisting(ctx, repository.NoTX, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if !existing[id] {
			return nil, fmt.Errorf("subject %d: %w", id, domain.ErrNotFound)
		}
	}

	if description == "" {
		description = fmt.Sprintf("Signal subject purchase x%d", len(items))
	}
	order, err := model.NewOrder(uuid.NewString(), ownerID, method, description)
	if err != nil {
		return nil, err
	}
	order.TotalAmount = total
	for _, it := range items {
		order.Items = append(order.Items, model.OrderItem{
			ID:                uuid.NewString(),
			OrderID:           order.ID,
			SubjectID:         it.SubjectID,
			Price:             it.Price,
			LicenseDays:       it.LicenseDays,
			AutoRenew:         it.AutoRenew,
			CycleDaysOverride: it.CycleDaysOverride,
			AutoRenewPrice:    it.AutoRenewPrice,
			Meta:              it.Meta,
		})
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.orders.Save(ctx, tx, order); err != nil {
			return err
		}
		if u.enroller != nil {
			return u.enroller.SyncPendingFromOrder(ctx, tx, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncOrderCreated(string(method))

	if method == model.MethodWallet {
		return u.tryImmediateWalletSettlement(ctx, order)
	}

	intent, err := u.intents.Create(ctx, ownerID, model.PurposeOrderPayment, total, map[string]interface{}{
		"order_id":    order.ID,
		"order_type":  "subject_purchase",
		"items_count": len(order.Items),
	})
	if err != nil {
		return nil, err
	}
	if err := u.orders.LinkIntent(ctx, repository.NoTX, order.ID, intent.ID); err != nil {
		return nil, err
	}
	order.IntentID = &intent.ID
	return &CreateOrderResult{Order: order, Intent: intent}, nil
}

func (u *orderUC) tryImmediateWalletSettlement(ctx context.Context, order *model.Order) (*CreateOrderResult, error) {
	w, err := u.wallets.Get(ctx, order.OwnerID, DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if w.Balance < order.TotalAmount {
		// The order stays pending for a top-up-then-retry flow.
		return &CreateOrderResult{
			Order:               order,
			InsufficientBalance: true,
			WalletBalance:       w.Balance,
			Shortage:            order.TotalAmount - w.Balance,
		}, nil
	}

	settled, err := u.settleWalletOrder(ctx, order.ID, order.OwnerID)
	if err != nil {
		return nil, err
	}
	return &CreateOrderResult{Order: settled}, nil
}

func (u *orderUC) PayWithWallet(ctx context.Context, ownerID, orderID string) (*model.Order, error) {
	return u.settleWalletOrder(ctx, orderID, ownerID)
}

// settleWalletOrder debits the wallet and settles the order in one
// transaction, order row locked first, wallet row inside the ledger path.
func (u *orderUC) settleWalletOrder(ctx context.Context, orderID, ownerID string) (*model.Order, error) {
	var order *model.Order
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		order, err = u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.OwnerID != ownerID {
			return domain.ErrNotFound
		}
		if order.PaymentMethod != model.MethodWallet {
			return domain.ErrInvalidState
		}
		if order.IsPaid() {
			return nil
		}
		if order.Status != model.OrderStatusPending {
			return domain.ErrInvalidState
		}

		if _, err := u.wallets.Debit(ctx, tx, LedgerRequest{
			OwnerID: order.OwnerID,
			Amount:  order.TotalAmount,
			TxType:  model.LedgerTxPurchase,
			OrderID: &order.ID,
			Note:    fmt.Sprintf("Subject purchase order %s", order.ID),
		}); err != nil {
			return err
		}
		return u.settleInTx(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	u.notifyPaid(ctx, order)
	return order, nil
}

func (u *orderUC) CreateTopupForOrder(ctx context.Context, ownerID, orderID string) (*model.PaymentIntent, error) {
	order, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	if order.Status != model.OrderStatusPending {
		return nil, domain.ErrInvalidState
	}
	if order.PaymentMethod != model.MethodWallet {
		return nil, domain.ErrInvalidState
	}

	w, err := u.wallets.Get(ctx, ownerID, DefaultCurrency)
	if err != nil {
		return nil, err
	}
	shortage := order.TotalAmount - w.Balance
	if shortage <= 0 {
		return nil, domain.ErrInvalidState
	}

	intent, err := u.intents.CreateTopup(ctx, ownerID, shortage, map[string]interface{}{
		"order_id":        order.ID,
		"order_type":      "subject_purchase_topup",
		"order_total":     order.TotalAmount,
		"current_balance": w.Balance,
	})
	if err != nil {
		return nil, err
	}
	if err := u.orders.LinkIntent(ctx, repository.NoTX, order.ID, intent.ID); err != nil {
		return nil, err
	}
	return intent, nil
}

func (u *orderUC) SettleByIntent(ctx context.Context, tx repository.Tx, intentID string) (*model.Order, error) {
	if tx != nil {
		return u.settleByIntentInTx(ctx, tx, intentID)
	}
	var order *model.Order
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		order, err = u.settleByIntentInTx(ctx, tx, intentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.notifyPaid(ctx, order)
	return order, nil
}

func (u *orderUC) settleByIntentInTx(ctx context.Context, tx repository.Tx, intentID string) (*model.Order, error) {
	order, err := u.orders.FindByIntent(ctx, tx, intentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Funds arrived for an intent that no longer maps to an order.
			// Not fatal; the bank transaction row keeps the money traceable.
			u.log.Warn().Str("intent_id", intentID).Msg("no order linked to succeeded intent")
			return nil, nil
		}
		return nil, err
	}
	if order.IsPaid() {
		return nil, nil
	}
	return order, u.settleInTx(ctx, tx, order)
}

func (u *orderUC) TryAutoPayAfterTopup(ctx context.Context, tx repository.Tx, orderID string) (*model.Order, error) {
	order, err := u.orders.FindByID(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if order.Status != model.OrderStatusPending || order.PaymentMethod != model.MethodWallet {
		return nil, nil
	}

	_, err = u.wallets.Debit(ctx, tx, LedgerRequest{
		OwnerID: order.OwnerID,
		Amount:  order.TotalAmount,
		TxType:  model.LedgerTxPurchase,
		OrderID: &order.ID,
		Note:    fmt.Sprintf("Auto-payment after top-up for order %s", order.ID),
	})
	if errors.Is(err, domain.ErrInsufficientFunds) {
		u.log.Info().Str("order_id", order.ID).Msg("balance still short after top-up, order left pending")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := u.settleInTx(ctx, tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (u *orderUC) CreateRenewalOrder(ctx context.Context, tx repository.Tx, sub *model.AutoRenewSubscription) (*model.Order, error) {
	days := sub.CycleDays
	order, err := model.NewOrder(uuid.NewString(), sub.OwnerID, model.MethodWallet, fmt.Sprintf("Auto-renew for subject %d", sub.SubjectID))
	if err != nil {
		return nil, err
	}
	order.TotalAmount = sub.Price
	order.Items = []model.OrderItem{{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		SubjectID:   sub.SubjectID,
		Price:       sub.Price,
		LicenseDays: &days,
		AutoRenew:   true,
	}}

	if err := u.orders.Save(ctx, tx, order); err != nil {
		return nil, err
	}
	if _, err := u.wallets.Debit(ctx, tx, LedgerRequest{
		OwnerID: sub.OwnerID,
		Amount:  sub.Price,
		TxType:  model.LedgerTxPurchase,
		OrderID: &order.ID,
		Note:    fmt.Sprintf("Auto-renew for subject %d", sub.SubjectID),
	}); err != nil {
		return nil, err
	}
	if err := u.settleLicensesOnly(ctx, tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// settleInTx marks the order paid, issues licenses and activates auto-renew
// enrollment. Idempotent through Order.MarkPaid.
func (u *orderUC) settleInTx(ctx context.Context, tx repository.Tx, order *model.Order) error {
	if err := u.settleLicensesOnly(ctx, tx, order); err != nil {
		return err
	}
	if u.enroller != nil {
		if err := u.enroller.ActivateForOrder(ctx, tx, order); err != nil {
			return err
		}
	}
	return nil
}

func (u *orderUC) settleLicensesOnly(ctx context.Context, tx repository.Tx, order *model.Order) error {
	if err := order.MarkPaid(); err != nil {
		return err
	}
	if err := u.orders.UpdateStatus(ctx, tx, order.ID, order.Status); err != nil {
		return err
	}
	if err := u.issueLicenses(ctx, tx, order); err != nil {
		return err
	}
	metrics.IncOrderPaid(string(order.PaymentMethod), order.TotalAmount)
	return nil
}

// issueLicenses extends the existing active license per subject or creates a
// new one. A lifetime item always dominates a finite end date on merge.
func (u *orderUC) issueLicenses(ctx context.Context, tx repository.Tx, order *model.Order) error {
	now := time.Now()
	for _, item := range order.Items {
		var endAt *time.Time
		if item.LicenseDays != nil {
			e := now.Add(time.Duration(*item.LicenseDays) * 24 * time.Hour)
			endAt = &e
		}

		existing, err := u.licenses.FindActiveByOwnerAndSubject(ctx, tx, order.OwnerID, item.SubjectID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if existing != nil {
			existing.ExtendTo(endAt)
			existing.OrderID = &order.ID
			if err := u.licenses.Save(ctx, tx, existing); err != nil {
				return err
			}
			continue
		}

		lic, err := model.NewLicense(uuid.NewString(), order.OwnerID, item.SubjectID, &order.ID, now, endAt)
		if err != nil {
			return err
		}
		if err := u.licenses.Save(ctx, tx, lic); err != nil {
			return err
		}
		metrics.IncLicenseIssued()
	}
	return nil
}

func (u *orderUC) Get(ctx context.Context, ownerID, orderID string) (*model.Order, error) {
	order, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (u *orderUC) notifyPaid(ctx context.Context, order *model.Order) {
	if u.notifier == nil || order == nil || !order.IsPaid() {
		return
	}
	ev := adapter.Event{Type: adapter.EventOrderPaid, OwnerID: order.OwnerID, OrderID: &order.ID}
	if len(order.Items) == 1 {
		ev.SubjectID = &order.Items[0].SubjectID
	}
	if err := u.notifier.Notify(ctx, ev); err != nil {
		u.log.Warn().Err(err).Str("order_id", order.ID).Msg("order-paid notification failed")
	}
}
