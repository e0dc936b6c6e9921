//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/adapter"
	"signal-billing/internal/domain/ports/repository"
	"signal-billing/internal/usecase"
)

func TestOrderUseCase_WalletOrderSettlesImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42)

	if err := f.fund(ctx, "owner-1", 100_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	res, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
		{SubjectID: 42, Price: 60_000, LicenseDays: intDays(30)},
	}, model.MethodWallet, "")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.InsufficientBalance {
		t.Fatal("expected immediate settlement, got insufficient balance")
	}
	if !res.Order.IsPaid() {
		t.Fatalf("expected paid order, got %q", res.Order.Status)
	}

	balance, sum, ok := balanceMatchesLedger(ctx, f, "owner-1")
	if !ok || balance != 40_000 {
		t.Errorf("expected balance 40000 == ledger sum, got balance=%d sum=%d", balance, sum)
	}

	lic, err := f.licenses.FindActiveByOwnerAndSubject(ctx, repository.NoTX, "owner-1", 42)
	if err != nil {
		t.Fatalf("expected a license, got: %v", err)
	}
	if lic.EndAt == nil {
		t.Fatal("expected a finite license")
	}
	wantEnd := time.Now().Add(30 * 24 * time.Hour)
	if lic.EndAt.Before(wantEnd.Add(-time.Minute)) || lic.EndAt.After(wantEnd.Add(time.Minute)) {
		t.Errorf("expected end around %v, got %v", wantEnd, *lic.EndAt)
	}

	if f.notifier.Count(adapter.EventOrderPaid) != 1 {
		t.Errorf("expected one order-paid event, got %d", f.notifier.Count(adapter.EventOrderPaid))
	}
}

func TestOrderUseCase_WalletOrderShortBalanceStaysPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42)

	if err := f.fund(ctx, "owner-1", 10_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	res, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
		{SubjectID: 42, Price: 60_000, LicenseDays: intDays(30)},
	}, model.MethodWallet, "")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !res.InsufficientBalance {
		t.Fatal("expected insufficient balance result")
	}
	if res.Shortage != 50_000 || res.WalletBalance != 10_000 {
		t.Errorf("expected shortage 50000 / balance 10000, got %d / %d", res.Shortage, res.WalletBalance)
	}
	if res.Order.Status != model.OrderStatusPending {
		t.Errorf("expected pending order, got %q", res.Order.Status)
	}

	// No money moved, no license issued.
	if balance, sum, ok := balanceMatchesLedger(ctx, f, "owner-1"); !ok || balance != 10_000 {
		t.Errorf("expected untouched balance, got balance=%d sum=%d", balance, sum)
	}
	if _, err := f.licenses.FindActiveByOwnerAndSubject(ctx, repository.NoTX, "owner-1", 42); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected no license, got: %v", err)
	}

	// Top-up intent for exactly the missing amount.
	intent, err := f.orderUC.CreateTopupForOrder(ctx, "owner-1", res.Order.ID)
	if err != nil {
		t.Fatalf("topup for order: %v", err)
	}
	if intent.Amount != 50_000 {
		t.Errorf("expected top-up of 50000, got %d", intent.Amount)
	}
	if intent.Meta["order_id"] != res.Order.ID {
		t.Errorf("expected order id in meta, got %v", intent.Meta["order_id"])
	}

	// After funding, PayWithWallet settles.
	if err := f.fund(ctx, "owner-1", 50_000); err != nil {
		t.Fatalf("fund: %v", err)
	}
	order, err := f.orderUC.PayWithWallet(ctx, "owner-1", res.Order.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if !order.IsPaid() {
		t.Fatalf("expected paid order, got %q", order.Status)
	}
	if balance, _, _ := balanceMatchesLedger(ctx, f, "owner-1"); balance != 0 {
		t.Errorf("expected drained wallet, got %d", balance)
	}
}

func TestOrderUseCase_BankTransferOrderCreatesIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42, 43)

	res, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
		{SubjectID: 42, Price: 60_000, LicenseDays: intDays(30)},
		{SubjectID: 43, Price: 40_000}, // lifetime
	}, model.MethodBankTransfer, "two subjects")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.Intent == nil {
		t.Fatal("expected a payment intent")
	}
	if res.Intent.Amount != 100_000 {
		t.Errorf("expected intent over the order total, got %d", res.Intent.Amount)
	}
	if res.Intent.Purpose != model.PurposeOrderPayment {
		t.Errorf("expected order_payment purpose, got %q", res.Intent.Purpose)
	}

	got, err := f.orders.FindByID(ctx, repository.NoTX, res.Order.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.IntentID == nil || *got.IntentID != res.Intent.ID {
		t.Error("expected the intent linked on the order row")
	}
	if got.Status != model.OrderStatusPending {
		t.Errorf("expected pending until the transfer arrives, got %q", got.Status)
	}
}

func TestOrderUseCase_CreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42)

	cases := []struct {
		name  string
		items []usecase.OrderItemInput
		want  error
	}{
		{"no items", nil, domain.ErrInvalidArgument},
		{"zero price", []usecase.OrderItemInput{{SubjectID: 42, Price: 0}}, domain.ErrInvalidArgument},
		{"zero duration", []usecase.OrderItemInput{{SubjectID: 42, Price: 100, LicenseDays: intDays(0)}}, domain.ErrInvalidArgument},
		{"unknown subject", []usecase.OrderItemInput{{SubjectID: 99, Price: 100}}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.orderUC.CreateOrder(ctx, "owner-1", tc.items, model.MethodWallet, ""); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got: %v", tc.want, err)
			}
		})
	}
}

func TestOrderUseCase_RepurchaseExtendsLicense(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42)

	if err := f.fund(ctx, "owner-1", 200_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	buy := func() *model.Order {
		t.Helper()
		res, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
			{SubjectID: 42, Price: 50_000, LicenseDays: intDays(30)},
		}, model.MethodWallet, "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return res.Order
	}
	buy()
	first, err := f.licenses.FindActiveByOwnerAndSubject(ctx, repository.NoTX, "owner-1", 42)
	if err != nil {
		t.Fatalf("first license: %v", err)
	}

	buy()
	second, err := f.licenses.FindActiveByOwnerAndSubject(ctx, repository.NoTX, "owner-1", 42)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected the same license row extended, not a second row")
	}
	if !second.EndAt.After(*first.EndAt) {
		t.Errorf("expected a later end, got %v then %v", *first.EndAt, *second.EndAt)
	}
}

func TestOrderUseCase_LifetimePurchaseDominatesFiniteLicense(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42)

	if err := f.fund(ctx, "owner-1", 500_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	if _, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
		{SubjectID: 42, Price: 50_000, LicenseDays: intDays(30)},
	}, model.MethodWallet, ""); err != nil {
		t.Fatalf("finite purchase: %v", err)
	}
	if _, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
		{SubjectID: 42, Price: 300_000}, // lifetime
	}, model.MethodWallet, ""); err != nil {
		t.Fatalf("lifetime purchase: %v", err)
	}

	lic, err := f.licenses.FindActiveByOwnerAndSubject(ctx, repository.NoTX, "owner-1", 42)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !lic.IsLifetime() {
		t.Errorf("expected the merged license to be lifetime, got end %v", lic.EndAt)
	}
}

func TestOrderUseCase_AutoRenewEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42)

	if err := f.fund(ctx, "owner-1", 100_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	res, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
		{SubjectID: 42, Price: 60_000, LicenseDays: intDays(30), AutoRenew: true},
	}, model.MethodWallet, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !res.Order.IsPaid() {
		t.Fatalf("expected paid order, got %q", res.Order.Status)
	}

	sub, err := f.subs.FindLiveByOwnerAndSubject(ctx, repository.NoTX, "owner-1", 42)
	if err != nil {
		t.Fatalf("expected a subscription, got: %v", err)
	}
	if sub.Status != model.AutoRenewStatusActive {
		t.Fatalf("expected activated subscription, got %q", sub.Status)
	}
	if sub.CycleDays != 30 || sub.Price != 60_000 {
		t.Errorf("expected cycle/price from the item, got %d/%d", sub.CycleDays, sub.Price)
	}

	// next_billing_at anchors at license end plus the grace period.
	lic, err := f.licenses.FindActiveByOwnerAndSubject(ctx, repository.NoTX, "owner-1", 42)
	if err != nil {
		t.Fatalf("license: %v", err)
	}
	want := lic.EndAt.Add(time.Duration(sub.GracePeriodHours) * time.Hour)
	if sub.NextBillingAt == nil || !sub.NextBillingAt.Equal(want) {
		t.Errorf("expected next billing %v, got %v", want, sub.NextBillingAt)
	}
}

func TestOrderUseCase_LifetimeItemNeverActivatesSchedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42)

	if err := f.fund(ctx, "owner-1", 500_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	// AutoRenew on a lifetime item is meaningless and must be ignored.
	if _, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
		{SubjectID: 42, Price: 300_000, AutoRenew: true},
	}, model.MethodWallet, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.subs.FindLiveByOwnerAndSubject(ctx, repository.NoTX, "owner-1", 42); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no subscription for a lifetime item, got: %v", err)
	}
}

func TestOrderUseCase_PayWithWalletGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(42)

	if err := f.fund(ctx, "owner-1", 100_000); err != nil {
		t.Fatalf("fund: %v", err)
	}
	res, err := f.orderUC.CreateOrder(ctx, "owner-1", []usecase.OrderItemInput{
		{SubjectID: 42, Price: 60_000, LicenseDays: intDays(30)},
	}, model.MethodWallet, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Paying an already-paid order is an idempotent no-op.
	again, err := f.orderUC.PayWithWallet(ctx, "owner-1", res.Order.ID)
	if err != nil {
		t.Fatalf("re-pay: %v", err)
	}
	if !again.IsPaid() {
		t.Errorf("expected still paid, got %q", again.Status)
	}
	if balance, _, _ := balanceMatchesLedger(ctx, f, "owner-1"); balance != 40_000 {
		t.Errorf("expected no double charge, balance %d", balance)
	}

	// Someone else's order reads as not found.
	if _, err := f.orderUC.PayWithWallet(ctx, "owner-2", res.Order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}
