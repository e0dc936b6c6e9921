//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"signal-billing/internal/domain"
)

// --- Wallet Model Tests ---

func TestNewWallet(t *testing.T) {
	t.Run("should create an active zero-balance wallet", func(t *testing.T) {
		w, err := NewWallet("wal-1", "owner-1", "VND")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if w.Balance != 0 {
			t.Errorf("expected zero balance, but got %d", w.Balance)
		}
		if !w.IsActive() {
			t.Error("expected a new wallet to be active")
		}
	})

	t.Run("should fail with missing fields", func(t *testing.T) {
		if _, err := NewWallet("", "owner-1", "VND"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty id, but got %v", err)
		}
		if _, err := NewWallet("wal-1", "", "VND"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty owner, but got %v", err)
		}
	})
}

// --- Ledger Entry Tests ---

func TestNewLedgerEntry(t *testing.T) {
	t.Run("should compute balance after for a credit", func(t *testing.T) {
		e, err := NewLedgerEntry("led-1", "wal-1", LedgerTxDeposit, 500, LedgerCredit, 100)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if e.BalanceAfter != 600 {
			t.Errorf("expected balance after 600, but got %d", e.BalanceAfter)
		}
		if e.Signed() != 500 {
			t.Errorf("expected signed +500, but got %d", e.Signed())
		}
	})

	t.Run("should compute balance after for a debit", func(t *testing.T) {
		e, err := NewLedgerEntry("led-1", "wal-1", LedgerTxPurchase, 300, LedgerDebit, 1000)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if e.BalanceAfter != 700 {
			t.Errorf("expected balance after 700, but got %d", e.BalanceAfter)
		}
		if e.Signed() != -300 {
			t.Errorf("expected signed -300, but got %d", e.Signed())
		}
	})

	t.Run("should reject non-positive amounts and unknown types", func(t *testing.T) {
		if _, err := NewLedgerEntry("led-1", "wal-1", LedgerTxDeposit, 0, LedgerCredit, 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero amount, but got %v", err)
		}
		if _, err := NewLedgerEntry("led-1", "wal-1", "bribe", 100, LedgerCredit, 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for unknown tx type, but got %v", err)
		}
		if _, err := NewLedgerEntry("led-1", "wal-1", LedgerTxDeposit, 100, "sideways", 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for unknown direction, but got %v", err)
		}
	})
}

// --- Payment Intent Tests ---

func TestPaymentIntentLifecycle(t *testing.T) {
	newIntent := func(t *testing.T) *PaymentIntent {
		t.Helper()
		i, err := NewPaymentIntent("int-1", "owner-1", PurposeWalletTopup, 100_000, "VND", "SB1-TEST", nil)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		return i
	}

	t.Run("should start pending and move through processing to succeeded", func(t *testing.T) {
		i := newIntent(t)
		if !i.IsPending() || i.IsTerminal() {
			t.Fatalf("expected a pending intent, but got status %q", i.Status)
		}
		if err := i.MarkProcessing(); err != nil {
			t.Fatalf("mark processing: %v", err)
		}
		if err := i.MarkProcessing(); err != nil {
			t.Fatalf("expected second mark processing to be a no-op, but got: %v", err)
		}
		if err := i.Succeed(); err != nil {
			t.Fatalf("succeed: %v", err)
		}
		if !i.IsTerminal() {
			t.Error("expected a succeeded intent to be terminal")
		}
	})

	t.Run("should treat re-asserted success as a no-op", func(t *testing.T) {
		i := newIntent(t)
		if err := i.Succeed(); err != nil {
			t.Fatalf("succeed: %v", err)
		}
		if err := i.Succeed(); err != nil {
			t.Errorf("expected idempotent success, but got: %v", err)
		}
	})

	t.Run("should refuse transitions out of a terminal state", func(t *testing.T) {
		i := newIntent(t)
		if err := i.Fail(); err != nil {
			t.Fatalf("fail: %v", err)
		}
		if err := i.Succeed(); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState succeeding a failed intent, but got %v", err)
		}
		if err := i.MarkProcessing(); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState processing a failed intent, but got %v", err)
		}
	})

	t.Run("expire should only touch pending intents", func(t *testing.T) {
		i := newIntent(t)
		i.Expire()
		if i.Status != IntentStatusExpired {
			t.Errorf("expected expired, but got %q", i.Status)
		}

		done := newIntent(t)
		if err := done.Succeed(); err != nil {
			t.Fatalf("succeed: %v", err)
		}
		done.Expire()
		if done.Status != IntentStatusSucceeded {
			t.Errorf("expected expire to be a no-op on a succeeded intent, but got %q", done.Status)
		}
	})

	t.Run("should respect the expiry deadline", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		i, err := NewPaymentIntent("int-1", "owner-1", PurposeWalletTopup, 100_000, "VND", "SB1-TEST", &past)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !i.IsExpired(time.Now()) {
			t.Error("expected the intent to read as expired")
		}
		open := newIntent(t)
		if open.IsExpired(time.Now()) {
			t.Error("an intent without a deadline never expires")
		}
	})

	t.Run("should reject invalid construction", func(t *testing.T) {
		if _, err := NewPaymentIntent("int-1", "owner-1", "gift", 100, "VND", "SB1-TEST", nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for unknown purpose, but got %v", err)
		}
		if _, err := NewPaymentIntent("int-1", "owner-1", PurposeWalletTopup, -5, "VND", "SB1-TEST", nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for negative amount, but got %v", err)
		}
		if _, err := NewPaymentIntent("int-1", "owner-1", PurposeWalletTopup, 100, "VND", "", nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty order code, but got %v", err)
		}
	})
}

// --- Order Tests ---

func TestOrderMarkPaid(t *testing.T) {
	t.Run("should pay a pending order exactly once", func(t *testing.T) {
		o, err := NewOrder("ord-1", "owner-1", MethodWallet, "")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if o.IsPaid() {
			t.Fatal("a new order must start pending")
		}
		if err := o.MarkPaid(); err != nil {
			t.Fatalf("mark paid: %v", err)
		}
		if err := o.MarkPaid(); err != nil {
			t.Errorf("expected re-marking paid to be a no-op, but got: %v", err)
		}
	})

	t.Run("should refuse paying a cancelled order", func(t *testing.T) {
		o, err := NewOrder("ord-1", "owner-1", MethodWallet, "")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		o.Status = OrderStatusCancelled
		if err := o.MarkPaid(); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, but got %v", err)
		}
	})

	t.Run("should reject unknown payment methods", func(t *testing.T) {
		if _, err := NewOrder("ord-1", "owner-1", "barter", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, but got %v", err)
		}
	})
}

// --- License Tests ---

func TestLicenseExtendTo(t *testing.T) {
	newFinite := func(t *testing.T, end time.Time) *License {
		t.Helper()
		l, err := NewLicense("lic-1", "owner-1", 42, nil, time.Now(), &end)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		return l
	}

	t.Run("later end wins", func(t *testing.T) {
		base := time.Now().Add(10 * 24 * time.Hour)
		l := newFinite(t, base)
		later := base.Add(30 * 24 * time.Hour)
		l.ExtendTo(&later)
		if !l.EndAt.Equal(later) {
			t.Errorf("expected end %v, but got %v", later, *l.EndAt)
		}

		earlier := base.Add(-24 * time.Hour)
		l.ExtendTo(&earlier)
		if !l.EndAt.Equal(later) {
			t.Errorf("an earlier end must never shrink the license, got %v", *l.EndAt)
		}
	})

	t.Run("lifetime dominates", func(t *testing.T) {
		l := newFinite(t, time.Now().Add(24*time.Hour))
		l.ExtendTo(nil)
		if !l.IsLifetime() {
			t.Error("expected a lifetime license after extending with nil")
		}

		// Once lifetime, a finite extension changes nothing.
		end := time.Now().Add(time.Hour)
		l.ExtendTo(&end)
		if !l.IsLifetime() {
			t.Error("a lifetime license must stay lifetime")
		}
	})

	t.Run("extending reactivates an expired license", func(t *testing.T) {
		l := newFinite(t, time.Now().Add(-time.Hour))
		l.Status = LicenseStatusExpired
		future := time.Now().Add(30 * 24 * time.Hour)
		l.ExtendTo(&future)
		if !l.IsActive(time.Now()) {
			t.Error("expected the extended license to be active again")
		}
	})

	t.Run("activity window", func(t *testing.T) {
		now := time.Now()
		l := newFinite(t, now.Add(time.Hour))
		if !l.IsActive(now) {
			t.Error("expected active before the end")
		}
		if l.IsActive(now.Add(2 * time.Hour)) {
			t.Error("expected inactive past the end")
		}
		l.Status = LicenseStatusRevoked
		if l.IsActive(now) {
			t.Error("a revoked license is never active")
		}
	})
}

// --- Auto-Renew Subscription Tests ---

func TestNewAutoRenewSubscription(t *testing.T) {
	t.Run("should apply schedule defaults", func(t *testing.T) {
		s, err := NewAutoRenewSubscription("sub-1", "owner-1", 42, 0, 60_000, MethodWallet)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if s.Status != AutoRenewStatusPendingActivation {
			t.Errorf("expected pending_activation, but got %q", s.Status)
		}
		if s.CycleDays != DefaultCycleDays {
			t.Errorf("expected default cycle %d, but got %d", DefaultCycleDays, s.CycleDays)
		}
		if s.MaxRetryAttempts != DefaultMaxRetryAttempts || s.GracePeriodHours != DefaultGracePeriodHours {
			t.Errorf("expected default retry/grace settings, but got %+v", s)
		}
		if s.RetryInterval() != time.Duration(DefaultRetryIntervalMinutes)*time.Minute {
			t.Errorf("unexpected retry interval %v", s.RetryInterval())
		}
	})

	t.Run("should reject invalid construction", func(t *testing.T) {
		if _, err := NewAutoRenewSubscription("sub-1", "owner-1", 0, 30, 100, MethodWallet); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero subject, but got %v", err)
		}
		if _, err := NewAutoRenewSubscription("sub-1", "owner-1", 42, 30, -1, MethodWallet); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for negative price, but got %v", err)
		}
	})

	t.Run("liveness tracks the uniqueness rule", func(t *testing.T) {
		s, err := NewAutoRenewSubscription("sub-1", "owner-1", 42, 30, 100, MethodWallet)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		for _, st := range LiveAutoRenewStatuses {
			s.Status = st
			if !s.IsLive() {
				t.Errorf("expected %q to count as live", st)
			}
		}
		for _, st := range []AutoRenewStatus{AutoRenewStatusSuspended, AutoRenewStatusCancelled, AutoRenewStatusCompleted} {
			s.Status = st
			if s.IsLive() {
				t.Errorf("expected %q to count as dead", st)
			}
		}
	})
}
