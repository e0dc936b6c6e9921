package model

import (
	"time"

	"signal-billing/internal/domain"
)

type IntentPurpose string

const (
	PurposeWalletTopup  IntentPurpose = "wallet_topup"
	PurposeOrderPayment IntentPurpose = "order_payment"
	PurposePurchase     IntentPurpose = "purchase"
	PurposeWithdraw     IntentPurpose = "withdraw"
)

type IntentStatus string

const (
	IntentStatusRequiresMethod IntentStatus = "requires_payment_method"
	IntentStatusProcessing     IntentStatus = "processing"
	IntentStatusSucceeded      IntentStatus = "succeeded"
	IntentStatusFailed         IntentStatus = "failed"
	IntentStatusExpired        IntentStatus = "expired"
)

var validPurposes = map[IntentPurpose]bool{
	PurposeWalletTopup:  true,
	PurposeOrderPayment: true,
	PurposePurchase:     true,
	PurposeWithdraw:     true,
}

// PaymentIntent is a request to receive money via bank transfer. OrderCode is
// the unique transfer memo the payer puts on the wire; the reconciler matches
// incoming bank transactions against it. Status is monotonic once terminal.
type PaymentIntent struct {
	ID            string // UUID
	OwnerID       string
	OrderID       *string // set when the intent pays for an order
	Purpose       IntentPurpose
	Amount        int64
	Currency      string
	Status        IntentStatus
	OrderCode     string  // globally unique match token
	ReferenceCode *string // provider reference after reconciliation
	QRCodeURL     string
	ExpiresAt     *time.Time
	Meta          map[string]interface{}
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPaymentIntent(id, ownerID string, purpose IntentPurpose, amount int64, currency, orderCode string, expiresAt *time.Time) (*PaymentIntent, error) {
	if id == "" || ownerID == "" || orderCode == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !validPurposes[purpose] {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentIntent{
		ID:        id,
		OwnerID:   ownerID,
		Purpose:   purpose,
		Amount:    amount,
		Currency:  currency,
		Status:    IntentStatusRequiresMethod,
		OrderCode: orderCode,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (i *PaymentIntent) IsPending() bool {
	return i.Status == IntentStatusRequiresMethod || i.Status == IntentStatusProcessing
}

func (i *PaymentIntent) IsTerminal() bool { return !i.IsPending() }

func (i *PaymentIntent) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// MarkProcessing records that an attempt (QR/bank details) exists for this
// intent. Calling it again while already processing is a no-op.
func (i *PaymentIntent) MarkProcessing() error {
	switch i.Status {
	case IntentStatusRequiresMethod:
		i.Status = IntentStatusProcessing
		i.UpdatedAt = time.Now()
		return nil
	case IntentStatusProcessing:
		return nil
	default:
		return domain.ErrInvalidState
	}
}

// Succeed is terminal. Re-asserting success on an already succeeded intent is
// an idempotent no-op; any other terminal state is a hard error.
func (i *PaymentIntent) Succeed() error {
	if i.Status == IntentStatusSucceeded {
		return nil
	}
	if !i.IsPending() {
		return domain.ErrInvalidState
	}
	i.Status = IntentStatusSucceeded
	i.UpdatedAt = time.Now()
	return nil
}

func (i *PaymentIntent) Fail() error {
	if i.Status == IntentStatusFailed {
		return nil
	}
	if !i.IsPending() {
		return domain.ErrInvalidState
	}
	i.Status = IntentStatusFailed
	i.UpdatedAt = time.Now()
	return nil
}

// Expire moves a pending intent to expired. On any terminal intent it is an
// idempotent no-op.
func (i *PaymentIntent) Expire() {
	if i.IsPending() {
		i.Status = IntentStatusExpired
		i.UpdatedAt = time.Now()
	}
}

// PaymentAttempt is one generated payment method (QR code, bank account
// details) for an intent. An intent can accumulate several attempts while it
// stays pending.
type PaymentAttempt struct {
	ID                string // UUID
	IntentID          string
	Status            IntentStatus
	BankCode          string
	AccountNumber     string
	AccountName       string
	TransferContent   string // exact memo the payer must use
	TransferAmount    int64
	QRImageURL        string
	ProviderSessionID string
	ExpiresAt         *time.Time
	Meta              map[string]interface{}
	CreatedAt         time.Time
}
