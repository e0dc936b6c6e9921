package model

import (
	"time"

	"signal-billing/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending_payment"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

type PaymentMethod string

const (
	MethodWallet       PaymentMethod = "wallet"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Order is a purchase of access to one or more signal subjects. It can be
// settled immediately from the wallet or later through a linked payment
// intent. pending_payment -> paid happens at most once.
type Order struct {
	ID            string // UUID
	OwnerID       string
	TotalAmount   int64
	Status        OrderStatus
	PaymentMethod PaymentMethod
	Description   string
	IntentID      *string // linked payment intent for bank transfer
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is one subject line in an order. LicenseDays nil means the item
// grants a lifetime license.
type OrderItem struct {
	ID                string // UUID
	OrderID           string
	SubjectID         int64
	Price             int64
	LicenseDays       *int
	AutoRenew         bool
	CycleDaysOverride *int
	AutoRenewPrice    *int64
	Meta              map[string]interface{}
}

func NewOrder(id, ownerID string, method PaymentMethod, description string) (*Order, error) {
	if id == "" || ownerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if method != MethodWallet && method != MethodBankTransfer {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Order{
		ID:            id,
		OwnerID:       ownerID,
		Status:        OrderStatusPending,
		PaymentMethod: method,
		Description:   description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (o *Order) IsPaid() bool { return o.Status == OrderStatusPaid }

// MarkPaid transitions pending_payment -> paid. Marking an already paid order
// is an idempotent no-op so settlement can be re-asserted safely.
func (o *Order) MarkPaid() error {
	switch o.Status {
	case OrderStatusPaid:
		return nil
	case OrderStatusPending:
		o.Status = OrderStatusPaid
		o.UpdatedAt = time.Now()
		return nil
	default:
		return domain.ErrInvalidState
	}
}
