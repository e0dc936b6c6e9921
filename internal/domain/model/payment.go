package model

import (
	"time"

	"signal-billing/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Payment is the gateway-level settlement record. At most one exists per
// intent (unique intent_id); it is written once in the same transaction that
// finalizes the intent and never mutated afterwards.
type Payment struct {
	ID                string // UUID
	OwnerID           string
	OrderID           *string
	IntentID          string // unique; one settlement per intent
	Amount            int64
	Status            PaymentStatus
	ProviderPaymentID string // provider transaction id, for audits
	Message           string
	Meta              map[string]interface{}
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewPayment(id, ownerID, intentID string, amount int64, providerPaymentID string) (*Payment, error) {
	if id == "" || ownerID == "" || intentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:                id,
		OwnerID:           ownerID,
		IntentID:          intentID,
		Amount:            amount,
		Status:            PaymentStatusSucceeded,
		ProviderPaymentID: providerPaymentID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
