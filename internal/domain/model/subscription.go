package model

import (
	"time"

	"signal-billing/internal/domain"
)

type AutoRenewStatus string

const (
	AutoRenewStatusPendingActivation AutoRenewStatus = "pending_activation"
	AutoRenewStatusActive            AutoRenewStatus = "active"
	AutoRenewStatusPaused            AutoRenewStatus = "paused"
	AutoRenewStatusSuspended         AutoRenewStatus = "suspended"
	AutoRenewStatusCancelled         AutoRenewStatus = "cancelled"
	AutoRenewStatusCompleted         AutoRenewStatus = "completed"
)

// LiveAutoRenewStatuses are the states in which a subscription still counts
// toward the one-per-(owner, subject) uniqueness rule.
var LiveAutoRenewStatuses = []AutoRenewStatus{
	AutoRenewStatusPendingActivation,
	AutoRenewStatusActive,
	AutoRenewStatusPaused,
}

const (
	DefaultCycleDays            = 30
	DefaultGracePeriodHours     = 12
	DefaultRetryIntervalMinutes = 60
	DefaultMaxRetryAttempts     = 3
)

// AutoRenewSubscription is a recurring billing schedule that re-purchases a
// subject license when the current period runs out. NextBillingAt drives the
// scheduler; retries are modeled as future billing times, never in-process
// sleeps.
type AutoRenewSubscription struct {
	ID                   string // UUID
	OwnerID              string
	SubjectID            int64
	Status               AutoRenewStatus
	CycleDays            int
	Price                int64
	PaymentMethod        PaymentMethod
	NextBillingAt        *time.Time
	LastSuccessAt        *time.Time
	LastAttemptAt        *time.Time
	ConsecutiveFailures  int
	GracePeriodHours     int
	RetryIntervalMinutes int
	MaxRetryAttempts     int
	CurrentLicenseID     *string
	LastOrderID          *string
	Meta                 map[string]interface{}
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func NewAutoRenewSubscription(id, ownerID string, subjectID int64, cycleDays int, price int64, method PaymentMethod) (*AutoRenewSubscription, error) {
	if id == "" || ownerID == "" || subjectID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if cycleDays <= 0 {
		cycleDays = DefaultCycleDays
	}
	if price < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &AutoRenewSubscription{
		ID:                   id,
		OwnerID:              ownerID,
		SubjectID:            subjectID,
		Status:               AutoRenewStatusPendingActivation,
		CycleDays:            cycleDays,
		Price:                price,
		PaymentMethod:        method,
		GracePeriodHours:     DefaultGracePeriodHours,
		RetryIntervalMinutes: DefaultRetryIntervalMinutes,
		MaxRetryAttempts:     DefaultMaxRetryAttempts,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (s *AutoRenewSubscription) IsLive() bool {
	for _, st := range LiveAutoRenewStatuses {
		if s.Status == st {
			return true
		}
	}
	return false
}

func (s *AutoRenewSubscription) RetryInterval() time.Duration {
	return time.Duration(s.RetryIntervalMinutes) * time.Minute
}

type AutoRenewAttemptStatus string

const (
	AttemptStatusSuccess AutoRenewAttemptStatus = "success"
	AttemptStatusFailed  AutoRenewAttemptStatus = "failed"
	AttemptStatusSkipped AutoRenewAttemptStatus = "skipped"
)

// AutoRenewAttempt is the immutable audit row written for every billing run
// against a subscription, successful or not.
type AutoRenewAttempt struct {
	ID                    string // ULID
	SubscriptionID        string
	Status                AutoRenewAttemptStatus
	FailReason            string
	ChargedAmount         *int64
	WalletBalanceSnapshot *int64
	OrderID               *string
	RanAt                 time.Time
}
