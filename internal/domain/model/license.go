package model

import (
	"time"

	"signal-billing/internal/domain"
)

type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusRevoked   LicenseStatus = "revoked"
)

// License grants an owner access to a subject's signals for a period. EndAt
// nil means lifetime. Renewal extends EndAt on the existing active license
// instead of stacking new rows.
type License struct {
	ID             string // UUID
	OwnerID        string
	SubjectID      int64
	OrderID        *string
	SubscriptionID *string
	Status         LicenseStatus
	StartAt        time.Time
	EndAt          *time.Time // nil = lifetime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewLicense(id, ownerID string, subjectID int64, orderID *string, startAt time.Time, endAt *time.Time) (*License, error) {
	if id == "" || ownerID == "" || subjectID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &License{
		ID:        id,
		OwnerID:   ownerID,
		SubjectID: subjectID,
		OrderID:   orderID,
		Status:    LicenseStatusActive,
		StartAt:   startAt,
		EndAt:     endAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (l *License) IsLifetime() bool { return l.EndAt == nil }

func (l *License) IsActive(now time.Time) bool {
	if l.Status != LicenseStatusActive {
		return false
	}
	return l.EndAt == nil || now.Before(*l.EndAt)
}

// ExtendTo merges a newly purchased period into the license: the later end
// wins, and a lifetime grant (nil) always dominates a finite one.
func (l *License) ExtendTo(endAt *time.Time) {
	if l.EndAt == nil {
		return // already lifetime
	}
	if endAt == nil {
		l.EndAt = nil
	} else if endAt.After(*l.EndAt) {
		end := *endAt
		l.EndAt = &end
	}
	l.Status = LicenseStatusActive
	l.UpdatedAt = time.Now()
}
