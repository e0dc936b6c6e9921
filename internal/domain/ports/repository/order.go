package repository

import (
	"context"

	"signal-billing/internal/domain/model"
)

type OrderRepository interface {
	// Save inserts the order and its items.
	Save(ctx context.Context, tx Tx, o *model.Order) error
	// FindByID loads the order with items; takes a FOR UPDATE lock on the
	// order row when tx is a live transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	FindByIntent(ctx context.Context, tx Tx, intentID string) (*model.Order, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.OrderStatus) error
	LinkIntent(ctx context.Context, tx Tx, id string, intentID string) error
	ListByOwner(ctx context.Context, tx Tx, ownerID string, statuses []model.OrderStatus, limit, offset int) ([]*model.Order, error)
}

type LicenseRepository interface {
	Save(ctx context.Context, tx Tx, l *model.License) error
	// FindActiveByOwnerAndSubject returns the semantically-current active
	// license, locking it when tx is live so renewal merges serialize.
	FindActiveByOwnerAndSubject(ctx context.Context, tx Tx, ownerID string, subjectID int64) (*model.License, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string, limit, offset int) ([]*model.License, error)
	DetachSubscription(ctx context.Context, tx Tx, subscriptionID string) error
	// ExpireDue flips active licenses whose end_at has passed to expired,
	// returning how many rows changed.
	ExpireDue(ctx context.Context, tx Tx, limit int) (int, error)
}

// SubjectRepository is the read-only view of the sellable signal subjects.
type SubjectRepository interface {
	// FilterExisting returns the subset of ids that exist.
	FilterExisting(ctx context.Context, tx Tx, ids []int64) (map[int64]bool, error)
}
