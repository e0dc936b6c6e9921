package repository

import (
	"context"
	"time"

	"signal-billing/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.AutoRenewSubscription) error
	// FindByID locks the subscription row when tx is live; the scheduler
	// processes each due subscription under this lock.
	FindByID(ctx context.Context, tx Tx, id string) (*model.AutoRenewSubscription, error)
	// FindLiveByOwnerAndSubject enforces the one-live-subscription rule per
	// (owner, subject).
	FindLiveByOwnerAndSubject(ctx context.Context, tx Tx, ownerID string, subjectID int64) (*model.AutoRenewSubscription, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string) ([]*model.AutoRenewSubscription, error)
	// ListDue returns ids of active subscriptions with next_billing_at <= now,
	// oldest first, bounded by limit.
	ListDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]string, error)

	InsertAttempt(ctx context.Context, tx Tx, a *model.AutoRenewAttempt) error
	ListAttempts(ctx context.Context, tx Tx, subscriptionID string, limit int) ([]*model.AutoRenewAttempt, error)
}
