package repository

import (
	"context"

	"signal-billing/internal/domain/model"
)

type IntentRepository interface {
	Save(ctx context.Context, tx Tx, i *model.PaymentIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentIntent, error)
	// FindByOrderCode matches the unique transfer memo token.
	FindByOrderCode(ctx context.Context, tx Tx, orderCode string) (*model.PaymentIntent, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.IntentStatus, referenceCode *string) error
	ListByOwner(ctx context.Context, tx Tx, ownerID string, limit, offset int) ([]*model.PaymentIntent, error)
}

type AttemptRepository interface {
	Save(ctx context.Context, tx Tx, a *model.PaymentAttempt) error
	LatestByIntent(ctx context.Context, tx Tx, intentID string) (*model.PaymentAttempt, error)
	ListByIntent(ctx context.Context, tx Tx, intentID string) ([]*model.PaymentAttempt, error)
}
