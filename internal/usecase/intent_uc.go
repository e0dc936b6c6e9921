package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ordercode"
	"signal-billing/internal/domain/ports/adapter"
	"signal-billing/internal/domain/ports/repository"
	"signal-billing/internal/infra/metrics"
)

// DefaultIntentTTL bounds how long a transfer memo stays matchable.
const DefaultIntentTTL = 60 * time.Minute

var _ IntentUseCase = (*intentUC)(nil)

type IntentUseCase interface {
	// CreateTopup creates a wallet top-up intent for the owner.
	CreateTopup(ctx context.Context, ownerID string, amount int64, meta map[string]interface{}) (*model.PaymentIntent, error)
	// Create creates an intent for any purpose; used by the order issuer for
	// bank-transfer orders.
	Create(ctx context.Context, ownerID string, purpose model.IntentPurpose, amount int64, meta map[string]interface{}) (*model.PaymentIntent, error)
	// CreateAttempt renders QR/bank details for a pending intent. The first
	// attempt moves the intent from requires_payment_method to processing.
	CreateAttempt(ctx context.Context, ownerID, intentID, bankCode string) (*model.PaymentAttempt, error)
	Get(ctx context.Context, ownerID, intentID string) (*model.PaymentIntent, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.PaymentIntent, error)
	// Expire marks a pending intent expired; a no-op on terminal intents.
	Expire(ctx context.Context, intentID string) error
}

type intentUC struct {
	intents  repository.IntentRepository
	attempts repository.AttemptRepository
	wallets  WalletUseCase
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	ttl      time.Duration
	log      *zerolog.Logger
}

func NewIntentUseCase(intents repository.IntentRepository, attempts repository.AttemptRepository, wallets WalletUseCase, gateway adapter.PaymentGateway, tm repository.TransactionManager, ttl time.Duration, logger *zerolog.Logger) *intentUC {
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	l := logger.With().Str("component", "IntentUC").Logger()
	return &intentUC{intents: intents, attempts: attempts, wallets: wallets, gateway: gateway, tm: tm, ttl: ttl, log: &l}
}

func (u *intentUC) CreateTopup(ctx context.Context, ownerID string, amount int64, meta map[string]interface{}) (*model.PaymentIntent, error) {
	return u.Create(ctx, ownerID, model.PurposeWalletTopup, amount, meta)
}

func (u *intentUC) Create(ctx context.Context, ownerID string, purpose model.IntentPurpose, amount int64, meta map[string]interface{}) (*model.PaymentIntent, error) {
	w, err := u.wallets.GetOrCreate(ctx, ownerID, DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if !w.IsActive() {
		return nil, domain.ErrWalletSuspended
	}

	expiresAt := time.Now().Add(u.ttl)
	intent, err := model.NewPaymentIntent(uuid.NewString(), ownerID, purpose, amount, DefaultCurrency, ordercode.New(), &expiresAt)
	if err != nil {
		return nil, err
	}
	intent.Meta = meta
	if err := u.intents.Save(ctx, repository.NoTX, intent); err != nil {
		return nil, err
	}
	metrics.IncIntentCreated(string(purpose))
	u.log.Info().
		Str("intent_id", intent.ID).
		Str("purpose", string(purpose)).
		Int64("amount", amount).
		Str("order_code", intent.OrderCode).
		Msg("payment intent created")
	return intent, nil
}

func (u *intentUC) CreateAttempt(ctx context.Context, ownerID, intentID, bankCode string) (*model.PaymentAttempt, error) {
	intent, err := u.intents.FindByID(ctx, repository.NoTX, intentID)
	if err != nil {
		return nil, err
	}
	if intent.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	// Expiry is checked lazily by every consumer; there is no expiry timer.
	if intent.IsExpired(time.Now()) {
		_ = u.Expire(ctx, intent.ID)
		return nil, domain.ErrIntentExpired
	}
	if !intent.IsPending() {
		return nil, domain.ErrInvalidState
	}

	qr, err := u.gateway.CreateQR(ctx, intent.Amount, intent.OrderCode, bankCode)
	if err != nil {
		return nil, err
	}

	attempt := &model.PaymentAttempt{
		ID:                uuid.NewString(),
		IntentID:          intent.ID,
		Status:            model.IntentStatusRequiresMethod,
		BankCode:          qr.BankCode,
		AccountNumber:     qr.AccountNumber,
		AccountName:       qr.AccountName,
		TransferContent:   intent.OrderCode,
		TransferAmount:    intent.Amount,
		QRImageURL:        qr.QRImageURL,
		ProviderSessionID: qr.SessionID,
		ExpiresAt:         intent.ExpiresAt,
		Meta:              map[string]interface{}{"bank_code": bankCode},
		CreatedAt:         time.Now(),
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.attempts.Save(ctx, tx, attempt); err != nil {
			return err
		}
		if err := intent.MarkProcessing(); err != nil {
			return err
		}
		return u.intents.UpdateStatus(ctx, tx, intent.ID, intent.Status, nil)
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (u *intentUC) Get(ctx context.Context, ownerID, intentID string) (*model.PaymentIntent, error) {
	intent, err := u.intents.FindByID(ctx, repository.NoTX, intentID)
	if err != nil {
		return nil, err
	}
	if intent.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return intent, nil
}

func (u *intentUC) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.PaymentIntent, error) {
	return u.intents.ListByOwner(ctx, repository.NoTX, ownerID, limit, offset)
}

func (u *intentUC) Expire(ctx context.Context, intentID string) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		intent, err := u.intents.FindByID(ctx, tx, intentID)
		if err != nil {
			return err
		}
		if !intent.IsPending() {
			return nil
		}
		intent.Expire()
		metrics.IncIntentExpired()
		return u.intents.UpdateStatus(ctx, tx, intent.ID, intent.Status, nil)
	})
}
