package payment

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/ports/adapter"
	"signal-billing/internal/infra/redis"
)

// RateLimiter bounds outbound gateway operations. Satisfied by the redis
// rate limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ adapter.PaymentGateway = (*SePayGateway)(nil)

// SePayGateway renders VietQR payment assets through SePay. The QR image
// endpoint is stateless; matching the resulting bank transfer back to an
// intent happens through the webhook, not through this client.
type SePayGateway struct {
	accountNumber string
	accountName   string
	bankCode      string
	qrBaseURL     string
	limiter       RateLimiter
	rateLimit     int
	rateWindow    time.Duration
}

type SePayOption func(*SePayGateway)

// WithRateLimiter throttles QR creation across all owners.
func WithRateLimiter(l RateLimiter, limit int, window time.Duration) SePayOption {
	return func(g *SePayGateway) {
		g.limiter = l
		g.rateLimit = limit
		g.rateWindow = window
	}
}

func NewSePayGateway(accountNumber, accountName, bankCode string, opts ...SePayOption) *SePayGateway {
	g := &SePayGateway{
		accountNumber: accountNumber,
		accountName:   accountName,
		bankCode:      bankCode,
		qrBaseURL:     "https://qr.sepay.vn/img",
		rateLimit:     30,
		rateWindow:    time.Minute,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *SePayGateway) Name() string { return "sepay" }

// CreateQR builds a dynamic VietQR image URL carrying the exact amount and
// the transfer memo the reconciler will match on.
func (g *SePayGateway) CreateQR(ctx context.Context, amount int64, content, bankCode string) (*adapter.QRAsset, error) {
	if amount <= 0 || content == "" {
		return nil, domain.ErrInvalidArgument
	}
	if g.limiter != nil {
		ok, err := g.limiter.Allow(ctx, redis.GatewayKey(g.Name()), g.rateLimit, g.rateWindow)
		if err != nil {
			return nil, fmt.Errorf("gateway rate limit check: %w", err)
		}
		if !ok {
			return nil, domain.ErrOperationFailed
		}
	}

	bank := g.bankCode
	if bankCode != "" {
		bank = bankCode
	}

	q := url.Values{}
	q.Set("acc", g.accountNumber)
	q.Set("bank", bank)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("des", content)
	q.Set("template", "compact")

	return &adapter.QRAsset{
		AccountNumber: g.accountNumber,
		AccountName:   g.accountName,
		BankCode:      bank,
		QRImageURL:    g.qrBaseURL + "?" + q.Encode(),
	}, nil
}
