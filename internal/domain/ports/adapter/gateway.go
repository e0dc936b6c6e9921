package adapter

import "context"

// QRAsset is the payment method material the gateway renders for one attempt.
type QRAsset struct {
	AccountNumber string
	AccountName   string
	BankCode      string
	QRImageURL    string
	SessionID     string
}

// PaymentGateway abstracts the bank-transfer provider. CreateQR renders a
// dynamic QR carrying the exact amount and transfer memo; the webhook side of
// the provider is handled by the reconciler, not here.
type PaymentGateway interface {
	Name() string
	CreateQR(ctx context.Context, amount int64, content, bankCode string) (*QRAsset, error)
}
