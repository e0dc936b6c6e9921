package adapter

import "context"

type EventType string

const (
	EventOrderPaid     EventType = "order_paid"
	EventLicenseIssued EventType = "license_issued"
	EventTopupCredited EventType = "topup_credited"
	EventAutoRenewed   EventType = "auto_renewed"
	EventRenewFailed   EventType = "auto_renew_failed"
)

// Event is the hand-off to the external notification component. Delivery is
// best effort; billing state never depends on it.
type Event struct {
	Type      EventType
	OwnerID   string
	SubjectID *int64
	OrderID   *string
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
