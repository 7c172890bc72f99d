// Package payment talks to the card payment provider: it opens hosted
// checkout sessions for pending bookings and turns provider webhooks into
// confirmation notices.
package payment

import (
	"context"
	"errors"
)

// ErrDisabled is returned when no provider credentials are configured.
var ErrDisabled = errors.New("payments are not configured")

// ErrMalformed marks webhook payloads that cannot be parsed or verified.
var ErrMalformed = errors.New("malformed webhook")

// CheckoutRequest describes one booking to be paid.
type CheckoutRequest struct {
	BookingID      uint64
	EventID        uint64
	UserID         uint64
	EventTitle     string
	UnitPriceCents int64
	Quantity       int
	CustomerEmail  string
}

// CheckoutSession is the provider-side session the client is redirected to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Notification is a parsed webhook.  Completed is set for a finished
// checkout session, either at completion or when a delayed payment settles;
// it is false for events the service acknowledges without acting on.
type Notification struct {
	EventType string
	Completed bool
	SessionID string
	BookingID uint64
	Quantity  int
	Paid      bool
}

// Gateway is the provider abstraction used by the HTTP layer.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*Notification, error)
	PublishableKey() string
}
