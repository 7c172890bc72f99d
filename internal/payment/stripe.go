package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Metadata keys attached to every checkout session.
const (
	MetaBookingID      = "bookingId"
	MetaEventID        = "eventId"
	MetaUserID         = "userId"
	MetaTicketQuantity = "ticketQuantity"
)

// StripeConfig holds the provider credentials and redirect targets.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	SuccessURL     string
	CancelURL      string
	Currency       string
}

// Stripe implements Gateway with Stripe Checkout.
type Stripe struct {
	cfg    StripeConfig
	create func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripe returns a gateway using the Stripe API backend.
func NewStripe(cfg StripeConfig) *Stripe {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	sc := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	return &Stripe{cfg: cfg, create: sc.New}
}

var _ Gateway = (*Stripe)(nil)

func (s *Stripe) PublishableKey() string { return s.cfg.PublishableKey }

// CreateCheckout opens a payment-mode session for one line item.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if s.cfg.SecretKey == "" {
		return CheckoutSession{}, ErrDisabled
	}
	params := s.checkoutParams(req)
	params.Context = ctx
	cs, err := s.create(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe checkout for booking %d: %w", req.BookingID, err)
	}
	return CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

func (s *Stripe) checkoutParams(req CheckoutRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.cfg.SuccessURL),
		CancelURL:          stripe.String(s.cfg.CancelURL),
		ClientReferenceID:  stripe.String(strconv.FormatUint(req.BookingID, 10)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.cfg.Currency),
				UnitAmount: stripe.Int64(req.UnitPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.EventTitle),
				},
			},
			Quantity: stripe.Int64(int64(req.Quantity)),
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(MetaBookingID, strconv.FormatUint(req.BookingID, 10))
	params.AddMetadata(MetaEventID, strconv.FormatUint(req.EventID, 10))
	params.AddMetadata(MetaUserID, strconv.FormatUint(req.UserID, 10))
	params.AddMetadata(MetaTicketQuantity, strconv.Itoa(req.Quantity))
	return params
}

// ParseWebhook verifies and decodes a webhook.  Without a webhook secret the
// payload is decoded unverified, which is only meant for local development.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Notification, error) {
	var event stripe.Event
	if s.cfg.WebhookSecret != "" {
		ev, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		event = ev
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	n := &Notification{EventType: string(event.Type)}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		// Delayed payment methods complete unpaid and settle later.
	default:
		return n, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event without data", ErrMalformed)
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: checkout session: %v", ErrMalformed, err)
	}
	n.Completed = true
	n.SessionID = cs.ID
	n.Paid = cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	if v := cs.Metadata[MetaBookingID]; v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: booking id %q", ErrMalformed, v)
		}
		n.BookingID = id
	}
	if v := cs.Metadata[MetaTicketQuantity]; v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: ticket quantity %q", ErrMalformed, v)
		}
		n.Quantity = q
	}
	return n, nil
}
