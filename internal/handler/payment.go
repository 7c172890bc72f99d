package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
)

const maxWebhookBytes = 64 << 10

// PaymentHandler starts checkouts and receives provider webhooks.
type PaymentHandler struct {
	Svc     *booking.Service
	Gateway payment.Gateway
	Log     logrus.FieldLogger
}

// PublicKey returns the publishable provider key for browser clients.
func (h *PaymentHandler) PublicKey(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"publishable_key": h.Gateway.PublishableKey()})
}

type checkoutReq struct {
	BookingID uint64 `json:"booking_id"`
}

// Checkout opens a provider checkout session for a pending booking of the
// caller and remembers the session on the booking.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.BookingID == 0 {
		return badRequest(c, "booking_id is required")
	}
	ctx := c.Request().Context()
	caller := callerOf(c)
	b, ev, err := h.Svc.CheckoutTarget(ctx, caller, req.BookingID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	cs, err := h.Gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		BookingID:      b.ID,
		EventID:        ev.ID,
		UserID:         b.UserID,
		EventTitle:     ev.Title,
		UnitPriceCents: b.TotalPriceCents / int64(b.TicketQuantity),
		Quantity:       b.TicketQuantity,
		CustomerEmail:  b.Contact.Email,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if _, err := h.Svc.AttachCheckoutSession(ctx, caller, b.ID, cs.ID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session_id": cs.ID, "url": cs.URL})
}

// Webhook acknowledges every well-formed notification with 200 so the
// provider does not retry.  Confirmation failures are logged for
// reconciliation; only unreadable or unverifiable payloads get 400.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	n, err := h.Gateway.ParseWebhook(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		h.Log.WithError(err).Warn("webhook rejected")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid webhook payload", "code": "INVALID_WEBHOOK"})
	}
	received := echo.Map{"received": true}
	if !n.Completed {
		return c.JSON(http.StatusOK, received)
	}
	log := h.Log.WithFields(logrus.Fields{"session_id": n.SessionID, "booking_id": n.BookingID})
	if !n.Paid {
		log.Info("checkout completed without payment; awaiting async settlement")
		return c.JSON(http.StatusOK, received)
	}
	res, err := h.Svc.ConfirmPayment(c.Request().Context(),
		booking.PaymentRef{SessionID: n.SessionID, BookingID: n.BookingID}, n.Quantity)
	if err != nil {
		// ConfirmPayment has already logged the failure with its context.
		return c.JSON(http.StatusOK, received)
	}
	log.WithFields(logrus.Fields{"already_paid": res.AlreadyPaid, "rebooked": res.Rebooked}).Info("payment confirmed")
	return c.JSON(http.StatusOK, received)
}
