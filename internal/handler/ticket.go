package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/tickets"
)

// TicketRenderer produces the printable ticket of a booking.
type TicketRenderer interface {
	Render(b model.Booking, ev model.Event, holder string) ([]byte, error)
}

// TicketVerifier decodes a scanned QR payload.
type TicketVerifier interface {
	Verify(payload string) (tickets.Scan, error)
}

// EventGetter loads one event.
type EventGetter interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
}

// UserGetter loads one user.
type UserGetter interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TicketHandler serves PDF tickets for paid bookings.
type TicketHandler struct {
	Svc      *booking.Service
	Events   EventGetter
	Users    UserGetter
	Renderer TicketRenderer
	Verifier TicketVerifier
	Log      logrus.FieldLogger
}

// Download returns the ticket PDF.  Only confirmed, paid bookings have one.
func (h *TicketHandler) Download(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx := c.Request().Context()
	b, err := h.Svc.Get(ctx, callerOf(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if b.Status != model.BookingConfirmed || b.PaymentStatus != model.PaymentPaid {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is available once the booking is paid", "code": "TICKET_UNAVAILABLE"})
	}
	ev, err := h.Events.GetByID(ctx, b.EventID)
	if errors.Is(err, repository.ErrNotFound) {
		return writeError(c, h.Log, booking.ErrNoAssociatedEvent)
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	holder := fmt.Sprintf("user #%d", b.UserID)
	if u, err := h.Users.GetByID(ctx, b.UserID); err == nil {
		holder = u.Username
	}
	pdf, err := h.Renderer.Render(b, ev, holder)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=ticket-%d.pdf", b.ID))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

type verifyReq struct {
	Payload string `json:"payload"`
}

// Verify checks a scanned ticket at the door.  The QR signature must match
// and the booking must still be confirmed, paid and for the same quantity.
func (h *TicketHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil || req.Payload == "" {
		return badRequest(c, "payload is required")
	}
	scan, err := h.Verifier.Verify(req.Payload)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"valid": false, "error": "invalid ticket", "code": "INVALID_TICKET"})
	}
	b, err := h.Svc.Get(c.Request().Context(), callerOf(c), scan.BookingID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	valid := b.EventID == scan.EventID &&
		b.TicketQuantity == scan.Quantity &&
		b.Status == model.BookingConfirmed &&
		b.PaymentStatus == model.PaymentPaid
	return c.JSON(http.StatusOK, echo.Map{
		"valid":          valid,
		"booking_id":     b.ID,
		"event_id":       b.EventID,
		"quantity":       b.TicketQuantity,
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
	})
}
