package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/ledger"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/ports"
)

// BookingHandler exposes the booking orchestrator to users and admins.
type BookingHandler struct {
	Svc *booking.Service
	Log logrus.FieldLogger
}

type createBookingReq struct {
	EventID         uint64            `json:"event_id"`
	TicketQuantity  int               `json:"ticket_quantity"`
	SpecialRequests string            `json:"special_requests"`
	ContactInfo     model.ContactInfo `json:"contact_info"`
}

// Create books seats for the caller.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.EventID == 0 {
		return badRequest(c, "event_id is required")
	}
	res, err := h.Svc.Book(c.Request().Context(), callerOf(c), booking.BookRequest{
		EventID:  req.EventID,
		Quantity: req.TicketQuantity,
		Details:  ledger.Details{SpecialRequests: req.SpecialRequests, Contact: req.ContactInfo},
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Mine lists the caller's bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	list, err := h.Svc.ListMine(c.Request().Context(), callerOf(c), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list, "count": len(list)})
}

// Get returns one booking owned by the caller, or any booking for admins.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.Svc.Get(c.Request().Context(), callerOf(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel cancels a booking and releases its seats.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.Svc.Cancel(c.Request().Context(), callerOf(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled", "booking": b})
}

// Delete removes a booking.  Owners may delete pending or cancelled
// bookings; confirmed ones need an admin.  Routed for DELETE and for the
// PUT/POST fallbacks used by clients that cannot send DELETE.
func (h *BookingHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.Svc.Delete(c.Request().Context(), callerOf(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking deleted", "id": b.ID})
}

// AdminList lists bookings across users, optionally filtered.
func (h *BookingHandler) AdminList(c echo.Context) error {
	f := ports.BookingFilter{
		Status: model.BookingStatus(c.QueryParam("status")),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if f.Status != "" && !f.Status.Valid() {
		return badRequest(c, "unknown status")
	}
	if s := c.QueryParam("event_id"); s != "" {
		id, ok := parseUint(s)
		if !ok {
			return badRequest(c, "invalid event_id")
		}
		f.EventID = id
	}
	if s := c.QueryParam("user_id"); s != "" {
		id, ok := parseUint(s)
		if !ok {
			return badRequest(c, "invalid user_id")
		}
		f.UserID = id
	}
	list, err := h.Svc.ListAll(c.Request().Context(), callerOf(c), f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list, "count": len(list)})
}

// AdminStats returns ledger totals.
func (h *BookingHandler) AdminStats(c echo.Context) error {
	st, err := h.Svc.Stats(c.Request().Context(), callerOf(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

type statusReq struct {
	Status        model.BookingStatus `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

// AdminSetStatus overrides status fields without touching seats.
func (h *BookingHandler) AdminSetStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	b, err := h.Svc.AdminSetStatus(c.Request().Context(), callerOf(c), id, req.Status, req.PaymentStatus)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}
