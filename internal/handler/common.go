package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/ledger"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// getUserID extracts the user_id placed in the context by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// callerOf returns the authenticated identity of the request.  An
// unauthenticated request yields the zero Caller, which the booking service
// rejects with ErrAuthRequired.
func callerOf(c echo.Context) booking.Caller {
	uid, err := getUserID(c)
	if err != nil {
		return booking.Caller{}
	}
	role, _ := c.Get("role").(string)
	return booking.Caller{UserID: uid, Role: role}
}

// pathID parses the named path parameter as a positive id.
func pathID(c echo.Context, name string) (uint64, bool) {
	return parseUint(c.Param(name))
}

func parseUint(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil && n > 0
}

func queryInt(c echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return n
	}
	return def
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "VALIDATION_ERROR"})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{booking.ErrAuthRequired, http.StatusUnauthorized, "AUTH_REQUIRED"},
	{booking.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{booking.ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
	{booking.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND"},
	{repository.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{booking.ErrInsufficientSeats, http.StatusConflict, "INSUFFICIENT_SEATS"},
	{booking.ErrDuplicateBooking, http.StatusConflict, "DUPLICATE_BOOKING"},
	{booking.ErrAlreadyCancelled, http.StatusConflict, "ALREADY_CANCELLED"},
	{booking.ErrMustCancelFirst, http.StatusConflict, "MUST_CANCEL_FIRST"},
	{booking.ErrEventNotBookable, http.StatusConflict, "EVENT_NOT_BOOKABLE"},
	{booking.ErrNotPayable, http.StatusConflict, "NOT_PAYABLE"},
	{booking.ErrNoAssociatedEvent, http.StatusConflict, "NO_ASSOCIATED_EVENT"},
	{booking.ErrInsufficientSeatsAtConfirm, http.StatusConflict, "INSUFFICIENT_SEATS_AT_CONFIRM"},
	{booking.ErrQuantityMismatch, http.StatusConflict, "QUANTITY_MISMATCH"},
	{booking.ErrDuplicatePayment, http.StatusConflict, "DUPLICATE_PAYMENT"},
	{repository.ErrEmailExists, http.StatusConflict, "EMAIL_EXISTS"},
	{repository.ErrConflict, http.StatusConflict, "CONFLICT"},
	{payment.ErrDisabled, http.StatusServiceUnavailable, "PAYMENTS_DISABLED"},
}

// writeError maps a domain error to its HTTP status and machine code.
// Unknown errors are logged and reported as 500 without details.
func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field, "code": "VALIDATION_ERROR"})
	}
	if errors.Is(err, booking.ErrValidation) {
		return badRequest(c, err.Error())
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"error": m.err.Error(), "code": m.code})
		}
	}
	log.WithError(err).WithFields(logrus.Fields{"method": c.Request().Method, "route": c.Path()}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "INTERNAL"})
}
