package booking

import (
	"errors"

	"github.com/iliyamo/event-ticket-booking/internal/inventory"
	"github.com/iliyamo/event-ticket-booking/internal/ledger"
)

// Errors returned by Service.  Handlers map them to HTTP responses with
// errors.Is, so wrapping with %w keeps the mapping intact.
var (
	ErrAuthRequired     = errors.New("authentication required")
	ErrForbidden        = errors.New("forbidden")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrMustCancelFirst  = errors.New("confirmed booking must be cancelled before deletion")
	ErrNotPayable       = errors.New("booking is not awaiting payment")

	// Payment confirmation failures.  Each aborts the confirmation and leaves
	// the booking unpaid for reconciliation.
	ErrNoAssociatedEvent          = errors.New("booking has no associated event")
	ErrInsufficientSeatsAtConfirm = errors.New("insufficient seats at payment confirmation")
	ErrQuantityMismatch           = errors.New("confirmed quantity does not match booking")
	ErrDuplicatePayment           = errors.New("booking already paid through another checkout session")

	ErrInsufficientSeats = inventory.ErrInsufficientSeats
	ErrEventNotBookable  = inventory.ErrEventNotBookable
	ErrDuplicateBooking  = ledger.ErrDuplicateBooking
	ErrValidation        = ledger.ErrValidation
)

// IsIntegrity reports whether err is an inventory/ledger mismatch that needs
// manual reconciliation rather than a retry with different input.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrInsufficientSeatsAtConfirm) ||
		errors.Is(err, ErrQuantityMismatch) ||
		errors.Is(err, ErrNoAssociatedEvent) ||
		errors.Is(err, ErrDuplicatePayment)
}
