// Package ledger owns booking records and the one active booking per
// (user, event) rule.  It never touches seat counters; the booking service
// sequences ledger writes with inventory changes in the same transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/ports"
)

// Limits on booking input.
const (
	MinQuantity        = 1
	MaxQuantity        = 10
	MaxSpecialRequests = 500
	MaxPhoneLen        = 32
)

var (
	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateBooking means the user already holds an active booking for
	// the event.
	ErrDuplicateBooking = errors.New("duplicate booking")
)

// ValidationError names the offending field.  errors.Is(err, ErrValidation)
// holds for every ValidationError.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Details are the optional user-supplied parts of a booking.
type Details struct {
	SpecialRequests string
	Contact         model.ContactInfo
}

// ActiveFinder is satisfied by both ports.Store and ports.Tx so the duplicate
// check can run before or inside a transaction.
type ActiveFinder interface {
	FindActiveBooking(ctx context.Context, userID, eventID uint64) (model.Booking, error)
}

// Ledger creates and transitions booking records.
type Ledger struct {
	now func() time.Time
}

// New returns a Ledger stamping bookings with the current UTC time.
func New() *Ledger { return &Ledger{now: func() time.Time { return time.Now().UTC() }} }

// NewWithClock returns a Ledger using now for timestamps.
func NewWithClock(now func() time.Time) *Ledger { return &Ledger{now: now} }

// Validate checks quantity and details without touching storage.
func (l *Ledger) Validate(qty int, d Details) error {
	if qty < MinQuantity || qty > MaxQuantity {
		return &ValidationError{Field: "ticket_quantity", Msg: fmt.Sprintf("must be between %d and %d", MinQuantity, MaxQuantity)}
	}
	if utf8.RuneCountInString(d.SpecialRequests) > MaxSpecialRequests {
		return &ValidationError{Field: "special_requests", Msg: fmt.Sprintf("must be at most %d characters", MaxSpecialRequests)}
	}
	if e := strings.TrimSpace(d.Contact.Email); e != "" {
		if _, err := mail.ParseAddress(e); err != nil {
			return &ValidationError{Field: "contact_info.email", Msg: "invalid email"}
		}
	}
	if len(strings.TrimSpace(d.Contact.Phone)) > MaxPhoneLen {
		return &ValidationError{Field: "contact_info.phone", Msg: fmt.Sprintf("must be at most %d characters", MaxPhoneLen)}
	}
	return nil
}

// CheckDuplicate returns ErrDuplicateBooking when userID already has a
// non-cancelled booking for eventID.
func (l *Ledger) CheckDuplicate(ctx context.Context, f ActiveFinder, userID, eventID uint64) error {
	_, err := f.FindActiveBooking(ctx, userID, eventID)
	switch {
	case err == nil:
		return ErrDuplicateBooking
	case errors.Is(err, ports.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("find active booking: %w", err)
	}
}

// Create validates the input, re-checks for an active booking and inserts a
// pending booking priced at qty × the event's current ticket price.  A
// unique-key violation from storage is reported as ErrDuplicateBooking.
func (l *Ledger) Create(ctx context.Context, tx ports.Tx, userID uint64, ev model.Event, qty int, d Details) (model.Booking, error) {
	if err := l.Validate(qty, d); err != nil {
		return model.Booking{}, err
	}
	if err := l.CheckDuplicate(ctx, tx, userID, ev.ID); err != nil {
		return model.Booking{}, err
	}
	now := l.now()
	b := model.Booking{
		UserID:          userID,
		EventID:         ev.ID,
		TicketQuantity:  qty,
		TotalPriceCents: int64(qty) * ev.TicketPriceCents,
		Status:          model.BookingPending,
		PaymentStatus:   model.PaymentPending,
		BookedAt:        now,
		SpecialRequests: strings.TrimSpace(d.SpecialRequests),
		Contact: model.ContactInfo{
			Phone: strings.TrimSpace(d.Contact.Phone),
			Email: strings.ToLower(strings.TrimSpace(d.Contact.Email)),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertBooking(ctx, &b); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return model.Booking{}, ErrDuplicateBooking
		}
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	return b, nil
}

// SetStatus changes the lifecycle status of b and returns the updated value.
func (l *Ledger) SetStatus(ctx context.Context, tx ports.Tx, b model.Booking, status model.BookingStatus) (model.Booking, error) {
	if !status.Valid() {
		return b, &ValidationError{Field: "status", Msg: "unknown booking status"}
	}
	return l.transition(ctx, tx, b, status, b.PaymentStatus)
}

// SetPaymentStatus changes the payment status of b and returns the updated value.
func (l *Ledger) SetPaymentStatus(ctx context.Context, tx ports.Tx, b model.Booking, ps model.PaymentStatus) (model.Booking, error) {
	if !ps.Valid() {
		return b, &ValidationError{Field: "payment_status", Msg: "unknown payment status"}
	}
	return l.transition(ctx, tx, b, b.Status, ps)
}

// SetStatuses applies both fields in one write.
func (l *Ledger) SetStatuses(ctx context.Context, tx ports.Tx, b model.Booking, status model.BookingStatus, ps model.PaymentStatus) (model.Booking, error) {
	if !status.Valid() {
		return b, &ValidationError{Field: "status", Msg: "unknown booking status"}
	}
	if !ps.Valid() {
		return b, &ValidationError{Field: "payment_status", Msg: "unknown payment status"}
	}
	return l.transition(ctx, tx, b, status, ps)
}

func (l *Ledger) transition(ctx context.Context, tx ports.Tx, b model.Booking, status model.BookingStatus, ps model.PaymentStatus) (model.Booking, error) {
	if err := tx.UpdateBookingStatus(ctx, b.ID, status, ps); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return b, ErrDuplicateBooking
		}
		return b, fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	b.Status = status
	b.PaymentStatus = ps
	b.UpdatedAt = l.now()
	return b, nil
}

// SetCheckoutSession records the provider session id on b.
func (l *Ledger) SetCheckoutSession(ctx context.Context, tx ports.Tx, b model.Booking, sessionID string) (model.Booking, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return b, &ValidationError{Field: "checkout_session_id", Msg: "required"}
	}
	if err := tx.SetCheckoutSession(ctx, b.ID, sessionID); err != nil {
		return b, fmt.Errorf("set checkout session on booking %d: %w", b.ID, err)
	}
	b.CheckoutSessionID = sessionID
	b.UpdatedAt = l.now()
	return b, nil
}

// Delete removes the booking row.  Seat bookkeeping is the caller's job.
func (l *Ledger) Delete(ctx context.Context, tx ports.Tx, id uint64) error {
	if err := tx.DeleteBooking(ctx, id); err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	return nil
}
