// Package ports declares the storage contracts the booking core depends on.
// The MySQL repositories implement them for production and bookingtest
// implements them in memory for tests.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates the one active booking
// per (user, event) unique key.
var ErrDuplicate = errors.New("duplicate active booking")

// BookingFilter narrows ListBookings.  Zero values mean "any".
type BookingFilter struct {
	UserID  uint64
	EventID uint64
	Status  model.BookingStatus
	Limit   int
	Offset  int
}

// Store is the non-transactional read side plus the transaction entry point.
type Store interface {
	GetEvent(ctx context.Context, id uint64) (model.Event, error)
	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	FindActiveBooking(ctx context.Context, userID, eventID uint64) (model.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]model.BookingDetail, error)
	BookingStats(ctx context.Context) (model.BookingStats, error)
	// StalePendingBookings returns ids of pending, unpaid bookings created
	// before cutoff.
	StalePendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)

	// WithinTx runs fn inside one transaction.  The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of writes and locking reads available inside WithinTx.
// Lock* methods hold the row until the transaction ends so a read followed
// by a write on the same row cannot interleave with another transaction.
type Tx interface {
	LockEvent(ctx context.Context, id uint64) (model.Event, error)
	SaveEventSeats(ctx context.Context, ev model.Event) error

	LockBooking(ctx context.Context, id uint64) (model.Booking, error)
	LockBookingBySession(ctx context.Context, sessionID string) (model.Booking, error)
	FindActiveBooking(ctx context.Context, userID, eventID uint64) (model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus, payment model.PaymentStatus) error
	SetCheckoutSession(ctx context.Context, id uint64, sessionID string) error
	DeleteBooking(ctx context.Context, id uint64) error

	// RecordTicketDelta appends a user_ticket_events row and applies delta to
	// the user's attended-ticket counter.
	RecordTicketDelta(ctx context.Context, ev model.TicketEvent) error
}
