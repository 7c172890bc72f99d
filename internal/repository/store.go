package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/ports"
)

// Store adapts the MySQL repositories to ports.Store.
type Store struct {
	db       *sql.DB
	Events   *EventRepo
	Bookings *BookingRepo
	Users    *UserRepo
}

// NewStore wires the repositories around db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		Events:   NewEventRepo(db),
		Bookings: NewBookingRepo(db),
		Users:    NewUserRepo(db),
	}
}

var _ ports.Store = (*Store)(nil)

func (s *Store) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
	return s.Events.GetByID(ctx, id)
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

func (s *Store) FindActiveBooking(ctx context.Context, userID, eventID uint64) (model.Booking, error) {
	return s.Bookings.FindActive(ctx, userID, eventID)
}

func (s *Store) ListBookings(ctx context.Context, f ports.BookingFilter) ([]model.BookingDetail, error) {
	return s.Bookings.List(ctx, f)
}

func (s *Store) BookingStats(ctx context.Context) (model.BookingStats, error) {
	return s.Bookings.Stats(ctx)
}

func (s *Store) StalePendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	return s.Bookings.StalePending(ctx, cutoff, limit)
}

// WithinTx begins a transaction, runs fn and commits when fn succeeds.  Any
// error from fn or from Commit leaves the transaction rolled back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// sqlTx binds the repositories' Tx methods to one *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
	s  *Store
}

func (t *sqlTx) LockEvent(ctx context.Context, id uint64) (model.Event, error) {
	return t.s.Events.LockTx(ctx, t.tx, id)
}

func (t *sqlTx) SaveEventSeats(ctx context.Context, ev model.Event) error {
	return t.s.Events.SaveSeatsTx(ctx, t.tx, ev)
}

func (t *sqlTx) LockBooking(ctx context.Context, id uint64) (model.Booking, error) {
	return t.s.Bookings.LockTx(ctx, t.tx, id)
}

func (t *sqlTx) LockBookingBySession(ctx context.Context, sessionID string) (model.Booking, error) {
	return t.s.Bookings.LockBySessionTx(ctx, t.tx, sessionID)
}

func (t *sqlTx) FindActiveBooking(ctx context.Context, userID, eventID uint64) (model.Booking, error) {
	return t.s.Bookings.FindActiveTx(ctx, t.tx, userID, eventID)
}

func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.s.Bookings.CreateTx(ctx, t.tx, b)
}

func (t *sqlTx) UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus, payment model.PaymentStatus) error {
	return t.s.Bookings.UpdateStatusTx(ctx, t.tx, id, status, payment)
}

func (t *sqlTx) SetCheckoutSession(ctx context.Context, id uint64, sessionID string) error {
	return t.s.Bookings.SetSessionTx(ctx, t.tx, id, sessionID)
}

func (t *sqlTx) DeleteBooking(ctx context.Context, id uint64) error {
	return t.s.Bookings.DeleteTx(ctx, t.tx, id)
}

func (t *sqlTx) RecordTicketDelta(ctx context.Context, ev model.TicketEvent) error {
	return t.s.Users.RecordTicketDeltaTx(ctx, t.tx, ev)
}
