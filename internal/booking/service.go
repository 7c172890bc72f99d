// Package booking coordinates the event inventory and the booking ledger.
// It is the only place that performs compound seat/booking operations, and
// it decides on compensating actions when a later step fails.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/inventory"
	"github.com/iliyamo/event-ticket-booking/internal/ledger"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/ports"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
)

// Publisher receives booking events after commit.
type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// AvailabilityCache stores derived availability views keyed by event id.
type AvailabilityCache interface {
	Get(ctx context.Context, eventID uint64) (model.Availability, bool, error)
	Set(ctx context.Context, a model.Availability) error
	Invalidate(ctx context.Context, eventID uint64) error
}

// Caller is the authenticated identity performing an operation.
type Caller struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

func (c Caller) check() error {
	if c.UserID == 0 {
		return ErrAuthRequired
	}
	return nil
}

func (c Caller) canAccess(b model.Booking) bool {
	return c.IsAdmin() || b.UserID == c.UserID
}

// ResponsePurger drops cached HTTP responses that embed seat counters.
type ResponsePurger interface {
	Purge(ctx context.Context) error
}

// Options configures optional collaborators of Service.  Nil Publisher,
// Cache and Responses disable publishing and caching.
type Options struct {
	Publisher      Publisher
	Cache          AvailabilityCache
	Responses      ResponsePurger
	Logger         *logrus.Logger
	LimitedPercent int
	Now            func() time.Time
}

// Service implements booking, cancellation, deletion, administrative
// overrides and payment confirmation on top of a ports.Store.
type Service struct {
	store          ports.Store
	ledger         *ledger.Ledger
	pub            Publisher
	cache          AvailabilityCache
	responses      ResponsePurger
	log            *logrus.Logger
	limitedPercent int
	now            func() time.Time
}

// NewService returns a Service backed by store.
func NewService(store ports.Store, opts Options) *Service {
	s := &Service{
		store:          store,
		pub:            opts.Publisher,
		cache:          opts.Cache,
		responses:      opts.Responses,
		log:            opts.Logger,
		limitedPercent: opts.LimitedPercent,
		now:            opts.Now,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.limitedPercent <= 0 {
		s.limitedPercent = inventory.DefaultLimitedPercent
	}
	s.ledger = ledger.NewWithClock(s.now)
	return s
}

// BookRequest is the input of Book.
type BookRequest struct {
	EventID  uint64
	Quantity int
	Details  ledger.Details
}

// BookResult is the created booking and the event's remaining seats right
// after the reservation.
type BookResult struct {
	Booking   model.Booking `json:"booking"`
	SeatsLeft int           `json:"seats_left"`
}

// Book reserves seats and creates a pending booking.
//
// The event row is locked only while seats are taken.  The booking insert
// and the attended-ticket update run in a second transaction; if that fails
// the reservation is given back by a compensating release.
func (s *Service) Book(ctx context.Context, caller Caller, req BookRequest) (BookResult, error) {
	if err := caller.check(); err != nil {
		return BookResult{}, err
	}
	if err := s.ledger.Validate(req.Quantity, req.Details); err != nil {
		return BookResult{}, err
	}
	ev, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return BookResult{}, ErrEventNotFound
		}
		return BookResult{}, fmt.Errorf("load event %d: %w", req.EventID, err)
	}
	if err := inventory.CanReserve(ev, req.Quantity); err != nil {
		return BookResult{}, err
	}
	if err := s.ledger.CheckDuplicate(ctx, s.store, caller.UserID, ev.ID); err != nil {
		return BookResult{}, err
	}

	var reserved model.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		locked, err := tx.LockEvent(ctx, req.EventID)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		next, err := inventory.Reserve(locked, req.Quantity)
		if err != nil {
			return err
		}
		if err := tx.SaveEventSeats(ctx, next); err != nil {
			return fmt.Errorf("save event seats: %w", err)
		}
		reserved = next
		return nil
	})
	if err != nil {
		return BookResult{}, err
	}

	var created model.Booking
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := s.ledger.Create(ctx, tx, caller.UserID, reserved, req.Quantity, req.Details)
		if err != nil {
			return err
		}
		if err := tx.RecordTicketDelta(ctx, model.TicketEvent{
			UserID:    b.UserID,
			BookingID: b.ID,
			Delta:     b.TicketQuantity,
			Reason:    model.TicketReasonBooked,
			CreatedAt: s.now(),
		}); err != nil {
			return fmt.Errorf("record ticket delta: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		s.compensateReservation(ctx, req.EventID, req.Quantity, err)
		return BookResult{}, err
	}

	s.afterCommit(ctx, queue.NewBookingEvent(queue.TypeBookingCreated, created, s.now()).WithSeatsLeft(reserved.SeatsLeft), created.EventID)
	s.log.WithFields(logrus.Fields{
		"booking_id": created.ID,
		"user_id":    created.UserID,
		"event_id":   created.EventID,
		"quantity":   created.TicketQuantity,
		"seats_left": reserved.SeatsLeft,
	}).Info("booking created")
	return BookResult{Booking: created, SeatsLeft: reserved.SeatsLeft}, nil
}

// compensateReservation gives back seats taken by a Book call whose ledger
// step failed.  The request context may already be cancelled, so the
// release runs on a detached context.
func (s *Service) compensateReservation(ctx context.Context, eventID uint64, qty int, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.store.WithinTx(cctx, func(ctx context.Context, tx ports.Tx) error {
		ev, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		return tx.SaveEventSeats(ctx, inventory.Release(ev, qty))
	})
	entry := s.log.WithFields(logrus.Fields{"event_id": eventID, "quantity": qty, "cause": cause.Error()})
	if err != nil {
		entry.WithError(err).Error("compensating release failed; seats need manual reconciliation")
		return
	}
	entry.Warn("booking aborted; reservation released")
	s.invalidate(ctx, eventID)
}

// Cancel releases the booking's seats, decrements the owner's attended
// counter and marks it cancelled, all in one transaction.
func (s *Service) Cancel(ctx context.Context, caller Caller, bookingID uint64) (model.Booking, error) {
	if err := caller.check(); err != nil {
		return model.Booking{}, err
	}
	b, seatsLeft, err := s.cancel(ctx, bookingID, func(b model.Booking) error {
		if !caller.canAccess(b) {
			return ErrForbidden
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	if b.PaymentStatus == model.PaymentPaid {
		// Refunds are issued at the provider; an admin then sets
		// payment_status=refunded through AdminSetStatus.
		s.log.WithFields(logrus.Fields{
			"booking_id": b.ID,
			"user_id":    b.UserID,
			"amount":     b.TotalPriceCents,
			"session_id": b.CheckoutSessionID,
		}).Warn("paid booking cancelled; refund pending")
	}
	ev := queue.NewBookingEvent(queue.TypeBookingCancelled, b, s.now())
	ev.ActorID = caller.UserID
	if seatsLeft >= 0 {
		ev = ev.WithSeatsLeft(seatsLeft)
	}
	s.afterCommit(ctx, ev, b.EventID)
	return b, nil
}

// cancel runs the cancellation transaction.  guard sees the locked booking
// and may veto the operation.  seatsLeft is -1 when the event no longer
// exists.
func (s *Service) cancel(ctx context.Context, bookingID uint64, guard func(model.Booking) error) (model.Booking, int, error) {
	var out model.Booking
	seatsLeft := -1
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if err := guard(b); err != nil {
			return err
		}
		if b.Status == model.BookingCancelled {
			return ErrAlreadyCancelled
		}
		left, err := s.releaseSeats(ctx, tx, b)
		if err != nil {
			return err
		}
		seatsLeft = left
		b, err = s.ledger.SetStatus(ctx, tx, b, model.BookingCancelled)
		if err != nil {
			return err
		}
		if err := tx.RecordTicketDelta(ctx, model.TicketEvent{
			UserID:    b.UserID,
			BookingID: b.ID,
			Delta:     -b.TicketQuantity,
			Reason:    model.TicketReasonCancelled,
			CreatedAt: s.now(),
		}); err != nil {
			return fmt.Errorf("record ticket delta: %w", err)
		}
		out = b
		return nil
	})
	return out, seatsLeft, err
}

// Delete removes a booking.  A booking that still holds seats has them
// released in the same transaction; a cancelled one already gave them back.
// Non-admin owners cannot delete confirmed bookings.
func (s *Service) Delete(ctx context.Context, caller Caller, bookingID uint64) (model.Booking, error) {
	if err := caller.check(); err != nil {
		return model.Booking{}, err
	}
	var deleted model.Booking
	seatsLeft := -1
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !caller.canAccess(b) {
			return ErrForbidden
		}
		if b.Status == model.BookingConfirmed && !caller.IsAdmin() {
			return ErrMustCancelFirst
		}
		if b.HoldsSeats() {
			left, err := s.releaseSeats(ctx, tx, b)
			if err != nil {
				return err
			}
			seatsLeft = left
			if err := tx.RecordTicketDelta(ctx, model.TicketEvent{
				UserID:    b.UserID,
				BookingID: b.ID,
				Delta:     -b.TicketQuantity,
				Reason:    model.TicketReasonDeleted,
				CreatedAt: s.now(),
			}); err != nil {
				return fmt.Errorf("record ticket delta: %w", err)
			}
		}
		if err := s.ledger.Delete(ctx, tx, b.ID); err != nil {
			return err
		}
		deleted = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	ev := queue.NewBookingEvent(queue.TypeBookingDeleted, deleted, s.now())
	ev.ActorID = caller.UserID
	if seatsLeft >= 0 {
		ev = ev.WithSeatsLeft(seatsLeft)
	}
	s.afterCommit(ctx, ev, deleted.EventID)
	return deleted, nil
}

// AdminSetStatus overwrites status and/or payment status without touching
// seat counters.  Empty values leave the field unchanged.  The caller is
// responsible for reconciling seats by hand.
func (s *Service) AdminSetStatus(ctx context.Context, caller Caller, bookingID uint64, status model.BookingStatus, payment model.PaymentStatus) (model.Booking, error) {
	if err := caller.check(); err != nil {
		return model.Booking{}, err
	}
	if !caller.IsAdmin() {
		return model.Booking{}, ErrForbidden
	}
	if status == "" && payment == "" {
		return model.Booking{}, &ledger.ValidationError{Field: "status", Msg: "status or payment_status required"}
	}
	var before, after model.Booking
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		before = b
		st, ps := b.Status, b.PaymentStatus
		if status != "" {
			st = status
		}
		if payment != "" {
			ps = payment
		}
		after, err = s.ledger.SetStatuses(ctx, tx, b, st, ps)
		return err
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.log.WithFields(logrus.Fields{
		"booking_id":          after.ID,
		"admin_id":            caller.UserID,
		"from_status":         before.Status,
		"to_status":           after.Status,
		"from_payment_status": before.PaymentStatus,
		"to_payment_status":   after.PaymentStatus,
	}).Warn("booking status overridden without seat reconciliation")
	ev := queue.NewBookingEvent(queue.TypeBookingStatusOverride, after, s.now())
	ev.ActorID = caller.UserID
	s.afterCommit(ctx, ev, 0)
	return after, nil
}

// Availability returns the derived availability view of an event, served
// from the cache when one is configured.
func (s *Service) Availability(ctx context.Context, eventID uint64) (model.Availability, error) {
	if s.cache != nil {
		if a, ok, err := s.cache.Get(ctx, eventID); err == nil && ok {
			return a, nil
		} else if err != nil {
			s.log.WithError(err).WithField("event_id", eventID).Debug("availability cache read failed")
		}
	}
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return model.Availability{}, ErrEventNotFound
		}
		return model.Availability{}, fmt.Errorf("load event %d: %w", eventID, err)
	}
	a := inventory.Availability(ev, s.limitedPercent)
	if s.cache != nil {
		if err := s.cache.Set(ctx, a); err != nil {
			s.log.WithError(err).WithField("event_id", eventID).Debug("availability cache write failed")
		}
	}
	return a, nil
}

// Get returns one booking visible to caller.
func (s *Service) Get(ctx context.Context, caller Caller, bookingID uint64) (model.Booking, error) {
	if err := caller.check(); err != nil {
		return model.Booking{}, err
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return model.Booking{}, ErrBookingNotFound
		}
		return model.Booking{}, fmt.Errorf("load booking %d: %w", bookingID, err)
	}
	if !caller.canAccess(b) {
		return model.Booking{}, ErrForbidden
	}
	return b, nil
}

// ListMine returns the caller's bookings, newest first.
func (s *Service) ListMine(ctx context.Context, caller Caller, limit, offset int) ([]model.BookingDetail, error) {
	if err := caller.check(); err != nil {
		return nil, err
	}
	return s.store.ListBookings(ctx, ports.BookingFilter{UserID: caller.UserID, Limit: limit, Offset: offset})
}

// ListAll returns bookings across users.  Admin only.
func (s *Service) ListAll(ctx context.Context, caller Caller, f ports.BookingFilter) ([]model.BookingDetail, error) {
	if err := caller.check(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.store.ListBookings(ctx, f)
}

// Stats summarises the ledger.  Admin only.
func (s *Service) Stats(ctx context.Context, caller Caller) (model.BookingStats, error) {
	if err := caller.check(); err != nil {
		return model.BookingStats{}, err
	}
	if !caller.IsAdmin() {
		return model.BookingStats{}, ErrForbidden
	}
	return s.store.BookingStats(ctx)
}

// releaseSeats gives b's seats back to its event under the event row lock.
// A booking whose event is gone has nothing to release; -1 is returned.
func (s *Service) releaseSeats(ctx context.Context, tx ports.Tx, b model.Booking) (int, error) {
	ev, err := tx.LockEvent(ctx, b.EventID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			s.log.WithFields(logrus.Fields{"booking_id": b.ID, "event_id": b.EventID}).Warn("event missing; no seats to release")
			return -1, nil
		}
		return 0, fmt.Errorf("lock event %d: %w", b.EventID, err)
	}
	next := inventory.Release(ev, b.TicketQuantity)
	if err := tx.SaveEventSeats(ctx, next); err != nil {
		return 0, fmt.Errorf("save event seats: %w", err)
	}
	return next.SeatsLeft, nil
}

func lockBooking(ctx context.Context, tx ports.Tx, id uint64) (model.Booking, error) {
	b, err := tx.LockBooking(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return model.Booking{}, ErrBookingNotFound
		}
		return model.Booking{}, fmt.Errorf("lock booking %d: %w", id, err)
	}
	return b, nil
}

// afterCommit publishes ev and drops the cached seat views of eventID.
// Neither step can fail the operation that already committed.
func (s *Service) afterCommit(ctx context.Context, ev queue.BookingEvent, eventID uint64) {
	if eventID != 0 {
		s.invalidate(ctx, eventID)
	}
	if s.pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.pub.Publish(pctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"type": ev.Type, "booking_id": ev.BookingID}).Warn("publish booking event failed")
	}
}

// invalidate drops every cached view of eventID's seat counter: the
// availability entry and the catalogue responses.
func (s *Service) invalidate(ctx context.Context, eventID uint64) {
	ctx = context.WithoutCancel(ctx)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, eventID); err != nil {
			s.log.WithError(err).WithField("event_id", eventID).Warn("availability cache invalidate failed")
		}
	}
	if s.responses != nil {
		if err := s.responses.Purge(ctx); err != nil {
			s.log.WithError(err).WithField("event_id", eventID).Warn("response cache purge failed")
		}
	}
}
