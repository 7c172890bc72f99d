package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/inventory"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/ports"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
)

// PaymentRef identifies the booking a payment notification is about.  The
// session id wins when both are set; the booking id is the fallback for
// sessions that were never attached.
type PaymentRef struct {
	SessionID string
	BookingID uint64
}

// ConfirmResult describes what ConfirmPayment did.
type ConfirmResult struct {
	Booking model.Booking
	// AlreadyPaid is true when the notification was a duplicate and nothing
	// changed.
	AlreadyPaid bool
	// Rebooked is true when the booking had been cancelled before payment
	// arrived and its seats were reserved again.
	Rebooked bool
	// Superseded is true when the payment came through an older checkout
	// session than the one last attached to the booking.
	Superseded bool
	SeatsLeft  int
}

// ConfirmPayment finalises a booking as confirmed and paid, exactly once.
//
// Seats are taken when the booking is created, so confirming a pending
// booking only re-validates that the event still accounts for them.  A
// booking cancelled before the payment landed gets its seats reserved again
// inside the same transaction.  Any failure rolls everything back and leaves
// the booking unpaid.  A quantity of 0 means "the booking's own quantity".
func (s *Service) ConfirmPayment(ctx context.Context, ref PaymentRef, quantity int) (ConfirmResult, error) {
	if ref.SessionID == "" && ref.BookingID == 0 {
		return ConfirmResult{}, ErrBookingNotFound
	}
	var res ConfirmResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, superseded, err := s.resolvePayment(ctx, tx, ref)
		if err != nil {
			return err
		}
		if b.PaymentStatus == model.PaymentPaid {
			if superseded {
				return fmt.Errorf("%w: booking %d paid via %s, notification for %s",
					ErrDuplicatePayment, b.ID, b.CheckoutSessionID, ref.SessionID)
			}
			res = ConfirmResult{Booking: b, AlreadyPaid: true, SeatsLeft: -1}
			return nil
		}
		res.Superseded = superseded
		if quantity == 0 {
			quantity = b.TicketQuantity
		}
		if quantity != b.TicketQuantity {
			return fmt.Errorf("%w: booking %d holds %d, payment covers %d", ErrQuantityMismatch, b.ID, b.TicketQuantity, quantity)
		}
		ev, err := tx.LockEvent(ctx, b.EventID)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return ErrNoAssociatedEvent
			}
			return fmt.Errorf("lock event %d: %w", b.EventID, err)
		}

		if b.HoldsSeats() {
			// The booking's seats are already out of the counter.
			if ev.SeatsLeft < 0 || ev.Capacity-ev.SeatsLeft < quantity {
				return fmt.Errorf("%w: event %d accounts for %d booked seats, booking %d holds %d",
					ErrInsufficientSeatsAtConfirm, ev.ID, ev.Capacity-ev.SeatsLeft, b.ID, quantity)
			}
			res.SeatsLeft = ev.SeatsLeft
		} else {
			if err := s.ledger.CheckDuplicate(ctx, tx, b.UserID, b.EventID); err != nil {
				return err
			}
			next, err := inventory.Reserve(ev, quantity)
			if err != nil {
				if errors.Is(err, inventory.ErrInsufficientSeats) {
					return fmt.Errorf("%w: event %d has %d seats left, booking %d needs %d",
						ErrInsufficientSeatsAtConfirm, ev.ID, ev.SeatsLeft, b.ID, quantity)
				}
				return err
			}
			if err := tx.SaveEventSeats(ctx, next); err != nil {
				return fmt.Errorf("save event seats: %w", err)
			}
			if err := tx.RecordTicketDelta(ctx, model.TicketEvent{
				UserID:    b.UserID,
				BookingID: b.ID,
				Delta:     quantity,
				Reason:    model.TicketReasonRebooked,
				CreatedAt: s.now(),
			}); err != nil {
				return fmt.Errorf("record ticket delta: %w", err)
			}
			res.Rebooked = true
			res.SeatsLeft = next.SeatsLeft
		}

		if ref.SessionID != "" && b.CheckoutSessionID != ref.SessionID {
			// Point the booking at the session that actually paid.
			if b, err = s.ledger.SetCheckoutSession(ctx, tx, b, ref.SessionID); err != nil {
				return err
			}
		}
		b, err = s.ledger.SetStatuses(ctx, tx, b, model.BookingConfirmed, model.PaymentPaid)
		if err != nil {
			return err
		}
		res.Booking = b
		return nil
	})
	entry := s.log.WithFields(logrus.Fields{"session_id": ref.SessionID, "booking_id": ref.BookingID, "quantity": quantity})
	if err != nil {
		if IsIntegrity(err) {
			entry.WithError(err).Error("payment confirmation aborted; needs reconciliation")
		} else {
			entry.WithError(err).Warn("payment confirmation failed")
		}
		return ConfirmResult{}, err
	}
	if res.AlreadyPaid {
		entry.Info("payment already confirmed; duplicate notification ignored")
		return res, nil
	}

	ev := queue.NewBookingEvent(queue.TypeBookingConfirmed, res.Booking, s.now()).WithSeatsLeft(res.SeatsLeft)
	var invalidate uint64
	if res.Rebooked {
		invalidate = res.Booking.EventID
	}
	s.afterCommit(ctx, ev, invalidate)
	if res.Superseded {
		entry.Warn("payment arrived on a superseded checkout session; booking now points at it")
	}
	entry.WithFields(logrus.Fields{"rebooked": res.Rebooked, "seats_left": res.SeatsLeft}).Info("payment confirmed")
	return res, nil
}

// resolvePayment locks the booking a notification pays for.  The session id
// is tried first.  A booking id from the session metadata is the fallback,
// and it wins even when the booking has since been handed a newer session:
// the metadata was written by CreateCheckout and arrives signed, so a user who
// opened checkout twice and paid the first one still gets the booking.
// superseded reports that case.
func (s *Service) resolvePayment(ctx context.Context, tx ports.Tx, ref PaymentRef) (b model.Booking, superseded bool, err error) {
	if ref.SessionID != "" {
		b, err = tx.LockBookingBySession(ctx, ref.SessionID)
		if err == nil {
			return b, false, nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return model.Booking{}, false, fmt.Errorf("lock booking by session: %w", err)
		}
	}
	if ref.BookingID == 0 {
		return model.Booking{}, false, ErrBookingNotFound
	}
	b, err = lockBooking(ctx, tx, ref.BookingID)
	if err != nil {
		return model.Booking{}, false, err
	}
	superseded = ref.SessionID != "" && b.CheckoutSessionID != "" && b.CheckoutSessionID != ref.SessionID
	return b, superseded, nil
}

// CheckoutTarget returns the booking and its event when the caller may start
// a payment for it.
func (s *Service) CheckoutTarget(ctx context.Context, caller Caller, bookingID uint64) (model.Booking, model.Event, error) {
	b, err := s.Get(ctx, caller, bookingID)
	if err != nil {
		return model.Booking{}, model.Event{}, err
	}
	if b.Status != model.BookingPending || b.PaymentStatus != model.PaymentPending {
		return model.Booking{}, model.Event{}, ErrNotPayable
	}
	ev, err := s.store.GetEvent(ctx, b.EventID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return model.Booking{}, model.Event{}, ErrNoAssociatedEvent
		}
		return model.Booking{}, model.Event{}, fmt.Errorf("load event %d: %w", b.EventID, err)
	}
	return b, ev, nil
}

// AttachCheckoutSession stores the provider session id on a booking that is
// still awaiting payment.
func (s *Service) AttachCheckoutSession(ctx context.Context, caller Caller, bookingID uint64, sessionID string) (model.Booking, error) {
	if err := caller.check(); err != nil {
		return model.Booking{}, err
	}
	var out model.Booking
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !caller.canAccess(b) {
			return ErrForbidden
		}
		if b.Status != model.BookingPending || b.PaymentStatus != model.PaymentPending {
			return ErrNotPayable
		}
		out, err = s.ledger.SetCheckoutSession(ctx, tx, b, sessionID)
		return err
	})
	if err != nil {
		return model.Booking{}, err
	}
	return out, nil
}
