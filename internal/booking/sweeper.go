package booking

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
)

const sweepBatch = 100

var errNoLongerStale = errors.New("booking no longer stale")

// ExpireStalePending cancels pending, unpaid bookings created more than
// olderThan ago through the normal cancellation path and returns how many
// were cancelled.  A booking that got paid between the scan and its
// transaction is left alone.
func (s *Service) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	ids, err := s.store.StalePendingBookings(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		b, seatsLeft, err := s.cancel(ctx, id, func(b model.Booking) error {
			if b.Status != model.BookingPending || b.PaymentStatus != model.PaymentPending || !b.CreatedAt.Before(cutoff) {
				return errNoLongerStale
			}
			return nil
		})
		switch {
		case err == nil:
		case errors.Is(err, errNoLongerStale), errors.Is(err, ErrBookingNotFound):
			continue
		default:
			s.log.WithError(err).WithField("booking_id", id).Warn("expire stale booking failed")
			continue
		}
		n++
		ev := queue.NewBookingEvent(queue.TypeBookingCancelled, b, s.now())
		if seatsLeft >= 0 {
			ev = ev.WithSeatsLeft(seatsLeft)
		}
		s.afterCommit(ctx, ev, b.EventID)
	}
	if n > 0 {
		s.log.WithFields(logrus.Fields{"expired": n, "older_than": olderThan.String()}).Info("stale pending bookings cancelled")
	}
	return n, nil
}

// RunSweeper calls ExpireStalePending every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval, olderThan time.Duration) {
	if interval <= 0 || olderThan <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireStalePending(ctx, olderThan); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("stale booking sweep failed")
			}
		}
	}
}
