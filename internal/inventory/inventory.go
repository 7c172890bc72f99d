// Package inventory holds the seat accounting rules for a single event.
//
// Every function is pure: it takes an event value and returns the new value.
// Callers load the event under a row lock, apply one of these functions and
// persist the result in the same transaction.
package inventory

import (
	"errors"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// DefaultLimitedPercent is the remaining-seat share below which an event is
// reported as Limited.
const DefaultLimitedPercent = 10

var (
	// ErrInsufficientSeats means the event has fewer seats left than requested.
	ErrInsufficientSeats = errors.New("insufficient seats")
	// ErrEventNotBookable means the event status does not accept bookings.
	ErrEventNotBookable = errors.New("event not bookable")
	// ErrInvalidQuantity means the quantity is not a positive number.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Bookable reports whether an event in status s accepts new reservations.
// A sold-out event is bookable in principle; the seat check rejects it.
func Bookable(s model.EventStatus) bool {
	switch s {
	case model.EventUpcoming, model.EventOngoing, model.EventSoldOut:
		return true
	}
	return false
}

// CanReserve checks the reservation preconditions without changing ev.
func CanReserve(ev model.Event, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if !Bookable(ev.Status) {
		return ErrEventNotBookable
	}
	if ev.SeatsLeft < qty {
		return ErrInsufficientSeats
	}
	return nil
}

// Reserve takes qty seats from ev.  When the counter reaches zero the event
// becomes sold out.
func Reserve(ev model.Event, qty int) (model.Event, error) {
	if err := CanReserve(ev, qty); err != nil {
		return ev, err
	}
	ev.SeatsLeft -= qty
	return Normalize(ev), nil
}

// Release gives qty seats back to ev.  The counter is clamped at capacity
// so releasing twice cannot inflate it.  Non-positive quantities are a no-op.
func Release(ev model.Event, qty int) model.Event {
	if qty <= 0 {
		return ev
	}
	ev.SeatsLeft += qty
	if ev.SeatsLeft > ev.Capacity {
		ev.SeatsLeft = ev.Capacity
	}
	return Normalize(ev)
}

// Normalize enforces 0 <= SeatsLeft <= Capacity and the sold-out flips:
// an upcoming or ongoing event with no seats becomes sold out, and a
// sold-out event with seats again becomes upcoming.  Cancelled and
// completed events keep their status.
func Normalize(ev model.Event) model.Event {
	if ev.Capacity < 0 {
		ev.Capacity = 0
	}
	if ev.SeatsLeft < 0 {
		ev.SeatsLeft = 0
	}
	if ev.SeatsLeft > ev.Capacity {
		ev.SeatsLeft = ev.Capacity
	}
	switch {
	case ev.SeatsLeft == 0 && (ev.Status == model.EventUpcoming || ev.Status == model.EventOngoing):
		ev.Status = model.EventSoldOut
	case ev.SeatsLeft > 0 && ev.Status == model.EventSoldOut:
		ev.Status = model.EventUpcoming
	}
	return ev
}

// Availability derives the reporting view of ev.  limitedPercent <= 0 falls
// back to DefaultLimitedPercent.
func Availability(ev model.Event, limitedPercent int) model.Availability {
	if limitedPercent <= 0 {
		limitedPercent = DefaultLimitedPercent
	}
	remaining := ev.SeatsLeft
	if remaining < 0 {
		remaining = 0
	}
	if remaining > ev.Capacity {
		remaining = ev.Capacity
	}
	booked := ev.Capacity - remaining
	a := model.Availability{
		EventID:     ev.ID,
		Capacity:    ev.Capacity,
		Booked:      booked,
		Remaining:   remaining,
		EventStatus: ev.Status,
	}
	if ev.Capacity > 0 {
		a.PercentSold = (booked*100 + ev.Capacity/2) / ev.Capacity
	}
	switch {
	case remaining == 0:
		a.Status = model.SoldOut
	case remaining*100 < ev.Capacity*limitedPercent:
		a.Status = model.Limited
	default:
		a.Status = model.Available
	}
	return a
}
