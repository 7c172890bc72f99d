// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and the audit log consumer.
package queue

import (
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// BookingEventsQueue is the durable queue every booking event is routed to.
const BookingEventsQueue = "booking.events"

// Booking event types.
const (
	TypeBookingCreated        = "booking.created"
	TypeBookingCancelled      = "booking.cancelled"
	TypeBookingDeleted        = "booking.deleted"
	TypeBookingConfirmed      = "booking.confirmed"
	TypeBookingStatusOverride = "booking.status_overridden"
)

// BookingEvent is published after a booking change has been committed.  It
// carries enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingEvent struct {
	Type            string `json:"type"`
	BookingID       uint64 `json:"booking_id"`
	UserID          uint64 `json:"user_id"`
	EventID         uint64 `json:"event_id"`
	TicketQuantity  int    `json:"ticket_quantity"`
	TotalPriceCents int64  `json:"total_price_cents"`
	Status          string `json:"status"`
	PaymentStatus   string `json:"payment_status"`
	SeatsLeft       *int   `json:"seats_left,omitempty"`
	ActorID         uint64 `json:"actor_id,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

// NewBookingEvent builds an event of type typ from b.
func NewBookingEvent(typ string, b model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:            typ,
		BookingID:       b.ID,
		UserID:          b.UserID,
		EventID:         b.EventID,
		TicketQuantity:  b.TicketQuantity,
		TotalPriceCents: b.TotalPriceCents,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		OccurredAt:      at.UTC().Format(time.RFC3339),
	}
}

// WithSeatsLeft returns a copy of e carrying the event's remaining seats.
func (e BookingEvent) WithSeatsLeft(n int) BookingEvent {
	e.SeatsLeft = &n
	return e
}
