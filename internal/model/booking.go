package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingCancelled
}

// PaymentStatus tracks the money side of a booking.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPaid || s == PaymentRefunded
}

// ContactInfo is how the organizer can reach the booking owner.
type ContactInfo struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Booking records a user's tickets for one event.  While the booking is
// not cancelled its TicketQuantity seats are held in the event's
// SeatsLeft counter.
//
// Fields:
//
//	ID                – primary key identifier.
//	UserID            – owner of the booking.
//	EventID           – booked event.
//	TicketQuantity    – seats held, 1..10, fixed at creation.
//	TotalPriceCents   – quantity × ticket price at booking time.
//	Status            – lifecycle state.
//	PaymentStatus     – payment state.
//	BookedAt          – when the booking was made.
//	SpecialRequests   – optional note (max 500 chars).
//	Contact           – phone/email.
//	CheckoutSessionID – provider session id, set when checkout starts.
//	CreatedAt         – creation timestamp.
//	UpdatedAt         – last update timestamp.
type Booking struct {
	ID                uint64        `json:"id"`
	UserID            uint64        `json:"user_id"`
	EventID           uint64        `json:"event_id"`
	TicketQuantity    int           `json:"ticket_quantity"`
	TotalPriceCents   int64         `json:"total_price_cents"`
	Status            BookingStatus `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	BookedAt          time.Time     `json:"booked_at"`
	SpecialRequests   string        `json:"special_requests,omitempty"`
	Contact           ContactInfo   `json:"contact_info"`
	CheckoutSessionID string        `json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// HoldsSeats reports whether the booking currently owns a reservation in
// its event's seat counter.
func (b *Booking) HoldsSeats() bool {
	return b.Status != BookingCancelled
}

// BookingDetail is a booking joined with the headline fields of its event.
// Event fields are empty when the event no longer exists.
type BookingDetail struct {
	Booking
	EventTitle    string     `json:"event_title,omitempty"`
	EventDate     *time.Time `json:"event_date,omitempty"`
	EventLocation string     `json:"event_location,omitempty"`
}

// BookingStats summarises the ledger for the admin dashboard.
type BookingStats struct {
	Total          int     `json:"total_bookings"`
	Confirmed      int     `json:"confirmed_bookings"`
	Pending        int     `json:"pending_bookings"`
	Cancelled      int     `json:"cancelled_bookings"`
	RevenueCents   int64   `json:"total_revenue_cents"`
	ConversionRate float64 `json:"conversion_rate"`
}
