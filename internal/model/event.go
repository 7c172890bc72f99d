package model

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
	EventSoldOut   EventStatus = "sold_out"
)

// Valid reports whether s is one of the known event statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventUpcoming, EventOngoing, EventCompleted, EventCancelled, EventSoldOut:
		return true
	}
	return false
}

// Event categories accepted by the admin console.
var EventCategories = []string{"Concert", "Festival", "Workshop", "Meet & Greet", "Other"}

// ValidCategory reports whether c is an accepted event category.
func ValidCategory(c string) bool {
	for _, v := range EventCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Event represents a ticketed event with finite seating.
//
// Fields:
//
//	ID               – primary key identifier.
//	Title            – display title.
//	Description      – free text description.
//	Date             – when the event takes place (UTC).
//	Location         – venue.
//	ImageURL         – optional poster URL.
//	TicketPriceCents – price of one ticket in cents.
//	Capacity         – total seats.
//	SeatsLeft        – remaining bookable seats, 0 <= SeatsLeft <= Capacity.
//	Status           – lifecycle state.
//	Category         – one of EventCategories.
//	CreatedBy        – admin who created the event.
//	CreatedAt        – creation timestamp.
//	UpdatedAt        – last update timestamp.
type Event struct {
	ID               uint64      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Date             time.Time   `json:"date"`
	Location         string      `json:"location"`
	ImageURL         string      `json:"image,omitempty"`
	TicketPriceCents int64       `json:"ticket_price_cents"`
	Capacity         int         `json:"capacity"`
	SeatsLeft        int         `json:"seats_left"`
	Status           EventStatus `json:"status"`
	Category         string      `json:"category"`
	CreatedBy        uint64      `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// AvailabilityLevel is the coarse availability bucket shown to clients.
type AvailabilityLevel string

const (
	Available AvailabilityLevel = "Available"
	Limited   AvailabilityLevel = "Limited"
	SoldOut   AvailabilityLevel = "SoldOut"
)

// Availability is a derived, read-only view over an event's seat counters.
type Availability struct {
	EventID     uint64            `json:"event_id"`
	Capacity    int               `json:"capacity"`
	Booked      int               `json:"booked"`
	Remaining   int               `json:"remaining"`
	PercentSold int               `json:"percent_sold"`
	Status      AvailabilityLevel `json:"status"`
	EventStatus EventStatus       `json:"event_status"`
}
