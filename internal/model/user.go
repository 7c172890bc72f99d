package model

import "time"

// Roles recognised by the API.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User mirrors the `users` table.  TicketsAttended is maintained only
// through TicketEvent rows written in the same transaction as the booking
// change that caused them.
type User struct {
	ID              uint64    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Role            string    `json:"role"`
	TicketsAttended int       `json:"tickets_attended"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Reasons recorded against a TicketEvent.
const (
	TicketReasonBooked    = "booked"
	TicketReasonCancelled = "cancelled"
	TicketReasonDeleted   = "deleted"
	TicketReasonRebooked  = "rebooked_on_payment"
)

// TicketEvent is one change to a user's attended-ticket counter.  Delta is
// positive when seats are taken and negative when they are given back.
type TicketEvent struct {
	UserID    uint64
	BookingID uint64
	Delta     int
	Reason    string
	CreatedAt time.Time
}
