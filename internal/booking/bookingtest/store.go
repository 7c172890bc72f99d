// Package bookingtest provides an in-memory ports.Store for tests.
//
// Transactions are serialised by a single mutex and roll back by restoring
// a snapshot, which gives the same observable isolation as row locks on a
// real database.
package bookingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/ports"
)

// Store is a goroutine-safe in-memory implementation of ports.Store.
type Store struct {
	mu       sync.Mutex
	events   map[uint64]model.Event
	bookings map[uint64]model.Booking
	users    map[uint64]int
	deltas   []model.TicketEvent
	nextID   uint64

	// FailInsert, when set, is returned by the next InsertBooking call.
	FailInsert error
	// FailTicketDelta, when set, is returned by every RecordTicketDelta call.
	FailTicketDelta error
	// FailSaveEvent, when set, is returned by every SaveEventSeats call.
	FailSaveEvent error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		events:   map[uint64]model.Event{},
		bookings: map[uint64]model.Booking{},
		users:    map[uint64]int{},
	}
}

var _ ports.Store = (*Store)(nil)

// AddEvent inserts ev with SeatsLeft equal to its capacity and returns it
// with an assigned id.
func (s *Store) AddEvent(ev model.Event) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ev.ID = s.nextID
	ev.SeatsLeft = ev.Capacity
	if ev.Status == "" {
		ev.Status = model.EventUpcoming
	}
	s.events[ev.ID] = ev
	return ev
}

// PutEvent overwrites an event as-is.
func (s *Store) PutEvent(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
}

// RemoveEvent deletes an event without touching its bookings.
func (s *Store) RemoveEvent(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
}

// PutBooking overwrites a booking as-is.
func (s *Store) PutBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		s.nextID++
		b.ID = s.nextID
	}
	s.bookings[b.ID] = b
}

// TicketsAttended returns the user's attended-ticket counter.
func (s *Store) TicketsAttended(userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID]
}

// TicketEvents returns a copy of every recorded counter change.
func (s *Store) TicketEvents() []model.TicketEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TicketEvent, len(s.deltas))
	copy(out, s.deltas)
	return out
}

// BookingCount returns how many booking rows exist.
func (s *Store) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *Store) GetEvent(_ context.Context, id uint64) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, ports.ErrNotFound
	}
	return ev, nil
}

func (s *Store) GetBooking(_ context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, ports.ErrNotFound
	}
	return b, nil
}

func (s *Store) FindActiveBooking(_ context.Context, userID, eventID uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(userID, eventID, 0)
}

func (s *Store) ListBookings(_ context.Context, f ports.BookingFilter) ([]model.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.BookingDetail{}
	for _, b := range s.bookings {
		if f.UserID != 0 && b.UserID != f.UserID {
			continue
		}
		if f.EventID != 0 && b.EventID != f.EventID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		d := model.BookingDetail{Booking: b}
		if ev, ok := s.events[b.EventID]; ok {
			date := ev.Date
			d.EventTitle = ev.Title
			d.EventDate = &date
			d.EventLocation = ev.Location
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []model.BookingDetail{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) BookingStats(_ context.Context) (model.BookingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st model.BookingStats
	for _, b := range s.bookings {
		st.Total++
		switch b.Status {
		case model.BookingConfirmed:
			st.Confirmed++
			if b.PaymentStatus == model.PaymentPaid {
				st.RevenueCents += b.TotalPriceCents
			}
		case model.BookingPending:
			st.Pending++
		case model.BookingCancelled:
			st.Cancelled++
		}
	}
	if st.Total > 0 {
		st.ConversionRate = float64(st.Confirmed) * 100 / float64(st.Total)
	}
	return st, nil
}

func (s *Store) StalePendingBookings(_ context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []uint64{}
	for _, b := range s.bookings {
		if b.Status == model.BookingPending && b.PaymentStatus == model.PaymentPending && b.CreatedAt.Before(cutoff) {
			ids = append(ids, b.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// WithinTx holds the store lock for the whole of fn and restores the
// previous state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(ctx, &tx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type state struct {
	events   map[uint64]model.Event
	bookings map[uint64]model.Booking
	users    map[uint64]int
	deltas   []model.TicketEvent
	nextID   uint64
}

func (s *Store) snapshot() state {
	st := state{
		events:   make(map[uint64]model.Event, len(s.events)),
		bookings: make(map[uint64]model.Booking, len(s.bookings)),
		users:    make(map[uint64]int, len(s.users)),
		deltas:   append([]model.TicketEvent(nil), s.deltas...),
		nextID:   s.nextID,
	}
	for k, v := range s.events {
		st.events[k] = v
	}
	for k, v := range s.bookings {
		st.bookings[k] = v
	}
	for k, v := range s.users {
		st.users[k] = v
	}
	return st
}

func (s *Store) restore(st state) {
	s.events = st.events
	s.bookings = st.bookings
	s.users = st.users
	s.deltas = st.deltas
	s.nextID = st.nextID
}

func (s *Store) findActive(userID, eventID, exclude uint64) (model.Booking, error) {
	for _, b := range s.bookings {
		if b.ID != exclude && b.UserID == userID && b.EventID == eventID && b.Status != model.BookingCancelled {
			return b, nil
		}
	}
	return model.Booking{}, ports.ErrNotFound
}

// tx operates on the store while WithinTx holds its lock.
type tx struct{ s *Store }

func (t *tx) LockEvent(_ context.Context, id uint64) (model.Event, error) {
	ev, ok := t.s.events[id]
	if !ok {
		return model.Event{}, ports.ErrNotFound
	}
	return ev, nil
}

func (t *tx) SaveEventSeats(_ context.Context, ev model.Event) error {
	if t.s.FailSaveEvent != nil {
		return t.s.FailSaveEvent
	}
	cur, ok := t.s.events[ev.ID]
	if !ok {
		return ports.ErrNotFound
	}
	cur.SeatsLeft = ev.SeatsLeft
	cur.Status = ev.Status
	t.s.events[ev.ID] = cur
	return nil
}

func (t *tx) LockBooking(_ context.Context, id uint64) (model.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return model.Booking{}, ports.ErrNotFound
	}
	return b, nil
}

func (t *tx) LockBookingBySession(_ context.Context, sessionID string) (model.Booking, error) {
	for _, b := range t.s.bookings {
		if sessionID != "" && b.CheckoutSessionID == sessionID {
			return b, nil
		}
	}
	return model.Booking{}, ports.ErrNotFound
}

func (t *tx) FindActiveBooking(_ context.Context, userID, eventID uint64) (model.Booking, error) {
	return t.s.findActive(userID, eventID, 0)
}

func (t *tx) InsertBooking(_ context.Context, b *model.Booking) error {
	if err := t.s.FailInsert; err != nil {
		t.s.FailInsert = nil
		return err
	}
	if b.Status != model.BookingCancelled {
		if _, err := t.s.findActive(b.UserID, b.EventID, 0); err == nil {
			return ports.ErrDuplicate
		}
	}
	t.s.nextID++
	b.ID = t.s.nextID
	t.s.bookings[b.ID] = *b
	return nil
}

func (t *tx) UpdateBookingStatus(_ context.Context, id uint64, status model.BookingStatus, payment model.PaymentStatus) error {
	b, ok := t.s.bookings[id]
	if !ok {
		return ports.ErrNotFound
	}
	if status != model.BookingCancelled {
		if _, err := t.s.findActive(b.UserID, b.EventID, id); err == nil {
			return ports.ErrDuplicate
		}
	}
	b.Status = status
	b.PaymentStatus = payment
	t.s.bookings[id] = b
	return nil
}

func (t *tx) SetCheckoutSession(_ context.Context, id uint64, sessionID string) error {
	b, ok := t.s.bookings[id]
	if !ok {
		return ports.ErrNotFound
	}
	b.CheckoutSessionID = sessionID
	t.s.bookings[id] = b
	return nil
}

func (t *tx) DeleteBooking(_ context.Context, id uint64) error {
	if _, ok := t.s.bookings[id]; !ok {
		return ports.ErrNotFound
	}
	delete(t.s.bookings, id)
	return nil
}

func (t *tx) RecordTicketDelta(_ context.Context, ev model.TicketEvent) error {
	if t.s.FailTicketDelta != nil {
		return t.s.FailTicketDelta
	}
	t.s.users[ev.UserID] += ev.Delta
	t.s.deltas = append(t.s.deltas, ev)
	return nil
}
