package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/inventory"
	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EventRepo provides CRUD operations for events.  Seat counters are only
// written through SaveSeatsTx or through Update, which keeps the sold seat
// count when capacity changes.  All timestamp fields are assumed to be
// stored in UTC.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventCols = `id, title, description, event_date, location, image_url, ticket_price_cents,
	capacity, seats_left, status, category, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner) (model.Event, error) {
	var ev model.Event
	var image sql.NullString
	var status string
	err := s.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Date, &ev.Location, &image,
		&ev.TicketPriceCents, &ev.Capacity, &ev.SeatsLeft, &status, &ev.Category,
		&ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, err
	}
	ev.ImageURL = image.String
	ev.Status = model.EventStatus(status)
	return ev, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts ev with its seat counter set to capacity and populates the
// generated ID and timestamps.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	ev.SeatsLeft = ev.Capacity
	if ev.Status == "" {
		ev.Status = model.EventUpcoming
	}
	if ev.Category == "" {
		ev.Category = "Other"
	}
	*ev = inventory.Normalize(*ev)
	const q = `INSERT INTO events (title, description, event_date, location, image_url, ticket_price_cents,
		capacity, seats_left, status, category, created_by) VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, ev.Title, ev.Description, ev.Date.UTC(), ev.Location, nullString(ev.ImageURL),
		ev.TicketPriceCents, ev.Capacity, ev.SeatsLeft, string(ev.Status), ev.Category, ev.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*ev = created
	return nil
}

// GetByID fetches an event by id.  ErrNotFound is returned when it does not exist.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	return scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id = ?`, id))
}

// EventFilter narrows List.  Zero values mean "any".
type EventFilter struct {
	Status   model.EventStatus
	Category string
	Search   string
	From     *time.Time
	Limit    int
	Offset   int
}

// List returns events ordered by date.  Search matches title, description
// and location.
func (r *EventRepo) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		where = append(where, "(title LIKE ? OR description LIKE ? OR location LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.From != nil {
		where = append(where, "event_date >= ?")
		args = append(args, f.From.UTC())
	}
	q := `SELECT ` + eventCols + ` FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY event_date ASC, id ASC"
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EventUpdate carries the fields an admin may change.  Nil fields are left
// untouched.
type EventUpdate struct {
	Title            *string
	Description      *string
	Date             *time.Time
	Location         *string
	ImageURL         *string
	TicketPriceCents *int64
	Capacity         *int
	Status           *model.EventStatus
	Category         *string
}

// Update applies u under a row lock.  A capacity change keeps the number of
// sold seats, so seats_left moves by the same amount as capacity; shrinking
// below the sold count fails with ErrConflict.  The sold-out flips are
// re-applied afterwards.
func (r *EventRepo) Update(ctx context.Context, id uint64, u EventUpdate) (model.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Event{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ev, err := r.LockTx(ctx, tx, id)
	if err != nil {
		return model.Event{}, err
	}
	if u.Title != nil {
		ev.Title = *u.Title
	}
	if u.Description != nil {
		ev.Description = *u.Description
	}
	if u.Date != nil {
		ev.Date = u.Date.UTC()
	}
	if u.Location != nil {
		ev.Location = *u.Location
	}
	if u.ImageURL != nil {
		ev.ImageURL = *u.ImageURL
	}
	if u.TicketPriceCents != nil {
		ev.TicketPriceCents = *u.TicketPriceCents
	}
	if u.Category != nil {
		ev.Category = *u.Category
	}
	if u.Status != nil {
		ev.Status = *u.Status
	}
	if u.Capacity != nil {
		sold := ev.Capacity - ev.SeatsLeft
		if *u.Capacity < sold {
			return model.Event{}, ErrConflict
		}
		ev.Capacity = *u.Capacity
		ev.SeatsLeft = ev.Capacity - sold
	}
	ev = inventory.Normalize(ev)

	const q = `UPDATE events SET title=?, description=?, event_date=?, location=?, image_url=?, ticket_price_cents=?,
		capacity=?, seats_left=?, status=?, category=? WHERE id=?`
	if _, err := tx.ExecContext(ctx, q, ev.Title, ev.Description, ev.Date, ev.Location, nullString(ev.ImageURL),
		ev.TicketPriceCents, ev.Capacity, ev.SeatsLeft, string(ev.Status), ev.Category, id); err != nil {
		return model.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Event{}, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

// Delete removes an event.  Events that still have pending or confirmed
// bookings are refused with ErrConflict; cancelled bookings are removed
// together with the event.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := r.LockTx(ctx, tx, id); err != nil {
		return err
	}
	var live int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE event_id = ? AND status <> 'cancelled'`, id).Scan(&live); err != nil {
		return err
	}
	if live > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE event_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// EventOverview aggregates the catalogue for the admin dashboard.
type EventOverview struct {
	TotalEvents   int   `json:"total_events"`
	Upcoming      int   `json:"upcoming_events"`
	SoldOut       int   `json:"sold_out_events"`
	Cancelled     int   `json:"cancelled_events"`
	Completed     int   `json:"completed_events"`
	TotalCapacity int   `json:"total_capacity"`
	TicketsSold   int   `json:"tickets_sold"`
	RevenueCents  int64 `json:"total_revenue_cents"`
}

// Overview computes catalogue totals.  Revenue counts confirmed, paid
// bookings only.
func (r *EventRepo) Overview(ctx context.Context) (EventOverview, error) {
	var o EventOverview
	const q = `SELECT COUNT(*),
			COALESCE(SUM(status = 'upcoming'), 0),
			COALESCE(SUM(status = 'sold_out'), 0),
			COALESCE(SUM(status = 'cancelled'), 0),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(capacity), 0),
			COALESCE(SUM(capacity - seats_left), 0)
		FROM events`
	if err := r.db.QueryRowContext(ctx, q).Scan(&o.TotalEvents, &o.Upcoming, &o.SoldOut, &o.Cancelled,
		&o.Completed, &o.TotalCapacity, &o.TicketsSold); err != nil {
		return o, err
	}
	const rev = `SELECT COALESCE(SUM(total_price_cents), 0) FROM bookings
		WHERE status = 'confirmed' AND payment_status = 'paid'`
	if err := r.db.QueryRowContext(ctx, rev).Scan(&o.RevenueCents); err != nil {
		return o, err
	}
	return o, nil
}

// LockTx reads an event with SELECT ... FOR UPDATE.  The row stays locked
// until tx ends, which serialises every seat change on that event.
func (r *EventRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	return scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id = ? FOR UPDATE`, id))
}

// SaveSeatsTx persists the seat counter and status computed by the
// inventory rules.
func (r *EventRepo) SaveSeatsTx(ctx context.Context, tx *sql.Tx, ev model.Event) error {
	res, err := tx.ExecContext(ctx, `UPDATE events SET seats_left = ?, status = ? WHERE id = ?`,
		ev.SeatsLeft, string(ev.Status), ev.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
