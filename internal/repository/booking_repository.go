package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/ports"
)

// BookingRepo provides persistence for bookings.  Methods with a Tx suffix
// run inside a caller-owned transaction; the caller must commit or roll
// back.  The one live booking per (user, event) rule is backed by the
// uq_bookings_active unique key, whose violations surface as
// ports.ErrDuplicate.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = `b.id, b.user_id, b.event_id, b.ticket_quantity, b.total_price_cents, b.status,
	b.payment_status, b.booked_at, b.special_requests, b.contact_phone, b.contact_email,
	b.checkout_session_id, b.created_at, b.updated_at`

func scanBookingInto(s rowScanner, b *model.Booking, extra ...any) error {
	var status, payment string
	var requests, phone, email, session sql.NullString
	dest := []any{&b.ID, &b.UserID, &b.EventID, &b.TicketQuantity, &b.TotalPriceCents, &status,
		&payment, &b.BookedAt, &requests, &phone, &email, &session, &b.CreatedAt, &b.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payment)
	b.SpecialRequests = requests.String
	b.Contact = model.ContactInfo{Phone: phone.String, Email: email.String}
	b.CheckoutSessionID = session.String
	return nil
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var b model.Booking
	err := scanBookingInto(s, &b)
	return b, err
}

// GetByID fetches a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings b WHERE b.id = ?`, id))
}

// FindActive returns the live booking of userID for eventID.
func (r *BookingRepo) FindActive(ctx context.Context, userID, eventID uint64) (model.Booking, error) {
	return findActive(ctx, r.db, userID, eventID, "")
}

// FindActiveTx is FindActive inside tx with a shared lock on the matching
// index range.
func (r *BookingRepo) FindActiveTx(ctx context.Context, tx *sql.Tx, userID, eventID uint64) (model.Booking, error) {
	return findActive(ctx, tx, userID, eventID, " FOR SHARE")
}

func findActive(ctx context.Context, q queryer, userID, eventID uint64, lock string) (model.Booking, error) {
	return scanBooking(q.QueryRowContext(ctx,
		`SELECT `+bookingCols+` FROM bookings b
		 WHERE b.user_id = ? AND b.event_id = ? AND b.status <> 'cancelled'
		 LIMIT 1`+lock, userID, eventID))
}

// List returns bookings joined with their event's headline fields, newest
// first.
func (r *BookingRepo) List(ctx context.Context, f ports.BookingFilter) ([]model.BookingDetail, error) {
	var where []string
	var args []any
	if f.UserID != 0 {
		where = append(where, "b.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.EventID != 0 {
		where = append(where, "b.event_id = ?")
		args = append(args, f.EventID)
	}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + bookingCols + `, e.title, e.event_date, e.location
		FROM bookings b LEFT JOIN events e ON e.id = b.event_id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY b.booked_at DESC, b.id DESC"
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
	out := []model.BookingDetail{}
	for rows.Next() {
		var d model.BookingDetail
		var title, location sql.NullString
		var date sql.NullTime
		if err := scanBookingInto(rows, &d.Booking, &title, &date, &location); err != nil {
			return nil, err
		}
		d.EventTitle = title.String
		d.EventLocation = location.String
		if date.Valid {
			t := date.Time
			d.EventDate = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats counts bookings by status.  Revenue counts confirmed, paid bookings.
func (r *BookingRepo) Stats(ctx context.Context) (model.BookingStats, error) {
	var st model.BookingStats
	const q = `SELECT COUNT(*),
			COALESCE(SUM(status = 'confirmed'), 0),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'cancelled'), 0),
			COALESCE(SUM(CASE WHEN status = 'confirmed' AND payment_status = 'paid' THEN total_price_cents ELSE 0 END), 0)
		FROM bookings`
	if err := r.db.QueryRowContext(ctx, q).Scan(&st.Total, &st.Confirmed, &st.Pending, &st.Cancelled, &st.RevenueCents); err != nil {
		return st, err
	}
	if st.Total > 0 {
		st.ConversionRate = float64(st.Confirmed) * 100 / float64(st.Total)
	}
	return st, nil
}

// StalePending returns ids of pending, unpaid bookings created before cutoff.
func (r *BookingRepo) StalePending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM bookings
		 WHERE status = 'pending' AND payment_status = 'pending' AND created_at < ?
		 ORDER BY id LIMIT ?`, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LockTx reads a booking with SELECT ... FOR UPDATE.
func (r *BookingRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings b WHERE b.id = ? FOR UPDATE`, id))
}

// LockBySessionTx locks the booking carrying the given checkout session id.
func (r *BookingRepo) LockBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingCols+` FROM bookings b WHERE b.checkout_session_id = ? FOR UPDATE`, sessionID))
}

// CreateTx inserts b and populates its generated ID.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, event_id, ticket_quantity, total_price_cents, status, payment_status,
		booked_at, special_requests, contact_phone, contact_email, checkout_session_id, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.EventID, b.TicketQuantity, b.TotalPriceCents,
		string(b.Status), string(b.PaymentStatus), b.BookedAt.UTC(), nullString(b.SpecialRequests),
		nullString(b.Contact.Phone), nullString(b.Contact.Email), nullString(b.CheckoutSessionID),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// UpdateStatusTx writes both status fields.  Re-activating a cancelled
// booking while another live one exists violates uq_bookings_active and
// returns ports.ErrDuplicate.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus, payment model.PaymentStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ?, payment_status = ? WHERE id = ?`,
		string(status), string(payment), id)
	if err != nil {
		if isDuplicateKey(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	return expectOne(res)
}

// SetSessionTx stores the provider checkout session id.
func (r *BookingRepo) SetSessionTx(ctx context.Context, tx *sql.Tx, id uint64, sessionID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET checkout_session_id = ? WHERE id = ?`, sessionID, id)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	return expectOne(res)
}

// DeleteTx removes a booking row.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
