package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/model"
)

// BookingRepo provides persistence for bookings and their seats. Seats of
// a booking live in booking_seats. All timestamps are stored in UTC.
//
// Claims for one show are serialised by locking the show row with
// SELECT ... FOR UPDATE; the occupied set is then read with a plain
// READ COMMITTED select, which sees every booking committed by the
// previous lock holder.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, booking_code, show_id, movie_id, theater_id, hall_name, show_date, start_time,
	total_amount_cents, customer_name, customer_email, customer_phone, status, payment_status,
	booking_expiry, created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	var status, payment string
	if err := row.Scan(&b.ID, &b.BookingID, &b.ShowID, &b.MovieID, &b.TheaterID, &b.Hall, &b.Date,
		&b.StartTime, &b.TotalAmountCents, &b.Name, &b.Email, &b.Phone, &status, &payment,
		&b.BookingExpiry, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payment)
	return &b, nil
}

// queryBookings runs a booking select and attaches seats to every result.
func queryBookings(ctx context.Context, q querier, query string, args ...interface{}) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := loadSeats(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadSeats fills the Seats of every booking in one query.
func loadSeats(ctx context.Context, q querier, bookings []model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	ids := make([]interface{}, len(bookings))
	index := make(map[uint64]int, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
		index[b.ID] = i
	}
	rows, err := q.QueryContext(ctx,
		`SELECT booking_id, row_label, seat_column, seat_number, price_cents
		 FROM booking_seats WHERE booking_id IN (`+placeholders(len(ids))+`)
		 ORDER BY booking_id, position`, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var s model.BookedSeat
		if err := rows.Scan(&id, &s.Row, &s.Column, &s.SeatNumber, &s.PriceCents); err != nil {
			return err
		}
		b := &bookings[index[id]]
		b.Seats = append(b.Seats, s)
	}
	return rows.Err()
}

const activeBookingsQuery = `SELECT ` + bookingColumns + ` FROM bookings
	WHERE show_id = ? AND show_date = ? AND status IN ('pending', 'confirmed')
	ORDER BY id`

// ActiveBookings returns pending and confirmed bookings of a show+date.
func (r *BookingRepo) ActiveBookings(ctx context.Context, showID uint64, date string) ([]model.Booking, error) {
	return queryBookings(ctx, r.db, activeBookingsQuery, showID, date)
}

// WithinShow locks the show row and runs fn inside the same transaction.
func (r *BookingRepo) WithinShow(ctx context.Context, showID uint64, date string, fn func(ctx context.Context, tx booking.ShowTx) error) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var id uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM shows WHERE id = ? FOR UPDATE`, showID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return booking.NotFound("show", showID)
			}
			return err
		}
		return fn(ctx, &sqlShowTx{tx: tx, showID: showID, date: date})
	})
}

type sqlShowTx struct {
	tx     *sql.Tx
	showID uint64
	date   string
}

func (t *sqlShowTx) ActiveBookings(ctx context.Context) ([]model.Booking, error) {
	return queryBookings(ctx, t.tx, activeBookingsQuery, t.showID, t.date)
}

// Insert writes the booking row and its seats. The generated row ID is set
// on b.
func (t *sqlShowTx) Insert(ctx context.Context, b *model.Booking) error {
	if b.ShowID != t.showID || b.Date != t.date {
		return &model.ValidationError{Field: "showId", Reason: "booking does not belong to the locked show"}
	}
	const q = `INSERT INTO bookings (booking_code, show_id, movie_id, theater_id, hall_name, show_date, start_time,
	           total_amount_cents, customer_name, customer_email, customer_phone, status, payment_status,
	           booking_expiry, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, b.BookingID, b.ShowID, b.MovieID, b.TheaterID, b.Hall, b.Date, b.StartTime,
		b.TotalAmountCents, b.Name, b.Email, b.Phone, string(b.Status), string(b.PaymentStatus),
		b.BookingExpiry, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("booking id %s already exists: %w", b.BookingID, err)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	if len(b.Seats) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, position, row_label, seat_column, seat_number, price_cents) VALUES `
	args := make([]interface{}, 0, len(b.Seats)*6)
	for i, s := range b.Seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, b.ID, i, s.Row, s.Column, s.SeatNumber, s.PriceCents)
	}
	_, err = t.tx.ExecContext(ctx, query, args...)
	return err
}

// Update locks the booking row, applies fn and writes back the mutable
// columns.
func (t *sqlShowTx) Update(ctx context.Context, bookingID string, fn func(b *model.Booking) error) (*model.Booking, error) {
	list, err := queryBookings(ctx, t.tx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booking_code = ? AND show_id = ? AND show_date = ? FOR UPDATE`,
		bookingID, t.showID, t.date)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, booking.NotFound("booking", bookingID)
	}
	b := &list[0]
	if err := fn(b); err != nil {
		return nil, err
	}
	_, err = t.tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?`,
		string(b.Status), string(b.PaymentStatus), b.UpdatedAt, b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBooking fetches a booking by its public code.
func (r *BookingRepo) GetBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	list, err := queryBookings(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE booking_code = ?`, bookingID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, booking.NotFound("booking", bookingID)
	}
	return &list[0], nil
}

// ListBookings returns one page of bookings, newest first, and the total
// matching the filter.
func (r *BookingRepo) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	offset := model.Paginate(&f.Page, &f.Limit)
	where := ` WHERE 1=1`
	var args []interface{}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.CustomerEmail != "" {
		where += ` AND customer_email = ?`
		args = append(args, f.CustomerEmail)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	list, err := queryBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ExpirePending marks lapsed pending bookings as expired. Each row is
// updated only if it is still pending, so a booking confirmed between the
// select and the update is left alone.
func (r *BookingRepo) ExpirePending(ctx context.Context, now time.Time) ([]model.Booking, error) {
	var expired []model.Booking
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		expired = nil
		candidates, err := queryBookings(ctx, tx,
			`SELECT `+bookingColumns+` FROM bookings WHERE status = 'pending' AND booking_expiry < ? ORDER BY id FOR UPDATE`,
			now)
		if err != nil {
			return err
		}
		for _, b := range candidates {
			res, err := tx.ExecContext(ctx,
				`UPDATE bookings SET status = 'expired', updated_at = ? WHERE id = ? AND status = 'pending'`,
				now, b.ID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			b.Status = model.BookingExpired
			b.UpdatedAt = now
			expired = append(expired, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
