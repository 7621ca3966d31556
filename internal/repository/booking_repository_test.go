package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/model"
)

const (
	lockShowSQL    = `SELECT id FROM shows WHERE id = \? FOR UPDATE`
	activeSQL      = `FROM bookings\s+WHERE show_id = \? AND show_date = \? AND status IN \('pending', 'confirmed'\)`
	seatsSQL       = `FROM booking_seats WHERE booking_id IN \(`
	insertSQL      = `INSERT INTO bookings \(booking_code`
	insertSeatsSQL = `INSERT INTO booking_seats \(booking_id, position, row_label, seat_column, seat_number, price_cents\) VALUES`
)

var bookingCols = []string{
	"id", "booking_code", "show_id", "movie_id", "theater_id", "hall_name", "show_date", "start_time",
	"total_amount_cents", "customer_name", "customer_email", "customer_phone", "status", "payment_status",
	"booking_expiry", "created_at", "updated_at",
}

var seatCols = []string{"booking_id", "row_label", "seat_column", "seat_number", "price_cents"}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*BookingRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBookingRepo(db), mock
}

func bookingRow(rows *sqlmock.Rows, id int64, code, status string, expiry time.Time) *sqlmock.Rows {
	return rows.AddRow(id, code, 6, 1, 2, "Main", "2025-03-01", "10:00",
		2000, "Ada", "ada@example.com", "555-0101", status, "pending",
		expiry, t0, t0)
}

func pendingBooking() *model.Booking {
	return &model.Booking{
		BookingID: "BK1", ShowID: 6, MovieID: 1, TheaterID: 2, Hall: "Main",
		Date: "2025-03-01", StartTime: "10:00", TotalAmountCents: 2000,
		Customer: model.Customer{Name: "Ada", Email: "ada@example.com", Phone: "555-0101"},
		Status:   model.BookingPending, PaymentStatus: model.PaymentPending,
		BookingExpiry: t0.Add(10 * time.Minute), CreatedAt: t0, UpdatedAt: t0,
		Seats: []model.BookedSeat{
			{Row: "A", Column: 1, SeatNumber: "A1", PriceCents: 1000},
			{Row: "A", Column: 2, SeatNumber: "A2", PriceCents: 1000},
		},
	}
}

func TestBookingRepo_WithinShowInsertsUnderShowLock(t *testing.T) {
	repo, mock := newMockRepo(t)
	b := pendingBooking()

	mock.ExpectBegin()
	mock.ExpectQuery(lockShowSQL).WithArgs(6).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectQuery(activeSQL).WithArgs(6, "2025-03-01").WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectExec(insertSQL).
		WithArgs("BK1", 6, 1, 2, "Main", "2025-03-01", "10:00", 2000, "Ada", "ada@example.com", "555-0101",
			"pending", "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(insertSeatsSQL).
		WithArgs(41, 0, "A", 1, "A1", 1000, 41, 1, "A", 2, "A2", 1000).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.WithinShow(context.Background(), 6, "2025-03-01", func(ctx context.Context, tx booking.ShowTx) error {
		active, err := tx.ActiveBookings(ctx)
		if err != nil {
			return err
		}
		if len(active) != 0 {
			return errors.New("expected no active bookings")
		}
		return tx.Insert(ctx, b)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(41), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_WithinShowRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(mock sqlmock.Sqlmock)
		fn     func(ctx context.Context, tx booking.ShowTx) error
		assert func(t *testing.T, err error)
	}{
		{
			name: "conflict from callback",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(lockShowSQL).WithArgs(6).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
			},
			fn: func(context.Context, booking.ShowTx) error {
				return &booking.ConflictError{Seats: []model.SeatCoordinate{{Row: "A", Column: 2}}}
			},
			assert: func(t *testing.T, err error) {
				assert.True(t, booking.IsConflict(err))
			},
		},
		{
			name: "unknown show",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(lockShowSQL).WithArgs(6).WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			fn: func(context.Context, booking.ShowTx) error {
				return errors.New("callback must not run")
			},
			assert: func(t *testing.T, err error) {
				assert.True(t, booking.IsNotFound(err))
			},
		},
		{
			name: "deadlock on insert is transient",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(lockShowSQL).WithArgs(6).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
				mock.ExpectExec(insertSQL).WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
			},
			fn: func(ctx context.Context, tx booking.ShowTx) error {
				return tx.Insert(ctx, pendingBooking())
			},
			assert: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, booking.ErrTransient)
			},
		},
		{
			name: "booking for another show",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(lockShowSQL).WithArgs(6).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
			},
			fn: func(ctx context.Context, tx booking.ShowTx) error {
				b := pendingBooking()
				b.Date = "2025-03-02"
				return tx.Insert(ctx, b)
			},
			assert: func(t *testing.T, err error) {
				var ve *model.ValidationError
				assert.ErrorAs(t, err, &ve)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectBegin()
			tt.setup(mock)
			mock.ExpectRollback()

			err := repo.WithinShow(context.Background(), 6, "2025-03-01", tt.fn)
			require.Error(t, err)
			tt.assert(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBookingRepo_UpdateLocksAndWritesBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockShowSQL).WithArgs(6).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectQuery(`FROM bookings WHERE booking_code = \? AND show_id = \? AND show_date = \? FOR UPDATE`).
		WithArgs("BK1", 6, "2025-03-01").
		WillReturnRows(bookingRow(sqlmock.NewRows(bookingCols), 41, "BK1", "pending", t0.Add(10*time.Minute)))
	mock.ExpectQuery(seatsSQL).WithArgs(41).
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(41, "A", 1, "A1", 1000).AddRow(41, "A", 2, "A2", 1000))
	mock.ExpectExec(`UPDATE bookings SET status = \?, payment_status = \?, updated_at = \? WHERE id = \?`).
		WithArgs("confirmed", "pending", sqlmock.AnyArg(), 41).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var got *model.Booking
	err := repo.WithinShow(context.Background(), 6, "2025-03-01", func(ctx context.Context, tx booking.ShowTx) error {
		var err error
		got, err = tx.Update(ctx, "BK1", func(b *model.Booking) error {
			b.Status = model.BookingConfirmed
			return nil
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	require.Len(t, got.Seats, 2)
	assert.Equal(t, "A2", got.Seats[1].SeatNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_UpdateUnknownBookingRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockShowSQL).WithArgs(6).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectQuery(`FROM bookings WHERE booking_code = \?`).WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectRollback()

	err := repo.WithinShow(context.Background(), 6, "2025-03-01", func(ctx context.Context, tx booking.ShowTx) error {
		_, err := tx.Update(ctx, "BK404", func(*model.Booking) error { return nil })
		return err
	})
	assert.True(t, booking.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_ExpirePendingSkipsRowsThatChanged(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := t0.Add(time.Hour)

	mock.ExpectBegin()
	rows := sqlmock.NewRows(bookingCols)
	bookingRow(rows, 1, "BK1", "pending", t0)
	bookingRow(rows, 2, "BK2", "pending", t0)
	mock.ExpectQuery(`FROM bookings WHERE status = 'pending' AND booking_expiry < \? ORDER BY id FOR UPDATE`).
		WithArgs(now).WillReturnRows(rows)
	mock.ExpectQuery(seatsSQL).WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(1, "A", 1, "A1", 1000).AddRow(2, "B", 1, "B1", 1000))
	update := `UPDATE bookings SET status = 'expired', updated_at = \? WHERE id = \? AND status = 'pending'`
	mock.ExpectExec(update).WithArgs(now, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	// BK2 was confirmed after the select
	mock.ExpectExec(update).WithArgs(now, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	expired, err := repo.ExpirePending(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "BK1", expired[0].BookingID)
	assert.Equal(t, model.BookingExpired, expired[0].Status)
	assert.Equal(t, now, expired[0].UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_ExpirePendingLockWaitIsTransient(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE status = 'pending' AND booking_expiry < \?`).
		WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	mock.ExpectRollback()

	_, err := repo.ExpirePending(context.Background(), t0)
	assert.ErrorIs(t, err, booking.ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}
