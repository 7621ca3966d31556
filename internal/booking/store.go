package booking

import (
	"context"
	"time"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/queue"
)

// Catalog is the read side the engine needs from the persistent store.
type Catalog interface {
	GetShow(ctx context.Context, id uint64) (*model.Show, error)
	ListShows(ctx context.Context, f model.ShowFilter) ([]model.Show, error)
	GetMovie(ctx context.Context, id uint64) (*model.Movie, error)
	GetHall(ctx context.Context, theaterID uint64, name string) (*model.Hall, error)
}

// ShowTx is the view of one show+date handed to a claim. Everything done
// through it commits or rolls back together.
type ShowTx interface {
	// ActiveBookings returns pending and confirmed bookings for the show+date,
	// including pending ones whose hold has lapsed but were not swept yet.
	ActiveBookings(ctx context.Context) ([]model.Booking, error)
	Insert(ctx context.Context, b *model.Booking) error

	// Update loads a booking of this show+date under a row lock, applies fn
	// and persists status, payment status and updatedAt if fn returns nil.
	Update(ctx context.Context, bookingID string, fn func(b *model.Booking) error) (*model.Booking, error)
}

// BookingStore is the booking side of the persistent store.
type BookingStore interface {
	// ActiveBookings is the non-transactional read used for availability.
	ActiveBookings(ctx context.Context, showID uint64, date string) ([]model.Booking, error)

	// WithinShow runs fn serialised against every other WithinShow call for
	// the same show+date. A non-nil error from fn rolls back.
	WithinShow(ctx context.Context, showID uint64, date string, fn func(ctx context.Context, tx ShowTx) error) error

	GetBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error)

	// ExpirePending moves every pending booking with expiry before now to
	// expired and returns the bookings it changed.
	ExpirePending(ctx context.Context, now time.Time) ([]model.Booking, error)
}

// Store is everything the Manager depends on.
type Store interface {
	Catalog
	BookingStore
}

// Locker hands out mutual exclusion per key. The returned release function
// may be called more than once; only the first call releases.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// EventPublisher receives booking lifecycle events. Failures are logged by
// the Manager and never fail the operation that produced the event.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev queue.BookingEvent) error
}

// Clock is the source of "now".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
