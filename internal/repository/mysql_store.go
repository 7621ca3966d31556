package repository

import (
	"database/sql"

	"github.com/iliyamo/movie-booking/internal/booking"
)

// MySQLStore bundles the MySQL repositories behind the booking.Store and
// catalogue interfaces.
type MySQLStore struct {
	*MovieRepo
	*TheaterRepo
	*ShowRepo
	*BookingRepo
}

// NewMySQLStore builds every repository over the same pool.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		MovieRepo:   NewMovieRepo(db),
		TheaterRepo: NewTheaterRepo(db),
		ShowRepo:    NewShowRepo(db),
		BookingRepo: NewBookingRepo(db),
	}
}

var _ booking.Store = (*MySQLStore)(nil)
