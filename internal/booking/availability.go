package booking

import (
	"time"

	"github.com/iliyamo/movie-booking/internal/model"
)

// OccupiedSeats unions the seats of every booking that still occupies them
// at now. Pending bookings past their expiry are skipped even if the sweeper
// has not reached them yet, so reads never depend on sweep timing.
func OccupiedSeats(bookings []model.Booking, now time.Time) model.SeatSet {
	occupied := make(model.SeatSet)
	for i := range bookings {
		if !bookings[i].Occupies(now) {
			continue
		}
		for _, s := range bookings[i].Seats {
			occupied.Add(s.Coordinate())
		}
	}
	return occupied
}

// AvailableSeats is the full grid of hall minus the occupied set, in layout
// order. It has no side effects.
func AvailableSeats(hall *model.Hall, bookings []model.Booking, now time.Time) []model.SeatCoordinate {
	occupied := OccupiedSeats(bookings, now)
	free := make([]model.SeatCoordinate, 0, hall.TotalCapacity())
	for _, c := range hall.Seats() {
		if !occupied.Has(c) {
			free = append(free, c)
		}
	}
	return free
}

// SeatState is one cell of a seat map.
type SeatState struct {
	Row        string `json:"row"`
	Column     int    `json:"column"`
	SeatNumber string `json:"seatNumber"`
	IsAisle    bool   `json:"isAisle"`
	IsBooked   bool   `json:"isBooked"`
	PriceCents uint32 `json:"priceCents"`
}

// RowState is one row of a seat map.
type RowState struct {
	RowNumber string      `json:"rowNumber"`
	Seats     []SeatState `json:"seats"`
}

// SeatMap is the availability view of a show.
type SeatMap struct {
	Show           *model.Show `json:"show"`
	Hall           *model.Hall `json:"hall"`
	SeatLayout     []RowState  `json:"seatLayout"`
	TotalCapacity  int         `json:"totalCapacity"`
	BookedSeats    int         `json:"bookedSeats"`
	AvailableSeats int         `json:"availableSeats"`
}

// BuildSeatMap renders the per-seat occupied/free/aisle flags for show.
func BuildSeatMap(show *model.Show, hall *model.Hall, occupied model.SeatSet) *SeatMap {
	m := &SeatMap{
		Show:          show,
		Hall:          hall,
		SeatLayout:    make([]RowState, 0, len(hall.Rows)),
		TotalCapacity: hall.TotalCapacity(),
	}
	for _, r := range hall.Rows {
		rs := RowState{RowNumber: r.Label, Seats: make([]SeatState, 0, r.SeatCount)}
		for col := 1; col <= r.SeatCount; col++ {
			c := model.SeatCoordinate{Row: r.Label, Column: col}
			booked := occupied.Has(c)
			if booked {
				m.BookedSeats++
			}
			rs.Seats = append(rs.Seats, SeatState{
				Row:        r.Label,
				Column:     col,
				SeatNumber: c.SeatNumber(),
				IsAisle:    r.IsAisle(col),
				IsBooked:   booked,
				PriceCents: show.PriceCents,
			})
		}
		m.SeatLayout = append(m.SeatLayout, rs)
	}
	m.AvailableSeats = m.TotalCapacity - m.BookedSeats
	return m
}
