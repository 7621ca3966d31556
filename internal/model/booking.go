package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

// IsValid reports whether s is a known status.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingExpired:
		return true
	}
	return false
}

// CanTransitionTo lists the allowed status edges:
// pending→confirmed|cancelled|expired and confirmed→cancelled.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled || next == BookingExpired
	case BookingConfirmed:
		return next == BookingCancelled
	}
	return false
}

// PaymentStatus tracks the payment side of a booking. Payments themselves
// are handled elsewhere; only the status is stored.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// BookedSeat is one seat inside a booking together with the price charged.
type BookedSeat struct {
	Row        string `json:"row"`
	Column     int    `json:"column"`
	SeatNumber string `json:"seatNumber"`
	PriceCents uint32 `json:"priceCents"`
}

// Coordinate returns the seat's conflict key.
func (s BookedSeat) Coordinate() SeatCoordinate {
	return SeatCoordinate{Row: s.Row, Column: s.Column}
}

// Customer holds the contact fields captured with a booking.
type Customer struct {
	Name  string `json:"customerName" validate:"required,max=120"`
	Email string `json:"customerEmail" validate:"required,email"`
	Phone string `json:"customerPhone" validate:"required,max=32"`
}

// Booking is a hold (pending) or a sale (confirmed) of a set of seats for
// one show on one date. Seats is an owned value collection.
type Booking struct {
	ID               uint64        `json:"-"`
	BookingID        string        `json:"bookingId"`
	ShowID           uint64        `json:"showId"`
	MovieID          uint64        `json:"movieId"`
	TheaterID        uint64        `json:"theaterId"`
	Hall             string        `json:"hall"`
	Date             string        `json:"date"`
	StartTime        string        `json:"startTime"`
	Seats            []BookedSeat  `json:"seats"`
	TotalAmountCents uint32        `json:"totalAmountCents"`
	Customer                       // flattened contact fields
	Status           BookingStatus `json:"status"`
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	BookingExpiry    time.Time     `json:"bookingExpiry"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Coordinates returns the seats of the booking as conflict keys.
func (b *Booking) Coordinates() []SeatCoordinate {
	out := make([]SeatCoordinate, len(b.Seats))
	for i, s := range b.Seats {
		out[i] = s.Coordinate()
	}
	return out
}

// HoldLapsed reports whether a pending booking is past its expiry at now.
func (b *Booking) HoldLapsed(now time.Time) bool {
	return b.Status == BookingPending && now.After(b.BookingExpiry)
}

// Occupies reports whether the booking's seats count as taken at now:
// confirmed bookings always do, pending ones only until they lapse.
func (b *Booking) Occupies(now time.Time) bool {
	switch b.Status {
	case BookingConfirmed:
		return true
	case BookingPending:
		return !b.HoldLapsed(now)
	}
	return false
}

// Clone returns a deep copy so callers cannot alias stored seat slices.
func (b *Booking) Clone() *Booking {
	c := *b
	c.Seats = append([]BookedSeat(nil), b.Seats...)
	return &c
}

// BookingFilter selects bookings for listing.
type BookingFilter struct {
	Status        BookingStatus
	CustomerEmail string
	Page          int
	Limit         int
}

// Normalize applies the listing defaults (page 1, 10 per page, at most 100).
func (f *BookingFilter) Normalize() { Paginate(&f.Page, &f.Limit) }
