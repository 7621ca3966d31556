// Package booking is the seat reservation engine: it resolves availability,
// claims seats atomically per show and date, drives the booking lifecycle
// and reclaims lapsed holds.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/queue"
	"github.com/iliyamo/movie-booking/internal/validate"
)

// DefaultHoldTTL is how long a pending booking keeps its seats.
const DefaultHoldTTL = 15 * time.Minute

// Options configures a Manager. Zero fields fall back to defaults.
type Options struct {
	HoldTTL   time.Duration
	Clock     Clock
	IDs       IDGenerator
	Locker    Locker
	Publisher EventPublisher
	Logger    *zap.Logger
}

// Manager is the only writer of booking status and seat sets.
type Manager struct {
	store    Store
	locker   Locker
	pub      EventPublisher
	clock    Clock
	ids      IDGenerator
	holdTTL  time.Duration
	validate *validate.Validator
	log      *zap.Logger
}

// NewManager wires a Manager over store. It panics on a nil store.
func NewManager(store Store, opts Options) *Manager {
	if store == nil {
		panic("nil store passed to NewManager")
	}
	m := &Manager{
		store:    store,
		locker:   opts.Locker,
		pub:      opts.Publisher,
		clock:    opts.Clock,
		ids:      opts.IDs,
		holdTTL:  opts.HoldTTL,
		validate: validate.New(),
		log:      opts.Logger,
	}
	if m.locker == nil {
		m.locker = storeOnlyLocker{}
	}
	if m.pub == nil {
		m.pub = queue.NopPublisher{}
	}
	if m.clock == nil {
		m.clock = SystemClock{}
	}
	if m.ids == nil {
		m.ids = DefaultIDGenerator{}
	}
	if m.holdTTL <= 0 {
		m.holdTTL = DefaultHoldTTL
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

// storeOnlyLocker leaves serialisation entirely to Store.WithinShow.
type storeOnlyLocker struct{}

func (storeOnlyLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// LockKey is the lock name guarding the occupied set of one show+date.
func LockKey(showID uint64, date string) string {
	return "seats:" + strconv.FormatUint(showID, 10) + ":" + date
}

// ReserveRequest asks for specific seats of one show.
type ReserveRequest struct {
	ShowID   uint64
	Date     string // optional; must match the show's date when set
	Seats    []model.SeatCoordinate
	Customer model.Customer
}

// GetAvailability returns the seat map of a show with per-seat flags.
func (m *Manager) GetAvailability(ctx context.Context, showID uint64, date string) (*SeatMap, error) {
	show, hall, err := m.loadShow(ctx, showID, date)
	if err != nil {
		return nil, err
	}
	active, err := m.store.ActiveBookings(ctx, show.ID, show.Date)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	return BuildSeatMap(show, hall, OccupiedSeats(active, m.clock.Now())), nil
}

// Reserve places a pending hold on exactly the requested seats. It fails
// with a ConflictError naming the overlap if any seat is already occupied;
// no partial booking is ever stored.
func (m *Manager) Reserve(ctx context.Context, req ReserveRequest) (*model.Booking, error) {
	if len(req.Seats) == 0 {
		return nil, &ValidationError{Field: "seats", Reason: "at least one seat is required"}
	}
	if err := m.validate.Validate(&req.Customer); err != nil {
		return nil, err
	}
	show, hall, err := m.loadShow(ctx, req.ShowID, req.Date)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) && nf.Entity == "show" {
			return nil, &ValidationError{Field: "showId", Reason: "show not found", Err: err}
		}
		return nil, err
	}
	if !show.IsActive {
		return nil, &ValidationError{Field: "showId", Reason: "show is not active"}
	}
	requested := model.NewSeatSet()
	for _, c := range req.Seats {
		if !hall.Contains(c) {
			return nil, &ValidationError{Field: "seats", Reason: fmt.Sprintf("seat %s is outside hall %s", c.Key(), hall.Name)}
		}
		if requested.Has(c) {
			return nil, &ValidationError{Field: "seats", Reason: fmt.Sprintf("seat %s requested twice", c.Key())}
		}
		requested.Add(c)
	}

	return m.claim(ctx, show, req.Customer, func(occupied model.SeatSet) ([]model.SeatCoordinate, error) {
		if conflicts := occupied.Intersect(req.Seats); len(conflicts) > 0 {
			return nil, &ConflictError{Seats: conflicts}
		}
		return req.Seats, nil
	})
}

// claim runs the check-and-insert for one show+date under the show lock and
// inside a store transaction. pick sees the occupied set as of the moment the
// lock is held and chooses the seats, or rejects.
func (m *Manager) claim(ctx context.Context, show *model.Show, cust model.Customer, pick func(model.SeatSet) ([]model.SeatCoordinate, error)) (*model.Booking, error) {
	release, err := m.locker.Lock(ctx, LockKey(show.ID, show.Date))
	if err != nil {
		return nil, err
	}
	defer release()

	var created *model.Booking
	err = m.retryTransient(ctx, "reserve", func() error {
		created = nil
		return m.store.WithinShow(ctx, show.ID, show.Date, func(ctx context.Context, tx ShowTx) error {
			active, err := tx.ActiveBookings(ctx)
			if err != nil {
				return err
			}
			now := m.clock.Now()
			seats, err := pick(OccupiedSeats(active, now))
			if err != nil {
				return err
			}
			b := m.newBooking(show, seats, cust, now)
			if err := tx.Insert(ctx, b); err != nil {
				return err
			}
			created = b
			return nil
		})
	})
	// The event goes out after the lock is dropped so a slow broker never
	// holds up other claims on the show.
	release()
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			m.log.Info("seat conflict",
				zap.Uint64("show_id", show.ID),
				zap.String("date", show.Date),
				zap.Error(err))
		}
		return nil, err
	}

	m.log.Info("booking created",
		zap.String("booking_id", created.BookingID),
		zap.Uint64("show_id", show.ID),
		zap.String("date", show.Date),
		zap.Int("seats", len(created.Seats)))
	m.publish(ctx, queue.EventBookingCreated, created)
	return created, nil
}

func (m *Manager) newBooking(show *model.Show, seats []model.SeatCoordinate, cust model.Customer, now time.Time) *model.Booking {
	b := &model.Booking{
		BookingID:     m.ids.NewBookingID(now),
		ShowID:        show.ID,
		MovieID:       show.MovieID,
		TheaterID:     show.TheaterID,
		Hall:          show.Hall,
		Date:          show.Date,
		StartTime:     show.StartTime,
		Seats:         make([]model.BookedSeat, len(seats)),
		Customer:      cust,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentPending,
		BookingExpiry: now.Add(m.holdTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, c := range seats {
		b.Seats[i] = model.BookedSeat{
			Row:        c.Row,
			Column:     c.Column,
			SeatNumber: c.SeatNumber(),
			PriceCents: show.PriceCents,
		}
		b.TotalAmountCents += show.PriceCents
	}
	return b
}

// SetStatus moves a booking along one lifecycle edge. Confirming requires
// the hold to still be live; a lapsed or already expired hold yields
// ErrHoldExpired. Other illegal edges yield InvalidTransitionError.
func (m *Manager) SetStatus(ctx context.Context, bookingID string, next model.BookingStatus) (*model.Booking, error) {
	if !next.IsValid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", next)}
	}
	var from model.BookingStatus
	updated, err := m.updateBooking(ctx, bookingID, func(b *model.Booking, now time.Time) error {
		from = b.Status
		if next == model.BookingConfirmed && (b.Status == model.BookingExpired || b.HoldLapsed(now)) {
			return ErrHoldExpired
		}
		if !b.Status.CanTransitionTo(next) {
			return &InvalidTransitionError{From: b.Status, To: next}
		}
		b.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("booking status changed",
		zap.String("booking_id", updated.BookingID),
		zap.String("from", string(from)),
		zap.String("status", string(next)))
	m.publish(ctx, queue.EventTypeFor(next), updated)
	return updated, nil
}

// SetPaymentStatus records the payment outcome of a booking.
func (m *Manager) SetPaymentStatus(ctx context.Context, bookingID string, ps model.PaymentStatus) (*model.Booking, error) {
	if !ps.IsValid() {
		return nil, &ValidationError{Field: "paymentStatus", Reason: fmt.Sprintf("unknown payment status %q", ps)}
	}
	return m.updateBooking(ctx, bookingID, func(b *model.Booking, _ time.Time) error {
		b.PaymentStatus = ps
		return nil
	})
}

// updateBooking applies fn under the lock of the booking's show+date, so a
// status change is ordered against every reservation touching those seats.
func (m *Manager) updateBooking(ctx context.Context, bookingID string, fn func(b *model.Booking, now time.Time) error) (*model.Booking, error) {
	current, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	release, err := m.locker.Lock(ctx, LockKey(current.ShowID, current.Date))
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *model.Booking
	err = m.retryTransient(ctx, "update booking", func() error {
		return m.store.WithinShow(ctx, current.ShowID, current.Date, func(ctx context.Context, tx ShowTx) error {
			now := m.clock.Now()
			b, err := tx.Update(ctx, bookingID, func(b *model.Booking) error {
				if err := fn(b, now); err != nil {
					return err
				}
				b.UpdatedAt = now
				return nil
			})
			if err != nil {
				return err
			}
			updated = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SweepExpired turns every pending booking past its expiry into expired and
// returns how many changed. Terminal bookings are never touched, so running
// it again is a no-op.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	now := m.clock.Now()
	var expired []model.Booking
	err := m.retryTransient(ctx, "sweep", func() error {
		var err error
		expired, err = m.store.ExpirePending(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	for i := range expired {
		m.publish(ctx, queue.EventBookingExpired, &expired[i])
	}
	if len(expired) > 0 {
		m.log.Info("expired pending bookings", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

// GetBooking fetches a booking by its public identifier.
func (m *Manager) GetBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	return m.store.GetBooking(ctx, bookingID)
}

// ListBookings pages through bookings, newest first.
func (m *Manager) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	f.Normalize()
	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", f.Status)}
	}
	return m.store.ListBookings(ctx, f)
}

func (m *Manager) loadShow(ctx context.Context, showID uint64, date string) (*model.Show, *model.Hall, error) {
	if showID == 0 {
		return nil, nil, &ValidationError{Field: "showId", Reason: "is required"}
	}
	show, err := m.store.GetShow(ctx, showID)
	if err != nil {
		return nil, nil, err
	}
	if date != "" && date != show.Date {
		return nil, nil, &ValidationError{Field: "date", Reason: fmt.Sprintf("show %d runs on %s", show.ID, show.Date)}
	}
	hall, err := m.store.GetHall(ctx, show.TheaterID, show.Hall)
	if err != nil {
		return nil, nil, err
	}
	return show, hall, nil
}

// retryTransient runs op and, if the store reported a transient failure,
// runs it exactly once more.
func (m *Manager) retryTransient(ctx context.Context, what string, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, ErrTransient) || ctx.Err() != nil {
		return err
	}
	m.log.Warn("retrying after transient store failure", zap.String("op", what), zap.Error(err))
	return op()
}

func (m *Manager) publish(ctx context.Context, typ string, b *model.Booking) {
	ev := queue.NewBookingEvent(typ, b, m.clock.Now())
	if err := m.pub.PublishBookingEvent(ctx, ev); err != nil {
		m.log.Warn("publish booking event failed",
			zap.String("type", typ),
			zap.String("booking_id", b.BookingID),
			zap.Error(err))
	}
}
