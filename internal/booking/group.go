package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/model"
)

// GroupRequest asks for count adjacent seats in any show of a movie at a
// theater on a date, without naming the seats.
type GroupRequest struct {
	MovieID   uint64
	TheaterID uint64
	Date      string
	SeatCount int
	Customer  model.Customer
}

// Alternative is a show of a different movie in the same theater and date
// that still has a block large enough for the group.
type Alternative struct {
	Movie          *model.Movie           `json:"movie,omitempty"`
	Show           model.Show             `json:"show"`
	Seats          []model.SeatCoordinate `json:"seats"`
	AvailableSeats int                    `json:"availableSeats"`
}

// GroupResult carries either the booking that was made or, when no show of
// the movie had room, the alternatives found.
type GroupResult struct {
	Booking      *model.Booking `json:"booking,omitempty"`
	Alternatives []Alternative  `json:"alternatives,omitempty"`
}

// ReserveGroup walks the movie's shows in start-time order and books the
// first consecutive block it can claim. The block is searched while the
// show lock is held, so it cannot be stolen between search and insert.
func (m *Manager) ReserveGroup(ctx context.Context, req GroupRequest) (*GroupResult, error) {
	if req.MovieID == 0 {
		return nil, &ValidationError{Field: "movieId", Reason: "is required"}
	}
	if req.TheaterID == 0 {
		return nil, &ValidationError{Field: "theaterId", Reason: "is required"}
	}
	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must use format YYYY-MM-DD"}
	}
	if req.SeatCount <= 0 {
		return nil, &ValidationError{Field: "numSeats", Reason: "must be positive"}
	}
	if err := m.validate.Validate(&req.Customer); err != nil {
		return nil, err
	}

	shows, err := m.store.ListShows(ctx, model.ShowFilter{
		MovieID:    req.MovieID,
		TheaterID:  req.TheaterID,
		Date:       req.Date,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	if len(shows) == 0 {
		return nil, NotFound("shows", fmt.Sprintf("movie=%d theater=%d date=%s", req.MovieID, req.TheaterID, req.Date))
	}

	for i := range shows {
		show := &shows[i]
		hall, err := m.store.GetHall(ctx, show.TheaterID, show.Hall)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		b, err := m.claim(ctx, show, req.Customer, func(occupied model.SeatSet) ([]model.SeatCoordinate, error) {
			block := FindConsecutiveBlock(hall, occupied, req.SeatCount)
			if block == nil {
				return nil, errNoBlock
			}
			return block, nil
		})
		if errors.Is(err, errNoBlock) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &GroupResult{Booking: b}, nil
	}

	alts, err := m.SuggestAlternatives(ctx, req.MovieID, req.TheaterID, req.Date, req.SeatCount)
	if err != nil {
		return nil, err
	}
	m.log.Info("no consecutive block for group",
		zap.Uint64("movie_id", req.MovieID),
		zap.Uint64("theater_id", req.TheaterID),
		zap.String("date", req.Date),
		zap.Int("count", req.SeatCount),
		zap.Int("alternatives", len(alts)))
	return &GroupResult{Alternatives: alts}, nil
}

// SuggestAlternatives runs the block search over the other movies' shows in
// the same theater and date. It only reads; nothing is reserved.
func (m *Manager) SuggestAlternatives(ctx context.Context, movieID, theaterID uint64, date string, count int) ([]Alternative, error) {
	shows, err := m.store.ListShows(ctx, model.ShowFilter{TheaterID: theaterID, Date: date, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	now := m.clock.Now()
	var out []Alternative
	for _, show := range shows {
		if show.MovieID == movieID {
			continue
		}
		hall, err := m.store.GetHall(ctx, show.TheaterID, show.Hall)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		active, err := m.store.ActiveBookings(ctx, show.ID, show.Date)
		if err != nil {
			return nil, fmt.Errorf("load bookings: %w", err)
		}
		block := FindConsecutiveBlock(hall, OccupiedSeats(active, now), count)
		if block == nil {
			continue
		}
		alt := Alternative{Show: show, Seats: block, AvailableSeats: len(block)}
		if movie, err := m.store.GetMovie(ctx, show.MovieID); err == nil {
			alt.Movie = movie
		} else if !IsNotFound(err) {
			return nil, err
		}
		out = append(out, alt)
	}
	return out, nil
}
