package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/model"
)

// ShowRepo manages persistence for shows. A show references its hall by
// name inside the theater; date and times are stored as the same
// zero-padded strings the API uses, so ordering by them is chronological.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

const showColumns = `id, movie_id, theater_id, hall_name, show_date, start_time, end_time, price_cents, is_active, created_at, updated_at`

func scanShow(row interface{ Scan(...interface{}) error }) (*model.Show, error) {
	var s model.Show
	if err := row.Scan(&s.ID, &s.MovieID, &s.TheaterID, &s.Hall, &s.Date, &s.StartTime, &s.EndTime,
		&s.PriceCents, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateShow inserts a show after checking its references and that no
// active show in the same hall and date overlaps it. The theater row is
// locked for the duration so two concurrent creations cannot both pass the
// overlap check.
func (r *ShowRepo) CreateShow(ctx context.Context, s *model.Show) error {
	if err := s.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var movieActive bool
		err := tx.QueryRowContext(ctx, `SELECT is_active FROM movies WHERE id = ?`, s.MovieID).Scan(&movieActive)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !movieActive) {
			return &model.ValidationError{Field: "movieId", Reason: "movie not found or inactive"}
		}
		if err != nil {
			return err
		}

		var theaterActive bool
		err = tx.QueryRowContext(ctx, `SELECT is_active FROM theaters WHERE id = ? FOR UPDATE`, s.TheaterID).Scan(&theaterActive)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !theaterActive) {
			return &model.ValidationError{Field: "theaterId", Reason: "theater not found or inactive"}
		}
		if err != nil {
			return err
		}

		var hallID uint64
		err = tx.QueryRowContext(ctx, `SELECT id FROM halls WHERE theater_id = ? AND name = ?`, s.TheaterID, s.Hall).Scan(&hallID)
		if errors.Is(err, sql.ErrNoRows) {
			return &model.ValidationError{Field: "hall", Reason: "hall not found in theater"}
		}
		if err != nil {
			return err
		}

		var overlapping int
		const overlapQ = `SELECT COUNT(*) FROM shows
		                  WHERE theater_id = ? AND hall_name = ? AND show_date = ? AND is_active = 1
		                    AND start_time < ? AND ? < end_time`
		if err := tx.QueryRowContext(ctx, overlapQ, s.TheaterID, s.Hall, s.Date, s.EndTime, s.StartTime).Scan(&overlapping); err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrShowOverlap
		}

		const q = `INSERT INTO shows (movie_id, theater_id, hall_name, show_date, start_time, end_time, price_cents, is_active, created_at, updated_at)
		           VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`
		res, err := tx.ExecContext(ctx, q, s.MovieID, s.TheaterID, s.Hall, s.Date, s.StartTime, s.EndTime, s.PriceCents, now, now)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		s.ID = uint64(id)
		s.IsActive = true
		s.CreatedAt, s.UpdatedAt = now, now
		return nil
	})
}

// GetShow retrieves a show by its ID.
func (r *ShowRepo) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	s, err := scanShow(r.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.NotFound("show", id)
		}
		return nil, err
	}
	return s, nil
}

// ListShows returns shows matching the filter ordered by date then start
// time. A positive Limit pages the result.
func (r *ShowRepo) ListShows(ctx context.Context, f model.ShowFilter) ([]model.Show, error) {
	query := `SELECT ` + showColumns + ` FROM shows WHERE 1=1`
	var args []interface{}
	if f.MovieID != 0 {
		query += ` AND movie_id = ?`
		args = append(args, f.MovieID)
	}
	if f.TheaterID != 0 {
		query += ` AND theater_id = ?`
		args = append(args, f.TheaterID)
	}
	if f.Date != "" {
		query += ` AND show_date = ?`
		args = append(args, f.Date)
	}
	if f.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY show_date, start_time, id`
	if f.Limit > 0 {
		offset := model.Paginate(&f.Page, &f.Limit)
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Show{}
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// DeactivateShow stops a show from taking new bookings. Existing bookings
// keep their status.
func (r *ShowRepo) DeactivateShow(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE shows SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetShow(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
