package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/model"
)

// MovieRepo encapsulates all database queries related to movies.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the provided DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

const movieColumns = `id, title, description, duration_min, genres, language, release_date, rating, is_active, created_at, updated_at`

func scanMovie(row interface{ Scan(...interface{}) error }) (*model.Movie, error) {
	var m model.Movie
	var desc sql.NullString
	var genres string
	if err := row.Scan(&m.ID, &m.Title, &desc, &m.Duration, &genres, &m.Language,
		&m.ReleaseDate, &m.Rating, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Description = desc.String
	m.Genre = decodeList[string](genres)
	return &m, nil
}

// CreateMovie inserts a new movie. On success ID, IsActive and the
// timestamps are populated on m.
func (r *MovieRepo) CreateMovie(ctx context.Context, m *model.Movie) error {
	if err := m.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	const q = `INSERT INTO movies (title, description, duration_min, genres, language, release_date, rating, is_active, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, m.Title, m.Description, m.Duration, encodeList(m.Genre),
		m.Language, m.ReleaseDate, m.Rating, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	m.IsActive = true
	m.CreatedAt, m.UpdatedAt = now, now
	return nil
}

// GetMovie fetches a movie by ID.
func (r *MovieRepo) GetMovie(ctx context.Context, id uint64) (*model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.NotFound("movie", id)
		}
		return nil, err
	}
	return m, nil
}

// ListMovies returns one page of movies, newest first, and the total count
// of rows matching the filter. Genre matching is done against the stored
// JSON array.
func (r *MovieRepo) ListMovies(ctx context.Context, f model.MovieFilter) ([]model.Movie, int, error) {
	offset := model.Paginate(&f.Page, &f.Limit)
	where := " WHERE 1=1"
	var args []interface{}
	if f.ActiveOnly {
		where += " AND is_active = 1"
	}
	if f.Genre != "" {
		where += " AND JSON_CONTAINS(genres, JSON_QUOTE(?))"
		args = append(args, f.Genre)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// DeactivateMovie hides a movie from listings. Existing shows are untouched.
func (r *MovieRepo) DeactivateMovie(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE movies SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetMovie(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
