package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/model"
)

// TheaterRepo manages theaters together with their halls and row layouts.
// A hall is stored in the halls table and each of its rows in hall_rows,
// ordered by position.
type TheaterRepo struct {
	db *sql.DB
}

// NewTheaterRepo constructs a TheaterRepo with the provided DB handle.
func NewTheaterRepo(db *sql.DB) *TheaterRepo {
	return &TheaterRepo{db: db}
}

const theaterColumns = `id, name, street, city, state, zip_code, country, contact_number, email, amenities, is_active, created_at, updated_at`

func scanTheater(row interface{ Scan(...interface{}) error }) (*model.Theater, error) {
	var t model.Theater
	var amenities string
	if err := row.Scan(&t.ID, &t.Name, &t.Address.Street, &t.Address.City, &t.Address.State,
		&t.Address.ZipCode, &t.Address.Country, &t.ContactNumber, &t.Email, &amenities,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Amenities = decodeList[string](amenities)
	return &t, nil
}

// CreateTheater inserts the theater and all of its halls in one
// transaction.
func (r *TheaterRepo) CreateTheater(ctx context.Context, t *model.Theater) error {
	if err := t.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		const q = `INSERT INTO theaters (name, street, city, state, zip_code, country, contact_number, email, amenities, is_active, created_at, updated_at)
		           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`
		res, err := tx.ExecContext(ctx, q, t.Name, t.Address.Street, t.Address.City, t.Address.State,
			t.Address.ZipCode, t.Address.Country, t.ContactNumber, t.Email, encodeList(t.Amenities), now, now)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)
		t.IsActive = true
		t.CreatedAt, t.UpdatedAt = now, now
		for i := range t.Halls {
			if err := insertHall(ctx, tx, t.ID, &t.Halls[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertHall(ctx context.Context, tx *sql.Tx, theaterID uint64, h *model.Hall) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO halls (theater_id, name, hall_number, is_active) VALUES (?, ?, ?, 1)`,
		theaterID, h.Name, h.HallNumber)
	if err != nil {
		if isDuplicate(err) {
			return &model.ValidationError{Field: "name", Reason: "hall name already used in this theater"}
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	h.TheaterID = theaterID
	h.IsActive = true

	if len(h.Rows) == 0 {
		return nil
	}
	query := `INSERT INTO hall_rows (hall_id, position, row_label, seat_count, aisle_seats) VALUES `
	args := make([]interface{}, 0, len(h.Rows)*5)
	for i, row := range h.Rows {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, h.ID, i, row.Label, row.SeatCount, encodeList(row.AisleSeats))
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetTheater fetches a theater with its halls.
func (r *TheaterRepo) GetTheater(ctx context.Context, id uint64) (*model.Theater, error) {
	t, err := scanTheater(r.db.QueryRowContext(ctx, `SELECT `+theaterColumns+` FROM theaters WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.NotFound("theater", id)
		}
		return nil, err
	}
	if t.Halls, err = r.loadHalls(ctx, r.db, id, ""); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTheaters returns one page of theaters, newest first, with their
// halls, and the total count matching the filter.
func (r *TheaterRepo) ListTheaters(ctx context.Context, f model.TheaterFilter) ([]model.Theater, int, error) {
	offset := model.Paginate(&f.Page, &f.Limit)
	where := " WHERE 1=1"
	var args []interface{}
	if f.ActiveOnly {
		where += " AND is_active = 1"
	}
	if c := strings.TrimSpace(f.City); c != "" {
		where += " AND LOWER(city) LIKE ?"
		args = append(args, "%"+strings.ToLower(c)+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM theaters`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+theaterColumns+` FROM theaters`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	out := []model.Theater{}
	for rows.Next() {
		t, err := scanTheater(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, *t)
	}
	if err := rows.Close(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if out[i].Halls, err = r.loadHalls(ctx, r.db, out[i].ID, ""); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// AddHall adds a hall to an existing theater.
func (r *TheaterRepo) AddHall(ctx context.Context, theaterID uint64, h *model.Hall) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM theaters WHERE id = ? FOR UPDATE`, theaterID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return booking.NotFound("theater", theaterID)
			}
			return err
		}
		if err := insertHall(ctx, tx, theaterID, h); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE theaters SET updated_at = ? WHERE id = ?`, time.Now().UTC(), theaterID)
		return err
	})
}

// GetHall looks up a hall of a theater by name with its row layout.
func (r *TheaterRepo) GetHall(ctx context.Context, theaterID uint64, name string) (*model.Hall, error) {
	halls, err := r.loadHalls(ctx, r.db, theaterID, name)
	if err != nil {
		return nil, err
	}
	if len(halls) == 0 {
		var exists uint64
		err := r.db.QueryRowContext(ctx, `SELECT id FROM theaters WHERE id = ?`, theaterID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.NotFound("theater", theaterID)
		}
		if err != nil {
			return nil, err
		}
		return nil, booking.NotFound("hall", name)
	}
	return &halls[0], nil
}

// loadHalls returns the halls of a theater in insertion order, optionally
// restricted to one name.
func (r *TheaterRepo) loadHalls(ctx context.Context, q querier, theaterID uint64, name string) ([]model.Hall, error) {
	query := `SELECT id, theater_id, name, hall_number, is_active FROM halls WHERE theater_id = ?`
	args := []interface{}{theaterID}
	if name != "" {
		query += ` AND name = ?`
		args = append(args, name)
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	halls := []model.Hall{}
	index := map[uint64]int{}
	for rows.Next() {
		var h model.Hall
		if err := rows.Scan(&h.ID, &h.TheaterID, &h.Name, &h.HallNumber, &h.IsActive); err != nil {
			rows.Close()
			return nil, err
		}
		index[h.ID] = len(halls)
		halls = append(halls, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(halls) == 0 {
		return halls, nil
	}

	ids := make([]interface{}, 0, len(halls))
	for _, h := range halls {
		ids = append(ids, h.ID)
	}
	rowRows, err := q.QueryContext(ctx,
		`SELECT hall_id, row_label, seat_count, aisle_seats FROM hall_rows WHERE hall_id IN (`+placeholders(len(ids))+`) ORDER BY hall_id, position`,
		ids...)
	if err != nil {
		return nil, err
	}
	defer rowRows.Close()
	for rowRows.Next() {
		var hallID uint64
		var row model.Row
		var aisles string
		if err := rowRows.Scan(&hallID, &row.Label, &row.SeatCount, &aisles); err != nil {
			return nil, err
		}
		row.AisleSeats = decodeList[int](aisles)
		h := &halls[index[hallID]]
		h.Rows = append(h.Rows, row)
	}
	return halls, rowRows.Err()
}

// DeactivateTheater hides a theater from listings and show creation.
func (r *TheaterRepo) DeactivateTheater(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE theaters SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetTheater(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
