package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/model"
)

func seedTheater(t *testing.T, s *MemoryStore) (*model.Movie, *model.Theater) {
	t.Helper()
	ctx := context.Background()
	m := &model.Movie{Title: "Alien", Duration: 117, Genre: []string{"Sci-Fi", "Horror"}}
	require.NoError(t, s.CreateMovie(ctx, m))
	th := &model.Theater{
		Name:          "Rex",
		Address:       model.Address{City: "Berlin"},
		ContactNumber: "030-1",
		Email:         "rex@example.com",
		Halls:         []model.Hall{{Name: "1", Rows: []model.Row{{Label: "A", SeatCount: 6}}}},
	}
	require.NoError(t, s.CreateTheater(ctx, th))
	return m, th
}

func TestMemoryStore_CreateShowRejectsOverlap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m, th := seedTheater(t, s)

	first := &model.Show{MovieID: m.ID, TheaterID: th.ID, Hall: "1", Date: "2025-03-01", StartTime: "18:00", EndTime: "20:00"}
	require.NoError(t, s.CreateShow(ctx, first))
	assert.True(t, first.IsActive)

	clash := &model.Show{MovieID: m.ID, TheaterID: th.ID, Hall: "1", Date: "2025-03-01", StartTime: "19:30", EndTime: "21:00"}
	err := s.CreateShow(ctx, clash)
	require.ErrorIs(t, err, ErrShowOverlap)
	assert.ErrorIs(t, err, ErrConflict)

	back2back := &model.Show{MovieID: m.ID, TheaterID: th.ID, Hall: "1", Date: "2025-03-01", StartTime: "20:00", EndTime: "22:00"}
	require.NoError(t, s.CreateShow(ctx, back2back))

	// an inactive show frees its slot
	early := &model.Show{MovieID: m.ID, TheaterID: th.ID, Hall: "1", Date: "2025-03-01", StartTime: "18:30", EndTime: "19:45"}
	require.ErrorIs(t, s.CreateShow(ctx, early), ErrShowOverlap)
	require.NoError(t, s.DeactivateShow(ctx, first.ID))
	require.NoError(t, s.CreateShow(ctx, early))

	// still blocked by back2back
	assert.ErrorIs(t, s.CreateShow(ctx, clash), ErrShowOverlap)
}

func TestMemoryStore_CreateShowChecksReferences(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m, th := seedTheater(t, s)

	tests := []struct {
		name  string
		show  model.Show
		field string
	}{
		{"unknown movie", model.Show{MovieID: 999, TheaterID: th.ID, Hall: "1", Date: "2025-03-01", StartTime: "10:00", EndTime: "11:00"}, "movieId"},
		{"unknown theater", model.Show{MovieID: m.ID, TheaterID: 999, Hall: "1", Date: "2025-03-01", StartTime: "10:00", EndTime: "11:00"}, "theaterId"},
		{"unknown hall", model.Show{MovieID: m.ID, TheaterID: th.ID, Hall: "9", Date: "2025-03-01", StartTime: "10:00", EndTime: "11:00"}, "hall"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateShow(ctx, &tt.show)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestMemoryStore_Halls(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, th := seedTheater(t, s)

	h := &model.Hall{Name: "2", Rows: []model.Row{{Label: "A", SeatCount: 10, AisleSeats: []int{1, 10}}}}
	require.NoError(t, s.AddHall(ctx, th.ID, h))
	assert.Equal(t, th.ID, h.TheaterID)

	dup := &model.Hall{Name: "2", Rows: []model.Row{{Label: "A", SeatCount: 6}}}
	var ve *model.ValidationError
	assert.ErrorAs(t, s.AddHall(ctx, th.ID, dup), &ve)

	got, err := s.GetHall(ctx, th.ID, "2")
	require.NoError(t, err)
	assert.Equal(t, 10, got.TotalCapacity())

	// returned copies do not alias stored state
	got.Rows[0].AisleSeats[0] = 5
	again, err := s.GetHall(ctx, th.ID, "2")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 10}, again.Rows[0].AisleSeats)

	_, err = s.GetHall(ctx, th.ID, "nope")
	assert.True(t, booking.IsNotFound(err))
	assert.True(t, booking.IsNotFound(s.AddHall(ctx, 999, h)))
}

func TestMemoryStore_ListingAndPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m, th := seedTheater(t, s)
	for i := 0; i < 5; i++ {
		sh := &model.Show{
			MovieID: m.ID, TheaterID: th.ID, Hall: "1", Date: "2025-03-01",
			StartTime: fmt.Sprintf("%02d:00", 20-2*i), EndTime: fmt.Sprintf("%02d:30", 20-2*i),
		}
		require.NoError(t, s.CreateShow(ctx, sh))
	}

	shows, err := s.ListShows(ctx, model.ShowFilter{MovieID: m.ID})
	require.NoError(t, err)
	require.Len(t, shows, 5)
	assert.Equal(t, "12:00", shows[0].StartTime)
	assert.Equal(t, "20:00", shows[4].StartTime)

	paged, err := s.ListShows(ctx, model.ShowFilter{MovieID: m.ID, Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, "16:00", paged[0].StartTime)

	movies, total, err := s.ListMovies(ctx, model.MovieFilter{Genre: "horror", ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, movies, 1)

	require.NoError(t, s.DeactivateMovie(ctx, m.ID))
	_, total, err = s.ListMovies(ctx, model.MovieFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Zero(t, total)

	theaters, total, err := s.ListTheaters(ctx, model.TheaterFilter{City: "berl"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Rex", theaters[0].Name)

	theaters, _, err = s.ListTheaters(ctx, model.TheaterFilter{Page: 3})
	require.NoError(t, err)
	assert.Empty(t, theaters)
}

func TestMemoryStore_WithinShowRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m, th := seedTheater(t, s)
	sh := &model.Show{MovieID: m.ID, TheaterID: th.ID, Hall: "1", Date: "2025-03-01", StartTime: "10:00", EndTime: "12:00"}
	require.NoError(t, s.CreateShow(ctx, sh))

	b := &model.Booking{BookingID: "BK1", ShowID: sh.ID, Date: sh.Date, Status: model.BookingPending,
		BookingExpiry: time.Now().Add(time.Hour), Seats: []model.BookedSeat{{Row: "A", Column: 1}}}

	err := s.WithinShow(ctx, sh.ID, sh.Date, func(ctx context.Context, tx booking.ShowTx) error {
		require.NoError(t, tx.Insert(ctx, b))
		active, err := tx.ActiveBookings(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1, "staged insert is visible inside the claim")
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	active, err := s.ActiveBookings(ctx, sh.ID, sh.Date)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.WithinShow(ctx, sh.ID, sh.Date, func(ctx context.Context, tx booking.ShowTx) error {
		return tx.Insert(ctx, b)
	}))
	err = s.WithinShow(ctx, sh.ID, sh.Date, func(ctx context.Context, tx booking.ShowTx) error {
		return tx.Insert(ctx, b)
	})
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve, "booking identifiers are unique")

	err = s.WithinShow(ctx, sh.ID, "2025-03-02", func(ctx context.Context, tx booking.ShowTx) error {
		_, err := tx.Update(ctx, "BK1", func(*model.Booking) error { return nil })
		return err
	})
	assert.True(t, booking.IsNotFound(err), "updates are scoped to the locked show+date")

	assert.True(t, booking.IsNotFound(s.WithinShow(ctx, 999, sh.Date, func(context.Context, booking.ShowTx) error { return nil })))
}

func TestMemoryStore_ExpirePending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m, th := seedTheater(t, s)
	sh := &model.Show{MovieID: m.ID, TheaterID: th.ID, Hall: "1", Date: "2025-03-01", StartTime: "10:00", EndTime: "12:00"}
	require.NoError(t, s.CreateShow(ctx, sh))

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	insert := func(id string, status model.BookingStatus, expiry time.Time) {
		require.NoError(t, s.WithinShow(ctx, sh.ID, sh.Date, func(ctx context.Context, tx booking.ShowTx) error {
			return tx.Insert(ctx, &model.Booking{BookingID: id, ShowID: sh.ID, Date: sh.Date, Status: status, BookingExpiry: expiry})
		}))
	}
	insert("lapsed", model.BookingPending, now.Add(-time.Minute))
	insert("live", model.BookingPending, now.Add(time.Minute))
	insert("sold", model.BookingConfirmed, now.Add(-time.Hour))

	expired, err := s.ExpirePending(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "lapsed", expired[0].BookingID)
	assert.Equal(t, model.BookingExpired, expired[0].Status)
	assert.Equal(t, now, expired[0].UpdatedAt)

	expired, err = s.ExpirePending(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired)

	sold, err := s.GetBooking(ctx, "sold")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, sold.Status)
}

func TestClassify(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	assert.ErrorIs(t, classify(deadlock), booking.ErrTransient)
	assert.ErrorIs(t, classify(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1205})), booking.ErrTransient)

	dup := &mysql.MySQLError{Number: 1062}
	assert.NotErrorIs(t, classify(dup), booking.ErrTransient)
	assert.True(t, isDuplicate(fmt.Errorf("wrapped: %w", dup)))
	assert.False(t, isDuplicate(assert.AnError))
}

func TestSQLHelpers(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))

	assert.Equal(t, "[]", encodeList[string](nil))
	assert.Equal(t, `["a","b"]`, encodeList([]string{"a", "b"}))
	assert.Equal(t, []int{1, 10}, decodeList[int]("[1,10]"))
	assert.Empty(t, decodeList[string](""))
}
