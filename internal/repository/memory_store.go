package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/model"
)

// MemoryStore keeps the whole catalogue and every booking in process
// memory. It is used for local runs (STORE_DRIVER=memory) and tests. Claims
// for one show+date are serialised by a per-key mutex, mirroring the row
// lock the MySQL store takes on the show.
type MemoryStore struct {
	mu       sync.RWMutex
	keyLocks map[string]*sync.Mutex
	nextID   uint64
	movies   map[uint64]*model.Movie
	theaters map[uint64]*model.Theater
	shows    map[uint64]*model.Show
	bookings map[string]*model.Booking // by booking code
	order    []string                  // booking codes in insertion order
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keyLocks: make(map[string]*sync.Mutex),
		movies:   make(map[uint64]*model.Movie),
		theaters: make(map[uint64]*model.Theater),
		shows:    make(map[uint64]*model.Show),
		bookings: make(map[string]*model.Booking),
	}
}

func (s *MemoryStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}

// ---- Movies ----

func (s *MemoryStore) CreateMovie(_ context.Context, m *model.Movie) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	m.ID = s.id()
	m.IsActive = true
	m.CreatedAt, m.UpdatedAt = now, now
	c := *m
	s.movies[m.ID] = &c
	return nil
}

func (s *MemoryStore) GetMovie(_ context.Context, id uint64) (*model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, booking.NotFound("movie", id)
	}
	c := *m
	return &c, nil
}

func (s *MemoryStore) ListMovies(_ context.Context, f model.MovieFilter) ([]model.Movie, int, error) {
	offset := model.Paginate(&f.Page, &f.Limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.Movie
	for _, m := range s.movies {
		if f.ActiveOnly && !m.IsActive {
			continue
		}
		if f.Genre != "" && !containsFold(m.Genre, f.Genre) {
			continue
		}
		all = append(all, *m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return page(all, offset, f.Limit), len(all), nil
}

func (s *MemoryStore) DeactivateMovie(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	if !ok {
		return booking.NotFound("movie", id)
	}
	m.IsActive = false
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- Theaters and halls ----

func (s *MemoryStore) CreateTheater(_ context.Context, t *model.Theater) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	t.ID = s.id()
	t.IsActive = true
	t.CreatedAt, t.UpdatedAt = now, now
	for i := range t.Halls {
		t.Halls[i].ID = s.id()
		t.Halls[i].TheaterID = t.ID
		t.Halls[i].IsActive = true
	}
	s.theaters[t.ID] = cloneTheater(t)
	return nil
}

func (s *MemoryStore) GetTheater(_ context.Context, id uint64) (*model.Theater, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.theaters[id]
	if !ok {
		return nil, booking.NotFound("theater", id)
	}
	return cloneTheater(t), nil
}

func (s *MemoryStore) ListTheaters(_ context.Context, f model.TheaterFilter) ([]model.Theater, int, error) {
	offset := model.Paginate(&f.Page, &f.Limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.Theater
	for _, t := range s.theaters {
		if f.ActiveOnly && !t.IsActive {
			continue
		}
		if f.City != "" && !strings.Contains(strings.ToLower(t.Address.City), strings.ToLower(f.City)) {
			continue
		}
		all = append(all, *cloneTheater(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return page(all, offset, f.Limit), len(all), nil
}

func (s *MemoryStore) AddHall(_ context.Context, theaterID uint64, h *model.Hall) error {
	if err := h.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.theaters[theaterID]
	if !ok {
		return booking.NotFound("theater", theaterID)
	}
	if _, dup := t.Hall(h.Name); dup {
		return &model.ValidationError{Field: "name", Reason: "hall name already used in this theater"}
	}
	h.ID = s.id()
	h.TheaterID = theaterID
	h.IsActive = true
	t.Halls = append(t.Halls, cloneHall(h))
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetHall(_ context.Context, theaterID uint64, name string) (*model.Hall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.theaters[theaterID]
	if !ok {
		return nil, booking.NotFound("theater", theaterID)
	}
	h, ok := t.Hall(name)
	if !ok {
		return nil, booking.NotFound("hall", name)
	}
	c := cloneHall(h)
	return &c, nil
}

func (s *MemoryStore) DeactivateTheater(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.theaters[id]
	if !ok {
		return booking.NotFound("theater", id)
	}
	t.IsActive = false
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- Shows ----

// CreateShow inserts sh after checking that the movie and theater are
// active, the hall exists and no active show in the same hall and date
// overlaps its time slot.
func (s *MemoryStore) CreateShow(_ context.Context, sh *model.Show) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.movies[sh.MovieID]; !ok || !m.IsActive {
		return &model.ValidationError{Field: "movieId", Reason: "movie not found or inactive"}
	}
	t, ok := s.theaters[sh.TheaterID]
	if !ok || !t.IsActive {
		return &model.ValidationError{Field: "theaterId", Reason: "theater not found or inactive"}
	}
	if _, ok := t.Hall(sh.Hall); !ok {
		return &model.ValidationError{Field: "hall", Reason: "hall not found in theater"}
	}
	for _, o := range s.shows {
		if o.IsActive && o.Overlaps(sh) {
			return ErrShowOverlap
		}
	}
	now := time.Now().UTC()
	sh.ID = s.id()
	sh.IsActive = true
	sh.CreatedAt, sh.UpdatedAt = now, now
	c := *sh
	s.shows[sh.ID] = &c
	return nil
}

func (s *MemoryStore) GetShow(_ context.Context, id uint64) (*model.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shows[id]
	if !ok {
		return nil, booking.NotFound("show", id)
	}
	c := *sh
	return &c, nil
}

// ListShows returns matching shows ordered by date then start time. A
// positive Limit pages the result.
func (s *MemoryStore) ListShows(_ context.Context, f model.ShowFilter) ([]model.Show, error) {
	s.mu.RLock()
	var out []model.Show
	for _, sh := range s.shows {
		if f.Match(sh) {
			out = append(out, *sh)
		}
	}
	s.mu.RUnlock()
	sortShows(out)
	if f.Limit > 0 {
		offset := model.Paginate(&f.Page, &f.Limit)
		out = page(out, offset, f.Limit)
	}
	return out, nil
}

func (s *MemoryStore) DeactivateShow(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shows[id]
	if !ok {
		return booking.NotFound("show", id)
	}
	sh.IsActive = false
	sh.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- Bookings ----

func (s *MemoryStore) ActiveBookings(_ context.Context, showID uint64, date string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(showID, date), nil
}

func (s *MemoryStore) activeLocked(showID uint64, date string) []model.Booking {
	var out []model.Booking
	for _, code := range s.order {
		b := s.bookings[code]
		if b.ShowID != showID || b.Date != date {
			continue
		}
		if b.Status == model.BookingPending || b.Status == model.BookingConfirmed {
			out = append(out, *b.Clone())
		}
	}
	return out
}

// WithinShow serialises fn against other calls for the same show+date.
// Inserts and updates are staged and only applied if fn succeeds.
func (s *MemoryStore) WithinShow(ctx context.Context, showID uint64, date string, fn func(ctx context.Context, tx booking.ShowTx) error) error {
	if _, err := s.GetShow(ctx, showID); err != nil {
		return err
	}
	l := s.keyLock(booking.LockKey(showID, date))
	l.Lock()
	defer l.Unlock()

	tx := &memoryShowTx{store: s, showID: showID, date: date, updated: make(map[string]*model.Booking)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range tx.inserted {
		if _, dup := s.bookings[b.BookingID]; dup {
			return &model.ValidationError{Field: "bookingId", Reason: "duplicate booking identifier"}
		}
	}
	for _, b := range tx.inserted {
		b.ID = s.id()
		s.bookings[b.BookingID] = b.Clone()
		s.order = append(s.order, b.BookingID)
	}
	for code, b := range tx.updated {
		s.bookings[code] = b.Clone()
	}
	return nil
}

type memoryShowTx struct {
	store    *MemoryStore
	showID   uint64
	date     string
	inserted []*model.Booking
	updated  map[string]*model.Booking
}

func (t *memoryShowTx) ActiveBookings(_ context.Context) ([]model.Booking, error) {
	t.store.mu.RLock()
	out := t.store.activeLocked(t.showID, t.date)
	t.store.mu.RUnlock()
	for _, b := range t.inserted {
		out = append(out, *b.Clone())
	}
	return out, nil
}

func (t *memoryShowTx) Insert(_ context.Context, b *model.Booking) error {
	if b.ShowID != t.showID || b.Date != t.date {
		return &model.ValidationError{Field: "showId", Reason: "booking does not belong to the locked show"}
	}
	t.inserted = append(t.inserted, b)
	return nil
}

func (t *memoryShowTx) Update(_ context.Context, bookingID string, fn func(b *model.Booking) error) (*model.Booking, error) {
	cur, ok := t.updated[bookingID]
	if !ok {
		t.store.mu.RLock()
		stored, found := t.store.bookings[bookingID]
		if found {
			cur = stored.Clone()
		}
		t.store.mu.RUnlock()
		if !found || cur.ShowID != t.showID || cur.Date != t.date {
			return nil, booking.NotFound("booking", bookingID)
		}
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	t.updated[bookingID] = next
	return next.Clone(), nil
}

func (s *MemoryStore) GetBooking(_ context.Context, bookingID string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, booking.NotFound("booking", bookingID)
	}
	return b.Clone(), nil
}

// ListBookings pages through bookings newest first.
func (s *MemoryStore) ListBookings(_ context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	offset := model.Paginate(&f.Page, &f.Limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.Booking
	for i := len(s.order) - 1; i >= 0; i-- {
		b := s.bookings[s.order[i]]
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.CustomerEmail != "" && !strings.EqualFold(b.Email, f.CustomerEmail) {
			continue
		}
		all = append(all, *b.Clone())
	}
	return page(all, offset, f.Limit), len(all), nil
}

// ExpirePending expires lapsed pending bookings one show+date at a time,
// holding the same key lock that claims and status changes use.
func (s *MemoryStore) ExpirePending(_ context.Context, now time.Time) ([]model.Booking, error) {
	s.mu.RLock()
	keys := make(map[string]struct{})
	for _, b := range s.bookings {
		if b.HoldLapsed(now) {
			keys[booking.LockKey(b.ShowID, b.Date)] = struct{}{}
		}
	}
	s.mu.RUnlock()

	var expired []model.Booking
	for key := range keys {
		l := s.keyLock(key)
		l.Lock()
		s.mu.Lock()
		for _, code := range s.order {
			b := s.bookings[code]
			if booking.LockKey(b.ShowID, b.Date) != key || !b.HoldLapsed(now) {
				continue
			}
			b.Status = model.BookingExpired
			b.UpdatedAt = now
			expired = append(expired, *b.Clone())
		}
		s.mu.Unlock()
		l.Unlock()
	}
	return expired, nil
}

func cloneHall(h *model.Hall) model.Hall {
	c := *h
	c.Rows = make([]model.Row, len(h.Rows))
	for i, r := range h.Rows {
		r.AisleSeats = append([]int(nil), r.AisleSeats...)
		c.Rows[i] = r
	}
	return c
}

func cloneTheater(t *model.Theater) *model.Theater {
	c := *t
	c.Amenities = append([]string(nil), t.Amenities...)
	c.Halls = make([]model.Hall, len(t.Halls))
	for i := range t.Halls {
		c.Halls[i] = cloneHall(&t.Halls[i])
	}
	return &c
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func sortShows(shows []model.Show) {
	sort.Slice(shows, func(i, j int) bool {
		if shows[i].Date != shows[j].Date {
			return shows[i].Date < shows[j].Date
		}
		if shows[i].StartTime != shows[j].StartTime {
			return shows[i].StartTime < shows[j].StartTime
		}
		return shows[i].ID < shows[j].ID
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var _ booking.Store = (*MemoryStore)(nil)
