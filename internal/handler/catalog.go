package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/model"
)

// CatalogStore is the catalogue side of the store: movies, theaters with
// their halls, and shows. Both repository stores implement it.
type CatalogStore interface {
	CreateMovie(ctx context.Context, m *model.Movie) error
	GetMovie(ctx context.Context, id uint64) (*model.Movie, error)
	ListMovies(ctx context.Context, f model.MovieFilter) ([]model.Movie, int, error)
	DeactivateMovie(ctx context.Context, id uint64) error

	CreateTheater(ctx context.Context, t *model.Theater) error
	GetTheater(ctx context.Context, id uint64) (*model.Theater, error)
	ListTheaters(ctx context.Context, f model.TheaterFilter) ([]model.Theater, int, error)
	AddHall(ctx context.Context, theaterID uint64, h *model.Hall) error
	GetHall(ctx context.Context, theaterID uint64, name string) (*model.Hall, error)
	DeactivateTheater(ctx context.Context, id uint64) error

	CreateShow(ctx context.Context, s *model.Show) error
	GetShow(ctx context.Context, id uint64) (*model.Show, error)
	ListShows(ctx context.Context, f model.ShowFilter) ([]model.Show, error)
	DeactivateShow(ctx context.Context, id uint64) error
}

// CatalogHandler serves movies, theaters, halls and shows.
type CatalogHandler struct {
	Store CatalogStore
	Cache CacheInvalidator // optional
}

// NewCatalogHandler panics on a nil store.
func NewCatalogHandler(store CatalogStore, cache CacheInvalidator) *CatalogHandler {
	if store == nil {
		panic("nil store passed to NewCatalogHandler")
	}
	return &CatalogHandler{Store: store, Cache: cache}
}

func (h *CatalogHandler) invalidate(c echo.Context) {
	if h.Cache != nil {
		h.Cache.Invalidate(c.Request().Context())
	}
}

// ---- Movies ----

type movieRequest struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description"`
	Duration    int      `json:"duration" validate:"required,min=1"`
	Genre       []string `json:"genre"`
	Language    string   `json:"language" validate:"max=64"`
	ReleaseDate string   `json:"releaseDate" validate:"omitempty,datetime=2006-01-02"`
	Rating      float64  `json:"rating" validate:"min=0,max=10"`
}

// CreateMovie handles POST /api/movies.
func (h *CatalogHandler) CreateMovie(c echo.Context) error {
	var req movieRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	m := &model.Movie{
		Title:       req.Title,
		Description: req.Description,
		Duration:    req.Duration,
		Genre:       req.Genre,
		Language:    req.Language,
		ReleaseDate: req.ReleaseDate,
		Rating:      req.Rating,
	}
	if err := h.Store.CreateMovie(c.Request().Context(), m); err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusCreated, m)
}

// ListMovies handles GET /api/movies?page=&limit=&genre=&isActive=.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	f := model.MovieFilter{Genre: strings.TrimSpace(c.QueryParam("genre")), ActiveOnly: activeOnly(c)}
	var err error
	if f.Page, err = queryInt(c, "page"); err != nil {
		return writeError(c, err)
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return writeError(c, err)
	}
	model.Paginate(&f.Page, &f.Limit)
	movies, total, err := h.Store.ListMovies(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pageBody("movies", movies, total, f.Page, f.Limit))
}

// GetMovie handles GET /api/movies/:id.
func (h *CatalogHandler) GetMovie(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	m, err := h.Store.GetMovie(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// DeleteMovie handles DELETE /api/movies/:id as a soft delete.
func (h *CatalogHandler) DeleteMovie(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Store.DeactivateMovie(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "movie deactivated"})
}

// ---- Theaters ----

type rowRequest struct {
	RowNumber  string `json:"rowNumber" validate:"required,max=16"`
	TotalSeats int    `json:"totalSeats" validate:"required,min=6"`
	AisleSeats []int  `json:"aisleSeats"`
}

type hallRequest struct {
	Name       string       `json:"name" validate:"required,max=128"`
	HallNumber string       `json:"hallNumber" validate:"max=32"`
	Rows       []rowRequest `json:"rows" validate:"required,min=1,dive"`
}

func (r hallRequest) toModel() model.Hall {
	h := model.Hall{Name: r.Name, HallNumber: r.HallNumber, Rows: make([]model.Row, len(r.Rows))}
	for i, row := range r.Rows {
		h.Rows[i] = model.Row{Label: row.RowNumber, SeatCount: row.TotalSeats, AisleSeats: row.AisleSeats}
	}
	return h
}

type theaterRequest struct {
	Name          string        `json:"name" validate:"required,max=255"`
	Address       model.Address `json:"address"`
	ContactNumber string        `json:"contactNumber" validate:"required,max=32"`
	Email         string        `json:"email" validate:"required,email"`
	Halls         []hallRequest `json:"halls" validate:"dive"`
	Amenities     []string      `json:"amenities"`
}

// CreateTheater handles POST /api/theaters.
func (h *CatalogHandler) CreateTheater(c echo.Context) error {
	var req theaterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	t := &model.Theater{
		Name:          req.Name,
		Address:       req.Address,
		ContactNumber: req.ContactNumber,
		Email:         req.Email,
		Amenities:     req.Amenities,
		Halls:         make([]model.Hall, len(req.Halls)),
	}
	for i, hr := range req.Halls {
		t.Halls[i] = hr.toModel()
	}
	if err := h.Store.CreateTheater(c.Request().Context(), t); err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusCreated, t)
}

// ListTheaters handles GET /api/theaters?page=&limit=&city=&isActive=.
func (h *CatalogHandler) ListTheaters(c echo.Context) error {
	f := model.TheaterFilter{City: c.QueryParam("city"), ActiveOnly: activeOnly(c)}
	var err error
	if f.Page, err = queryInt(c, "page"); err != nil {
		return writeError(c, err)
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return writeError(c, err)
	}
	model.Paginate(&f.Page, &f.Limit)
	theaters, total, err := h.Store.ListTheaters(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pageBody("theaters", theaters, total, f.Page, f.Limit))
}

// GetTheater handles GET /api/theaters/:id.
func (h *CatalogHandler) GetTheater(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	t, err := h.Store.GetTheater(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// DeleteTheater handles DELETE /api/theaters/:id as a soft delete.
func (h *CatalogHandler) DeleteTheater(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Store.DeactivateTheater(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "theater deactivated"})
}

// AddHall handles POST /api/theaters/:id/halls.
func (h *CatalogHandler) AddHall(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req hallRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	hall := req.toModel()
	if err := h.Store.AddHall(c.Request().Context(), id, &hall); err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusCreated, hall)
}

// HallLayout handles GET /api/theaters/:id/halls/:hall/layout.
func (h *CatalogHandler) HallLayout(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	hall, err := h.Store.GetHall(c.Request().Context(), id, c.Param("hall"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"hall":          hall,
		"totalCapacity": hall.TotalCapacity(),
		"seats":         hall.Seats(),
	})
}

// ---- Shows ----

type showRequest struct {
	MovieID    uint64 `json:"movieId" validate:"required"`
	TheaterID  uint64 `json:"theaterId" validate:"required"`
	Hall       string `json:"hall" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"startTime" validate:"required"`
	EndTime    string `json:"endTime" validate:"required"`
	PriceCents uint32 `json:"priceCents"`
}

// CreateShow handles POST /api/shows. An overlapping show in the same hall
// and date is rejected with 409.
func (h *CatalogHandler) CreateShow(c echo.Context) error {
	var req showRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	s := &model.Show{
		MovieID:    req.MovieID,
		TheaterID:  req.TheaterID,
		Hall:       req.Hall,
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		PriceCents: req.PriceCents,
	}
	if err := h.Store.CreateShow(c.Request().Context(), s); err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusCreated, s)
}

// ListShows handles GET /api/shows?movieId=&theaterId=&date=&page=&limit=.
func (h *CatalogHandler) ListShows(c echo.Context) error {
	f := model.ShowFilter{Date: c.QueryParam("date"), ActiveOnly: activeOnly(c)}
	var err error
	if f.MovieID, err = queryUint(c, "movieId"); err != nil {
		return writeError(c, err)
	}
	if f.TheaterID, err = queryUint(c, "theaterId"); err != nil {
		return writeError(c, err)
	}
	if f.Page, err = queryInt(c, "page"); err != nil {
		return writeError(c, err)
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return writeError(c, err)
	}
	page, limit := f.Page, f.Limit
	offset := model.Paginate(&page, &limit)
	f.Page, f.Limit = 0, 0 // count everything, page below

	all, err := h.Store.ListShows(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	shows := []model.Show{}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		shows = all[offset:end]
	}
	return c.JSON(http.StatusOK, pageBody("shows", shows, len(all), page, limit))
}

// GetShow handles GET /api/shows/:id.
func (h *CatalogHandler) GetShow(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	s, err := h.Store.GetShow(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// DeleteShow handles DELETE /api/shows/:id as a soft delete. Bookings of
// the show keep their status.
func (h *CatalogHandler) DeleteShow(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Store.DeactivateShow(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "show deactivated"})
}
