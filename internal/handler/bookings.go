package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/model"
)

// BookingHandler translates booking requests into calls on the Manager.
type BookingHandler struct {
	Manager *booking.Manager
}

// NewBookingHandler panics on a nil manager.
func NewBookingHandler(m *booking.Manager) *BookingHandler {
	if m == nil {
		panic("nil manager passed to NewBookingHandler")
	}
	return &BookingHandler{Manager: m}
}

type reserveRequest struct {
	ShowID uint64                 `json:"showId" validate:"required"`
	Date   string                 `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Seats  []model.SeatCoordinate `json:"seats" validate:"required,min=1"`
	model.Customer
}

// Reserve handles POST /api/bookings. The seats are held as a pending
// booking; a 409 lists every requested seat that is already taken.
func (h *BookingHandler) Reserve(c echo.Context) error {
	var req reserveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	b, err := h.Manager.Reserve(c.Request().Context(), booking.ReserveRequest{
		ShowID:   req.ShowID,
		Date:     req.Date,
		Seats:    req.Seats,
		Customer: req.Customer,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

type groupRequest struct {
	MovieID   uint64 `json:"movieId" validate:"required"`
	TheaterID uint64 `json:"theaterId" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	NumSeats  int    `json:"numSeats" validate:"required,min=1"`
	model.Customer
}

// ReserveGroup handles POST /api/bookings/group. It books the first show
// with a consecutive block, or answers 200 with alternatives when none of
// the movie's shows has room.
func (h *BookingHandler) ReserveGroup(c echo.Context) error {
	var req groupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := h.Manager.ReserveGroup(c.Request().Context(), booking.GroupRequest{
		MovieID:   req.MovieID,
		TheaterID: req.TheaterID,
		Date:      req.Date,
		SeatCount: req.NumSeats,
		Customer:  req.Customer,
	})
	if err != nil {
		return writeError(c, err)
	}
	if res.Booking != nil {
		return c.JSON(http.StatusCreated, echo.Map{"message": "group booking created", "booking": res.Booking})
	}
	alts := res.Alternatives
	if alts == nil {
		alts = []booking.Alternative{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "no consecutive seats available for the requested criteria",
		"alternatives": alts,
	})
}

// List handles GET /api/bookings?status=&customerEmail=&page=&limit=.
func (h *BookingHandler) List(c echo.Context) error {
	f := model.BookingFilter{
		Status:        model.BookingStatus(strings.ToLower(c.QueryParam("status"))),
		CustomerEmail: c.QueryParam("customerEmail"),
	}
	var err error
	if f.Page, err = queryInt(c, "page"); err != nil {
		return writeError(c, err)
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return writeError(c, err)
	}
	f.Normalize()
	list, total, err := h.Manager.ListBookings(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pageBody("bookings", list, total, f.Page, f.Limit))
}

// Get handles GET /api/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.Manager.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled expired"`
}

// SetStatus handles PUT /api/bookings/:id/status.
func (h *BookingHandler) SetStatus(c echo.Context) error {
	var req statusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	b, err := h.Manager.SetStatus(c.Request().Context(), c.Param("id"), model.BookingStatus(req.Status))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=pending completed failed"`
}

// SetPayment handles PUT /api/bookings/:id/payment.
func (h *BookingHandler) SetPayment(c echo.Context) error {
	var req paymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	b, err := h.Manager.SetPaymentStatus(c.Request().Context(), c.Param("id"), model.PaymentStatus(req.PaymentStatus))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles DELETE /api/bookings/:id. The seats are free for new
// claims as soon as it returns.
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := h.Manager.SetStatus(c.Request().Context(), c.Param("id"), model.BookingCancelled)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled", "booking": b})
}

// SeatMap handles GET /api/bookings/show/:showId/seats?date=.
func (h *BookingHandler) SeatMap(c echo.Context) error {
	id, err := parseID(c, "showId")
	if err != nil {
		return writeError(c, err)
	}
	m, err := h.Manager.GetAvailability(c.Request().Context(), id, c.QueryParam("date"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Sweep handles POST /api/admin/sweep and runs one expiry pass now.
func (h *BookingHandler) Sweep(c echo.Context) error {
	n, err := h.Manager.SweepExpired(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
