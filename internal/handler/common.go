// Package handler exposes the HTTP handlers of the booking API. Handlers
// bind and validate the request, call the catalogue store or the booking
// manager, and map domain errors onto status codes.
package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/booking"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
)

// CacheInvalidator drops cached catalogue responses after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, &model.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &model.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}

// queryUint reads an optional unsigned query parameter.
func queryUint(c echo.Context, name string) (uint64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, &model.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return n, nil
}

// activeOnly reads the isActive query flag, which defaults to true.
func activeOnly(c echo.Context) bool {
	v := c.QueryParam("isActive")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}

// bindAndValidate decodes the JSON body into dst and runs the registered
// validator on it.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return &model.ValidationError{Field: "body", Reason: "invalid JSON body", Err: err}
	}
	return c.Validate(dst)
}

// pageBody is the listing envelope.
func pageBody(key string, items interface{}, total, page, limit int) echo.Map {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return echo.Map{
		key:           items,
		"total":       total,
		"currentPage": page,
		"totalPages":  pages,
	}
}

// writeError maps domain errors onto HTTP responses:
//
//	ValidationError          – 400
//	NotFoundError            – 404
//	ConflictError            – 409 with the conflicting seats
//	ErrHoldExpired           – 409
//	InvalidTransitionError   – 409
//	ErrShowOverlap           – 409
//	ErrLockTimeout           – 503
//	anything else            – 500
func writeError(c echo.Context, err error) error {
	var (
		ve *model.ValidationError
		nf *booking.NotFoundError
		ce *booking.ConflictError
		te *booking.InvalidTransitionError
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Error()}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error(), "conflicts": ce.Seats})
	case errors.Is(err, booking.ErrHoldExpired):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &te):
		return c.JSON(http.StatusConflict, echo.Map{"error": te.Error(), "from": te.From, "to": te.To})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Error()})
	case errors.Is(err, booking.ErrLockTimeout):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "show is busy, retry shortly"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request cancelled"})
	}
	// picked up by the request logger
	c.Set(middleware.ErrorContextKey, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
