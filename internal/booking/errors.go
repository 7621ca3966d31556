package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/movie-booking/internal/model"
)

// ValidationError is returned for malformed requests. No state is changed.
type ValidationError = model.ValidationError

// ConflictError is returned when requested seats are already held or sold
// for the same show and date. Seats lists exactly the overlapping seats.
type ConflictError struct {
	Seats []model.SeatCoordinate
}

func (e *ConflictError) Error() string {
	keys := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		keys[i] = s.Key()
	}
	return "seats already booked: " + strings.Join(keys, ", ")
}

// InvalidTransitionError is returned when a status change is not one of the
// allowed lifecycle edges.
type InvalidTransitionError struct {
	From model.BookingStatus
	To   model.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change booking status from %s to %s", e.From, e.To)
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

var (
	// ErrHoldExpired is returned when confirming a pending booking whose
	// hold has already lapsed. Callers treat it as a conflict.
	ErrHoldExpired = errors.New("booking hold has expired")

	// ErrTransient marks store failures that are safe to retry, such as
	// deadlocks or lock wait timeouts. Stores wrap their driver error with it.
	ErrTransient = errors.New("transient store failure")

	// ErrLockTimeout is returned when the per-show lock could not be
	// acquired within the configured wait.
	ErrLockTimeout = errors.New("timed out waiting for show lock")

	// errNoBlock signals inside a claim that no consecutive block exists.
	errNoBlock = errors.New("no consecutive block available")
)

// NotFound builds a NotFoundError for the given entity and identifier.
func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a seat conflict or a lapsed hold.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce) || errors.Is(err, ErrHoldExpired)
}
