// Package repository holds the persistence layer: MySQL repositories for
// the catalogue and bookings, and an in-memory store with the same
// behaviour for local runs and tests. Both satisfy booking.Store.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/movie-booking/internal/booking"
)

// ErrConflict is returned when a write cannot proceed because of existing
// state. Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrShowOverlap is returned when a new show would overlap an active show
// in the same hall on the same date.
var ErrShowOverlap = fmt.Errorf("%w: show overlaps an existing show in the hall", ErrConflict)

// MySQL error numbers that mean the statement may succeed if retried.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlDuplicateEntry  = 1062
)

// classify wraps deadlocks and lock wait timeouts with booking.ErrTransient
// so the engine can retry them once.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %v", booking.ErrTransient, err)
		}
	}
	return err
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
