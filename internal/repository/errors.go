// Package repository implements the MySQL persistence layer.
//
// The sentinel values below let higher layers such as handlers tell
// failure scenarios apart.  ErrNotFound is shared with the ports package so
// the booking service can compare against a single value regardless of the
// store behind it.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-ticket-booking/internal/ports"
)

// ErrNotFound is returned when the requested row does not exist.  Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = ports.ErrNotFound

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete an event that still has live bookings or shrinking its
// capacity below the seats already sold. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create for a taken email.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
