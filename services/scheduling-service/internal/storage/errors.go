package storage

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the active-slot uniqueness rule rejected a write.
	ErrConflict = errors.New("active appointment already holds this slot")
)

const activeSlotConstraint = "appointments_active_slot_uq"

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeSlotConstraint
}

// IsUnavailable reports transient failures: timeouts and unreachable servers.
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Failure turns an unexpected store error into an Unavailable or Internal app error.
func Failure(op string, err error) error {
	if IsUnavailable(err) {
		return apperr.Unavailable(op+": store unavailable", err)
	}
	return apperr.Internal(op+": store error", err)
}
