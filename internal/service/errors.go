package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-reservation/internal/model"
	"github.com/iliyamo/cinema-reservation/internal/repository"
)

var (
	// ErrShowtimePassed is returned when creating a reservation for a
	// screening that has already started.
	ErrShowtimePassed = errors.New("showtime has already passed")
	// ErrForbidden is returned when the caller neither owns the
	// reservation nor is an admin.
	ErrForbidden = errors.New("not allowed to act on this reservation")
	// ErrMovieHasNoHall is returned when availability is requested for a
	// movie that has not been assigned a hall.
	ErrMovieHasNoHall = errors.New("movie has no hall assigned")
	// ErrPaymentNotSucceeded is returned when confirming a payment the
	// processor has not settled.
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
	// ErrAlreadyConfirmed is returned by a repeated confirmation.  It is
	// a not-found condition: no pending reservation matches any more.
	ErrAlreadyConfirmed = fmt.Errorf("reservation already confirmed: %w", repository.ErrReservationNotFound)
	// ErrHoldExpired is returned when confirming a reservation whose hold
	// was released before the payment arrived.
	ErrHoldExpired = fmt.Errorf("reservation hold expired: %w", repository.ErrReservationNotFound)
	// ErrLockTimeout is returned when the screening lock cannot be taken.
	ErrLockTimeout = errors.New("timed out waiting for screening lock")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SeatConflictError lists the requested seats already held by another
// active reservation.
type SeatConflictError struct {
	Seats []model.Seat
}

func (e *SeatConflictError) Error() string {
	labels := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		labels[i] = s.Key()
	}
	return "seats already reserved: " + strings.Join(labels, ", ")
}

// CancellationWindowError is returned when cancelling at or after the
// deadline.
type CancellationWindowError struct {
	Deadline time.Time
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("cancellation window closed at %s", e.Deadline.UTC().Format(time.RFC3339))
}

// InvalidTransitionError is returned when the reservation's current
// status does not allow the requested change.
type InvalidTransitionError struct {
	From model.ReservationStatus
	To   model.ReservationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move reservation from %s to %s", e.From, e.To)
}

// PaymentError wraps a failure of the payment processor.
type PaymentError struct {
	Op  string
	Err error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s failed: %v", e.Op, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }
