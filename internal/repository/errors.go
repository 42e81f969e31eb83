// Package repository implements MySQL persistence for halls, movies,
// users and reservations.  Sentinel errors defined here let higher
// layers such as services and handlers distinguish failure scenarios
// without inspecting driver errors.
package repository

import "errors"

var (
	// ErrHallNotFound is returned when a hall lookup fails.
	ErrHallNotFound = errors.New("hall not found")
	// ErrMovieNotFound is returned when a movie lookup fails.
	ErrMovieNotFound = errors.New("movie not found")
	// ErrReservationNotFound is returned when no reservation matches.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrUserNotFound is returned when a user lookup fails.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is returned when registering an email twice.
	ErrEmailExists = errors.New("email already exists")
	// ErrSeatTaken is returned when inserting a seat that is already held
	// by another active reservation for the same screening.
	ErrSeatTaken = errors.New("seat already held")
)
