package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
    StatusPending   ReservationStatus = "pending"
    StatusReserved  ReservationStatus = "reserved"
    StatusCancelled ReservationStatus = "cancelled"
    StatusExpired   ReservationStatus = "expired"
)

// IsActive reports whether a reservation in this state holds its seats.
func (s ReservationStatus) IsActive() bool {
    return s == StatusPending || s == StatusReserved
}

// ActiveStatuses lists the states that hold seats.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusReserved}

// Screening identifies one showing of a hall: the hall, the "HH:MM"
// showtime token and the calendar day.  Seat exclusion is scoped to a
// screening.
type Screening struct {
    HallID   uint64
    Showtime string
    Date     time.Time // midnight of the show day in the cinema time zone
}

// Reservation records a user's booking of seats for a screening.
// Amount is fixed at creation.  Refund fields are filled only when a
// confirmed reservation is cancelled.
//
// Fields:
//  ID                – primary key identifier.
//  UserID            – user who made the reservation.
//  MovieID           – movie being shown.
//  HallID            – hall of the screening.
//  Showtime          – "HH:MM" token of the screening.
//  ShowtimeDate      – instant the screening starts (UTC in storage).
//  Seats             – seats held by the reservation.
//  Status            – lifecycle state.
//  AmountCents       – total price in minor units.
//  Currency          – ISO currency code.
//  PaymentRef        – processor payment intent id.
//  RefundRef         – processor refund id.
//  RefundAmountCents – amount refunded on cancellation.
//  RefundedAt        – when the refund was issued.
//  HoldExpiresAt     – due time of the pending hold.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Reservation struct {
    ID                uint64            // reservations.id
    UserID            uint64            // reservations.user_id
    MovieID           uint64            // reservations.movie_id
    HallID            uint64            // reservations.hall_id
    Showtime          string            // reservations.showtime
    ShowtimeDate      time.Time         // reservations.showtime_date
    Seats             []Seat            // reservation_seats rows
    Status            ReservationStatus // reservations.status
    AmountCents       int64             // reservations.amount_cents
    Currency          string            // reservations.currency
    PaymentRef        *string           // reservations.payment_ref (nullable)
    RefundRef         *string           // reservations.refund_ref (nullable)
    RefundAmountCents *int64            // reservations.refund_amount_cents (nullable)
    RefundedAt        *time.Time        // reservations.refunded_at (nullable)
    HoldExpiresAt     *time.Time        // reservations.hold_expires_at (nullable)
    CreatedAt         time.Time         // reservations.created_at
    UpdatedAt         time.Time         // reservations.updated_at
}

// Screening returns the screening the reservation belongs to, with the
// day computed in loc.
func (r *Reservation) Screening(loc *time.Location) Screening {
    t := r.ShowtimeDate.In(loc)
    return Screening{
        HallID:   r.HallID,
        Showtime: r.Showtime,
        Date:     time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc),
    }
}
