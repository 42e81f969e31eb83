// Package queue carries reservation lifecycle events over RabbitMQ: a
// publisher used by the reservation service and a consumer that writes
// them to an append-only log.
package queue

import "time"

// Event kinds published on the reservation queue.
const (
    EventConfirmed    = "reservation.confirmed"
    EventCancelled    = "reservation.cancelled"
    EventHoldReleased = "reservation.hold_released"
    EventExpired      = "reservation.expired"
)

// ReservationEvent is published whenever a reservation changes state.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type ReservationEvent struct {
    Type              string    `json:"type"`
    ReservationID     uint64    `json:"reservation_id"`
    UserID            uint64    `json:"user_id"`
    MovieID           uint64    `json:"movie_id"`
    HallID            uint64    `json:"hall_id"`
    Showtime          string    `json:"showtime"`
    ShowtimeDate      time.Time `json:"showtime_date"`
    Seats             []string  `json:"seats"`
    Status            string    `json:"status"`
    AmountCents       int64     `json:"amount_cents"`
    RefundAmountCents int64     `json:"refund_amount_cents,omitempty"`
    Currency          string    `json:"currency"`
    OccurredAt        time.Time `json:"occurred_at"`
}
