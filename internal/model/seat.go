package model

import (
    "fmt"
    "strings"
)

// Seat identifies a physical seat within a hall by its row label and
// number.  It is a comparable value type so it can be used directly as
// a map key when checking for overlaps.
//
// Fields:
//  Row    – letter or string designating the row (upper-case).
//  Number – number of the seat within the row, starting at 1.
type Seat struct {
    Row    string `json:"row"`    // hall_seats.row_label
    Number uint32 `json:"number"` // hall_seats.seat_number
}

// NormalizeSeat trims and upper-cases the row label so that "a", " A"
// and "A" address the same seat.
func NormalizeSeat(row string, number uint32) Seat {
    return Seat{Row: strings.ToUpper(strings.TrimSpace(row)), Number: number}
}

// Key returns the "row-number" form used in availability responses.
func (s Seat) Key() string {
    return fmt.Sprintf("%s-%d", s.Row, s.Number)
}

func (s Seat) String() string {
    return fmt.Sprintf("%s%d", s.Row, s.Number)
}

// HallSeat is a seat as configured for a hall.  PriceCents is zero when
// the seat carries no price of its own and the hall default applies.
//
// Fields:
//  ID         – primary key identifier.
//  HallID     – hall to which this seat belongs.
//  Seat       – row label and seat number.
//  PriceCents – per-seat price in cents (0 = hall default).
type HallSeat struct {
    ID         uint64 // hall_seats.id
    HallID     uint64 // hall_seats.hall_id
    Seat
    PriceCents uint32 // hall_seats.price_cents
}
