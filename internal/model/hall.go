package model

import "time"

// DefaultSeatPriceCents is the price of a seat when neither the seat nor
// the hall defines one (20 currency units).
const DefaultSeatPriceCents uint32 = 2000

// Hall represents a screening hall together with its seat layout.
// Seats are kept in row/number order.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – unique hall name.
//  TotalSeats     – number of seats configured for the hall.
//  SeatPriceCents – default price of a seat in cents.
//  Seats          – ordered seat layout (loaded on demand).
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Hall struct {
    ID             uint64     // halls.id
    Name           string     // halls.name
    TotalSeats     uint32     // halls.total_seats
    SeatPriceCents uint32     // halls.seat_price_cents
    Seats          []HallSeat // hall_seats rows
    CreatedAt      time.Time  // halls.created_at
    UpdatedAt      time.Time  // halls.updated_at
}

// PriceOf returns the effective price of a seat, falling back to the
// hall default and then to DefaultSeatPriceCents.
func (h *Hall) PriceOf(s HallSeat) uint32 {
    if s.PriceCents > 0 {
        return s.PriceCents
    }
    if h.SeatPriceCents > 0 {
        return h.SeatPriceCents
    }
    return DefaultSeatPriceCents
}

// Lookup indexes the hall's seats by identity.
func (h *Hall) Lookup() map[Seat]HallSeat {
    m := make(map[Seat]HallSeat, len(h.Seats))
    for _, s := range h.Seats {
        m[s.Seat] = s
    }
    return m
}
