package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-reservation/internal/model"
)

// HallReader loads a hall with its seat layout.
type HallReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Hall, error)
}

// MovieReader loads a movie.
type MovieReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
}

// HeldSeatReader returns seats held by active reservations of a
// screening whose start falls inside [from, to].
type HeldSeatReader interface {
	HeldSeats(ctx context.Context, hallID uint64, showtime string, from, to time.Time) ([]model.Seat, error)
}

// Seat check outcomes.
const (
	SeatAvailable = "available"
	SeatReserved  = "reserved"
	SeatNotFound  = "not_found"
)

// SeatStatus is one seat of a hall for a screening.
type SeatStatus struct {
	Row        string `json:"row"`
	Number     uint32 `json:"number"`
	Key        string `json:"key"`
	Reserved   bool   `json:"reserved"`
	PriceCents uint32 `json:"price_cents"`
}

// SeatMap is the availability of every seat of a hall for a screening.
type SeatMap struct {
	HallID    uint64       `json:"hall_id"`
	HallName  string       `json:"hall_name"`
	Showtime  string       `json:"showtime"`
	Date      string       `json:"date"`
	Seats     []SeatStatus `json:"seats"`
	Total     int          `json:"total"`
	Available int          `json:"available"`
	Reserved  int          `json:"reserved"`
}

// SeatCheck is the outcome for one requested seat.
type SeatCheck struct {
	Row        string `json:"row"`
	Number     uint32 `json:"number"`
	Status     string `json:"status"`
	PriceCents uint32 `json:"price_cents,omitempty"`
}

// AvailabilityService resolves which seats of a screening are held.
// It only reads; held state is never cached.
type AvailabilityService struct {
	halls  HallReader
	movies MovieReader
	held   HeldSeatReader
	loc    *time.Location
}

func NewAvailabilityService(halls HallReader, movies MovieReader, held HeldSeatReader, loc *time.Location) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{halls: halls, movies: movies, held: held, loc: loc}
}

// ComputeSeatStatus reports every seat of the hall with its held flag
// for the screening given by showtime and date.
func (s *AvailabilityService) ComputeSeatStatus(ctx context.Context, hallID uint64, showtime, date string) (*SeatMap, error) {
	hall, st, day, err := s.resolve(ctx, hallID, showtime, date)
	if err != nil {
		return nil, err
	}
	held, err := s.heldSet(ctx, hall.ID, st, day)
	if err != nil {
		return nil, err
	}

	out := &SeatMap{
		HallID:   hall.ID,
		HallName: hall.Name,
		Showtime: st,
		Date:     day.Format("2006-01-02"),
		Seats:    make([]SeatStatus, 0, len(hall.Seats)),
	}
	for _, hs := range hall.Seats {
		taken := held[hs.Seat]
		out.Seats = append(out.Seats, SeatStatus{
			Row:        hs.Row,
			Number:     hs.Number,
			Key:        hs.Key(),
			Reserved:   taken,
			PriceCents: hall.PriceOf(hs),
		})
		if taken {
			out.Reserved++
		} else {
			out.Available++
		}
	}
	out.Total = len(out.Seats)
	return out, nil
}

// ComputeSeatStatusForMovie resolves the movie's hall first.
func (s *AvailabilityService) ComputeSeatStatusForMovie(ctx context.Context, movieID uint64, showtime, date string) (*SeatMap, error) {
	movie, err := s.movies.GetByID(ctx, movieID)
	if err != nil {
		return nil, err
	}
	if movie.HallID == nil {
		return nil, ErrMovieHasNoHall
	}
	return s.ComputeSeatStatus(ctx, *movie.HallID, showtime, date)
}

// CheckSeats classifies each requested seat as available, reserved or
// not_found for the screening.
func (s *AvailabilityService) CheckSeats(ctx context.Context, hallID uint64, showtime, date string, seats []model.Seat) ([]SeatCheck, error) {
	if len(seats) == 0 {
		return nil, invalid("seats", "at least one seat is required")
	}
	hall, st, day, err := s.resolve(ctx, hallID, showtime, date)
	if err != nil {
		return nil, err
	}
	held, err := s.heldSet(ctx, hall.ID, st, day)
	if err != nil {
		return nil, err
	}

	lookup := hall.Lookup()
	out := make([]SeatCheck, 0, len(seats))
	for _, raw := range seats {
		seat := model.NormalizeSeat(raw.Row, raw.Number)
		c := SeatCheck{Row: seat.Row, Number: seat.Number}
		hs, ok := lookup[seat]
		switch {
		case !ok:
			c.Status = SeatNotFound
		case held[seat]:
			c.Status = SeatReserved
			c.PriceCents = hall.PriceOf(hs)
		default:
			c.Status = SeatAvailable
			c.PriceCents = hall.PriceOf(hs)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *AvailabilityService) resolve(ctx context.Context, hallID uint64, showtime, date string) (*model.Hall, string, time.Time, error) {
	st, err := NormalizeShowtime(showtime)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	day, err := ParseDate(date, s.loc)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	hall, err := s.halls.GetByID(ctx, hallID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return hall, st, day, nil
}

func (s *AvailabilityService) heldSet(ctx context.Context, hallID uint64, showtime string, day time.Time) (map[model.Seat]bool, error) {
	from, to := DayWindow(day)
	seats, err := s.held.HeldSeats(ctx, hallID, showtime, from, to)
	if err != nil {
		return nil, err
	}
	set := make(map[model.Seat]bool, len(seats))
	for _, seat := range seats {
		set[model.NormalizeSeat(seat.Row, seat.Number)] = true
	}
	return set, nil
}
