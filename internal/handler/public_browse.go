// Package handler exposes HTTP handlers for both authenticated and public endpoints.
// This file defines handlers for the public browsing API. These routes allow
// unauthenticated users to browse halls and movies. Timestamps and other
// internal fields are filtered from responses.

package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/logger"
    "github.com/iliyamo/cinema-reservation/internal/model"
)

// HallCatalog lists and loads halls.
type HallCatalog interface {
    List(ctx context.Context) ([]*model.Hall, error)
    GetByID(ctx context.Context, id uint64) (*model.Hall, error)
}

// MovieCatalog lists and loads movies.
type MovieCatalog interface {
    List(ctx context.Context, inTheatersOnly bool) ([]*model.Movie, error)
    GetByID(ctx context.Context, id uint64) (*model.Movie, error)
}

// PublicHandler serves the unauthenticated browse endpoints.
type PublicHandler struct {
    Halls  HallCatalog
    Movies MovieCatalog
    Log    *logger.Logger
}

func NewPublicHandler(halls HallCatalog, movies MovieCatalog, log *logger.Logger) *PublicHandler {
    return &PublicHandler{Halls: halls, Movies: movies, Log: log}
}

// PublicHall represents a hall exposed via the public API.
type PublicHall struct {
    ID             uint64 `json:"id"`
    Name           string `json:"name"`
    TotalSeats     uint32 `json:"total_seats"`
    SeatPriceCents uint32 `json:"seat_price_cents"`
}

// PublicHallSeat is one seat of a hall layout.
type PublicHallSeat struct {
    Row        string `json:"row"`
    Number     uint32 `json:"number"`
    PriceCents uint32 `json:"price_cents"`
}

// PublicHallDetail is a hall with its layout.
type PublicHallDetail struct {
    PublicHall
    Seats []PublicHallSeat `json:"seats"`
}

// PublicMovie represents a movie in list and detail responses.
type PublicMovie struct {
    ID          uint64      `json:"id"`
    Title       string      `json:"title"`
    DurationMin uint32      `json:"duration_min"`
    Genres      []string    `json:"genres"`
    HallID      *uint64     `json:"hall_id,omitempty"`
    InTheaters  bool        `json:"in_theaters"`
    Showtimes   []time.Time `json:"showtimes,omitempty"`
}

func toPublicHall(h *model.Hall) PublicHall {
    return PublicHall{ID: h.ID, Name: h.Name, TotalSeats: h.TotalSeats, SeatPriceCents: h.SeatPriceCents}
}

func toPublicMovie(m *model.Movie) PublicMovie {
    genres := m.Genres
    if genres == nil {
        genres = []string{}
    }
    return PublicMovie{
        ID:          m.ID,
        Title:       m.Title,
        DurationMin: m.DurationMin,
        Genres:      genres,
        HallID:      m.HallID,
        InTheaters:  m.InTheaters,
        Showtimes:   m.Showtimes,
    }
}

// ListHalls handles GET /v1/halls.  Response JSON contains an "items"
// array of PublicHall.
func (h *PublicHandler) ListHalls(c echo.Context) error {
    halls, err := h.Halls.List(c.Request().Context())
    if err != nil {
        return respondError(c, h.Log, err)
    }
    out := make([]PublicHall, 0, len(halls))
    for _, hall := range halls {
        out = append(out, toPublicHall(hall))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetHall handles GET /v1/halls/:id and includes the seat layout with
// effective prices.
func (h *PublicHandler) GetHall(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    hall, err := h.Halls.GetByID(c.Request().Context(), id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    resp := PublicHallDetail{PublicHall: toPublicHall(hall), Seats: make([]PublicHallSeat, 0, len(hall.Seats))}
    for _, s := range hall.Seats {
        resp.Seats = append(resp.Seats, PublicHallSeat{Row: s.Row, Number: s.Number, PriceCents: hall.PriceOf(s)})
    }
    return c.JSON(http.StatusOK, resp)
}

// ListMovies handles GET /v1/movies.  ?in_theaters=true limits the list
// to movies currently showing.
func (h *PublicHandler) ListMovies(c echo.Context) error {
    only := strings.EqualFold(c.QueryParam("in_theaters"), "true")
    movies, err := h.Movies.List(c.Request().Context(), only)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    out := make([]PublicMovie, 0, len(movies))
    for _, m := range movies {
        out = append(out, toPublicMovie(m))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetMovie handles GET /v1/movies/:id.
func (h *PublicHandler) GetMovie(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    m, err := h.Movies.GetByID(c.Request().Context(), id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toPublicMovie(m))
}
