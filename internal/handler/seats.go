package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/logger"
    "github.com/iliyamo/cinema-reservation/internal/model"
    "github.com/iliyamo/cinema-reservation/internal/service"
)

// Availability answers seat-status queries for a screening.
type Availability interface {
    ComputeSeatStatus(ctx context.Context, hallID uint64, showtime, date string) (*service.SeatMap, error)
    ComputeSeatStatusForMovie(ctx context.Context, movieID uint64, showtime, date string) (*service.SeatMap, error)
    CheckSeats(ctx context.Context, hallID uint64, showtime, date string, seats []model.Seat) ([]service.SeatCheck, error)
}

// SeatHandler serves seat availability.  Results are computed from
// active reservations on every call and never cached.
type SeatHandler struct {
    Avail Availability
    Log   *logger.Logger
}

func NewSeatHandler(avail Availability, log *logger.Logger) *SeatHandler {
    return &SeatHandler{Avail: avail, Log: log}
}

// HallSeats handles GET /v1/halls/:id/seats?showtime=HH:MM&date=YYYY-MM-DD.
func (h *SeatHandler) HallSeats(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    m, err := h.Avail.ComputeSeatStatus(c.Request().Context(), id, c.QueryParam("showtime"), c.QueryParam("date"))
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, m)
}

// MovieSeats handles GET /v1/movies/:id/seats and resolves the movie's
// hall.
func (h *SeatHandler) MovieSeats(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    m, err := h.Avail.ComputeSeatStatusForMovie(c.Request().Context(), id, c.QueryParam("showtime"), c.QueryParam("date"))
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, m)
}

type checkSeatsReq struct {
    Showtime string    `json:"showtime" validate:"required"`
    Date     string    `json:"date" validate:"required"`
    Seats    []seatReq `json:"seats" validate:"required,min=1,dive"`
}

// CheckSeats handles POST /v1/halls/:id/seats/check.
func (h *SeatHandler) CheckSeats(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req checkSeatsReq
    if err := bindValid(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    checks, err := h.Avail.CheckSeats(c.Request().Context(), id, req.Showtime, req.Date, toSeats(req.Seats))
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"hall_id": id, "seats": checks})
}
