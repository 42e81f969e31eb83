package handler

// Admin handlers for reservations.  The admin role is enforced by
// middleware; these handlers only parse input and shape output.

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/logger"
    "github.com/iliyamo/cinema-reservation/internal/service"
)

// AdminReservationHandler lists and hard-deletes reservations.
type AdminReservationHandler struct {
    Svc Reservations
    Log *logger.Logger
}

func NewAdminReservationHandler(svc Reservations, log *logger.Logger) *AdminReservationHandler {
    return &AdminReservationHandler{Svc: svc, Log: log}
}

// ListReservations handles GET /v1/admin/reservations.  The optional
// movie_id, hall_id and showtime query parameters narrow the result.
func (h *AdminReservationHandler) ListReservations(c echo.Context) error {
    movieID, err := queryID(c, "movie_id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    hallID, err := queryID(c, "hall_id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    list, err := h.Svc.List(c.Request().Context(), service.ListFilter{
        MovieID:  movieID,
        HallID:   hallID,
        Showtime: c.QueryParam("showtime"),
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": toReservationList(list)})
}

// DeleteReservation handles DELETE /v1/admin/reservations/:id.  The
// reservation and its seats are removed without a refund.
func (h *AdminReservationHandler) DeleteReservation(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
        return respondError(c, h.Log, err)
    }
    return c.NoContent(http.StatusNoContent)
}
