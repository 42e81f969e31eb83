package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/logger"
    "github.com/iliyamo/cinema-reservation/internal/repository"
    "github.com/iliyamo/cinema-reservation/internal/service"
)

// statusOf maps a service or repository error to an HTTP status and a
// stable error code.
func statusOf(err error) (int, errorBody) {
    var (
        vErr     *service.ValidationError
        conflict *service.SeatConflictError
        window   *service.CancellationWindowError
        trans    *service.InvalidTransitionError
        pay      *service.PaymentError
    )
    switch {
    case errors.As(err, &vErr):
        return http.StatusBadRequest, errorBody{Error: vErr.Error(), Code: "validation_failed", Field: vErr.Field}
    case errors.As(err, &conflict):
        seats := make([]string, len(conflict.Seats))
        for i, s := range conflict.Seats {
            seats[i] = s.Key()
        }
        return http.StatusConflict, errorBody{Error: err.Error(), Code: "seat_conflict", Seats: seats}
    case errors.Is(err, service.ErrAlreadyConfirmed):
        return http.StatusConflict, errorBody{Error: err.Error(), Code: "already_confirmed"}
    case errors.Is(err, service.ErrHoldExpired):
        return http.StatusConflict, errorBody{Error: err.Error(), Code: "hold_expired"}
    case errors.Is(err, repository.ErrHallNotFound):
        return http.StatusNotFound, errorBody{Error: "hall not found", Code: "not_found"}
    case errors.Is(err, repository.ErrMovieNotFound):
        return http.StatusNotFound, errorBody{Error: "movie not found", Code: "not_found"}
    case errors.Is(err, repository.ErrReservationNotFound):
        return http.StatusNotFound, errorBody{Error: "reservation not found", Code: "not_found"}
    case errors.Is(err, service.ErrForbidden):
        return http.StatusForbidden, errorBody{Error: err.Error(), Code: "forbidden"}
    case errors.Is(err, service.ErrShowtimePassed):
        return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "showtime_passed"}
    case errors.As(err, &window):
        return http.StatusUnprocessableEntity, errorBody{
            Error:    err.Error(),
            Code:     "cancellation_window_closed",
            Deadline: window.Deadline.UTC().Format(time.RFC3339),
        }
    case errors.As(err, &trans):
        return http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition"}
    case errors.Is(err, service.ErrMovieHasNoHall):
        return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "movie_has_no_hall"}
    case errors.Is(err, service.ErrPaymentNotSucceeded):
        return http.StatusPaymentRequired, errorBody{Error: err.Error(), Code: "payment_not_succeeded"}
    case errors.As(err, &pay):
        return http.StatusBadGateway, errorBody{Error: "payment processor error", Code: "payment_failed"}
    case errors.Is(err, service.ErrLockTimeout):
        return http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "busy"}
    }
    return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
}

// respondError writes err as JSON.  Server-side failures are logged
// with the request id.
func respondError(c echo.Context, log *logger.Logger, err error) error {
    status, body := statusOf(err)
    if status >= http.StatusInternalServerError {
        rid := c.Response().Header().Get(echo.HeaderXRequestID)
        log.WithRequestID(rid).ErrorContext(c.Request().Context(), "request failed",
            "path", c.Path(), "status", status, "error", err)
    }
    return c.JSON(status, body)
}
