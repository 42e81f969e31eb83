package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/handler"
    "github.com/iliyamo/cinema-reservation/internal/middleware"
    "github.com/iliyamo/cinema-reservation/internal/model"
)

// RegisterCustomer registers reservation endpoints under /v1.  All routes
// require a valid JWT; users and admins are both accepted and ownership
// is checked by the service.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string, limit echo.MiddlewareFunc) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleUser, model.RoleAdmin),
        limit,
    )
    g.POST("/reservations", h.Create)
    g.POST("/reservations/confirm", h.Confirm)
    g.GET("/my-reservations", h.ListReservations)
    g.GET("/reservations/:id", h.GetReservation)
    g.PATCH("/reservations/:id/cancel", h.CancelReservation)
}
