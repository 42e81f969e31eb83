package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/handler"
    "github.com/iliyamo/cinema-reservation/internal/middleware"
    "github.com/iliyamo/cinema-reservation/internal/model"
)

// RegisterAdmin registers admin-only reservation management under
// /v1/admin.
func RegisterAdmin(e *echo.Echo, h *handler.AdminReservationHandler, jwtSecret string, limit echo.MiddlewareFunc) {
    g := e.Group(
        "/v1/admin",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleAdmin),
        limit,
    )
    g.GET("/reservations", h.ListReservations)
    g.DELETE("/reservations/:id", h.DeleteReservation)
}
