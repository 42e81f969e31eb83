package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/handler"
    "github.com/iliyamo/cinema-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication and
// are not versioned.  Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
    e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the authentication routes.  Register and login
// live under /v1/auth; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
    g := e.Group("/v1/auth", limit)
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)

    e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret), limit)
}

// RegisterPublic registers unauthenticated browse and availability
// endpoints.  Hall and movie listings go through the response cache;
// seat availability never does.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, s *handler.SeatHandler, cache, limit echo.MiddlewareFunc) {
    g := e.Group("/v1", limit)

    g.GET("/halls", p.ListHalls, cache)
    g.GET("/halls/:id", p.GetHall, cache)
    g.GET("/movies", p.ListMovies, cache)
    g.GET("/movies/:id", p.GetMovie, cache)

    g.GET("/halls/:id/seats", s.HallSeats)
    g.GET("/movies/:id/seats", s.MovieSeats)
    g.POST("/halls/:id/seats/check", s.CheckSeats)
}

// RegisterWebhooks registers the payment processor callbacks.  They are
// authenticated by signature, not JWT.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler) {
    e.POST("/v1/webhooks/stripe", w.Stripe)
}
