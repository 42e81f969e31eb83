package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/logger"
    "github.com/iliyamo/cinema-reservation/internal/model"
    "github.com/iliyamo/cinema-reservation/internal/service"
)

// Reservations is the reservation lifecycle as the HTTP layer sees it.
type Reservations interface {
    Create(ctx context.Context, in service.CreateInput) (*service.CreateResult, error)
    Confirm(ctx context.Context, actor service.Actor, paymentRef string) (*model.Reservation, error)
    Cancel(ctx context.Context, actor service.Actor, id uint64) (*service.RefundSummary, error)
    ListMine(ctx context.Context, userID uint64) ([]*model.Reservation, error)
    List(ctx context.Context, f service.ListFilter) ([]*model.Reservation, error)
    Get(ctx context.Context, actor service.Actor, id uint64) (*model.Reservation, error)
    Delete(ctx context.Context, id uint64) error
}

// CustomerHandler serves the reservation endpoints of authenticated
// users.  JWT authentication has already run; every method answers 401
// when the caller cannot be read from the context.
type CustomerHandler struct {
    Svc Reservations
    Log *logger.Logger
}

func NewCustomerHandler(svc Reservations, log *logger.Logger) *CustomerHandler {
    return &CustomerHandler{Svc: svc, Log: log}
}

// ----- DTOs -----

type createReservationReq struct {
    MovieID  uint64    `json:"movie_id" validate:"required"`
    HallID   uint64    `json:"hall_id" validate:"required"`
    Showtime string    `json:"showtime" validate:"required"`
    Date     string    `json:"date" validate:"required"`
    Seats    []seatReq `json:"seats" validate:"required,min=1,dive"`
}

type confirmReq struct {
    PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// reservationResp is a reservation as returned by the API.
type reservationResp struct {
    ID                uint64       `json:"id"`
    UserID            uint64       `json:"user_id"`
    MovieID           uint64       `json:"movie_id"`
    HallID            uint64       `json:"hall_id"`
    Showtime          string       `json:"showtime"`
    ShowtimeDate      time.Time    `json:"showtime_date"`
    Seats             []model.Seat `json:"seats"`
    Status            string       `json:"status"`
    AmountCents       int64        `json:"amount_cents"`
    Currency          string       `json:"currency"`
    PaymentIntentID   *string      `json:"payment_intent_id,omitempty"`
    RefundID          *string      `json:"refund_id,omitempty"`
    RefundAmountCents *int64       `json:"refund_amount_cents,omitempty"`
    RefundedAt        *time.Time   `json:"refunded_at,omitempty"`
    HoldExpiresAt     *time.Time   `json:"hold_expires_at,omitempty"`
    CreatedAt         time.Time    `json:"created_at"`
}

func toReservationResp(r *model.Reservation) reservationResp {
    return reservationResp{
        ID:                r.ID,
        UserID:            r.UserID,
        MovieID:           r.MovieID,
        HallID:            r.HallID,
        Showtime:          r.Showtime,
        ShowtimeDate:      r.ShowtimeDate,
        Seats:             r.Seats,
        Status:            string(r.Status),
        AmountCents:       r.AmountCents,
        Currency:          r.Currency,
        PaymentIntentID:   r.PaymentRef,
        RefundID:          r.RefundRef,
        RefundAmountCents: r.RefundAmountCents,
        RefundedAt:        r.RefundedAt,
        HoldExpiresAt:     r.HoldExpiresAt,
        CreatedAt:         r.CreatedAt,
    }
}

func toReservationList(in []*model.Reservation) []reservationResp {
    out := make([]reservationResp, 0, len(in))
    for _, r := range in {
        out = append(out, toReservationResp(r))
    }
    return out
}

type createReservationResp struct {
    Reservation     reservationResp `json:"reservation"`
    ClientSecret    string          `json:"client_secret"`
    PaymentIntentID string          `json:"payment_intent_id"`
    AmountCents     int64           `json:"amount_cents"`
    Currency        string          `json:"currency"`
    HoldExpiresAt   time.Time       `json:"hold_expires_at"`
}

type refundResp struct {
    ReservationID     uint64    `json:"reservation_id"`
    Status            string    `json:"status"`
    OriginalAmount    int64     `json:"original_amount_cents"`
    RefundAmount      int64     `json:"refund_amount_cents"`
    Fee               int64     `json:"fee_cents"`
    RefundID          string    `json:"refund_id"`
    RefundStatus      string    `json:"refund_status"`
    Currency          string    `json:"currency"`
    CancelledAt       time.Time `json:"cancelled_at"`
    CancellationUntil time.Time `json:"cancellation_deadline"`
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Code: "unauthorized"})
}

// Create handles POST /v1/reservations.  It holds the requested seats in
// a pending reservation and returns the payment intent the client must
// complete before the hold expires.
func (h *CustomerHandler) Create(c echo.Context) error {
    a, ok := actor(c)
    if !ok {
        return unauthorized(c)
    }
    var req createReservationReq
    if err := bindValid(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    res, err := h.Svc.Create(c.Request().Context(), service.CreateInput{
        UserID:   a.UserID,
        MovieID:  req.MovieID,
        HallID:   req.HallID,
        Showtime: req.Showtime,
        Date:     req.Date,
        Seats:    toSeats(req.Seats),
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, createReservationResp{
        Reservation:     toReservationResp(res.Reservation),
        ClientSecret:    res.ClientSecret,
        PaymentIntentID: res.PaymentRef,
        AmountCents:     res.AmountCents,
        Currency:        res.Currency,
        HoldExpiresAt:   res.HoldExpiresAt,
    })
}

// Confirm handles POST /v1/reservations/confirm.  The payment intent
// must have succeeded; a second confirmation answers 409.
func (h *CustomerHandler) Confirm(c echo.Context) error {
    a, ok := actor(c)
    if !ok {
        return unauthorized(c)
    }
    var req confirmReq
    if err := bindValid(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    res, err := h.Svc.Confirm(c.Request().Context(), a, req.PaymentIntentID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

// ListReservations handles GET /v1/my-reservations, newest first.
// Reserved reservations whose showtime has passed come back expired.
func (h *CustomerHandler) ListReservations(c echo.Context) error {
    a, ok := actor(c)
    if !ok {
        return unauthorized(c)
    }
    list, err := h.Svc.ListMine(c.Request().Context(), a.UserID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": toReservationList(list)})
}

// GetReservation handles GET /v1/reservations/:id for the owner or an
// admin.
func (h *CustomerHandler) GetReservation(c echo.Context) error {
    a, ok := actor(c)
    if !ok {
        return unauthorized(c)
    }
    id, err := pathID(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    res, err := h.Svc.Get(c.Request().Context(), a, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

// CancelReservation handles PATCH /v1/reservations/:id/cancel.  It
// refunds the payment, less the late fee, and answers with the refund
// breakdown.
func (h *CustomerHandler) CancelReservation(c echo.Context) error {
    a, ok := actor(c)
    if !ok {
        return unauthorized(c)
    }
    id, err := pathID(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    sum, err := h.Svc.Cancel(c.Request().Context(), a, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, refundResp{
        ReservationID:     sum.ReservationID,
        Status:            string(model.StatusCancelled),
        OriginalAmount:    sum.OriginalAmount,
        RefundAmount:      sum.RefundAmount,
        Fee:               sum.Fee,
        RefundID:          sum.RefundRef,
        RefundStatus:      sum.RefundStatus,
        Currency:          sum.Currency,
        CancelledAt:       sum.CancelledAt,
        CancellationUntil: sum.CancellationUntil,
    })
}
