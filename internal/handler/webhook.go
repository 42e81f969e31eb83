package handler

import (
    "errors"
    "io"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/logger"
    "github.com/iliyamo/cinema-reservation/internal/model"
    "github.com/iliyamo/cinema-reservation/internal/payment"
    "github.com/iliyamo/cinema-reservation/internal/service"
)

const maxWebhookBytes = 64 << 10

// WebhookHandler receives Stripe events.  payment_intent.succeeded
// confirms the reservation named in the intent metadata through the
// same path as POST /v1/reservations/confirm.
type WebhookHandler struct {
    Svc    Reservations
    Secret string
    Log    *logger.Logger
}

func NewWebhookHandler(svc Reservations, secret string, log *logger.Logger) *WebhookHandler {
    return &WebhookHandler{Svc: svc, Secret: secret, Log: log.WithComponent("stripe-webhook")}
}

// Stripe handles POST /v1/webhooks/stripe.
func (h *WebhookHandler) Stripe(c echo.Context) error {
    if h.Secret == "" {
        return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "webhooks are not configured", Code: "disabled"})
    }
    payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
    if err != nil {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "unreadable body", Code: "validation_failed"})
    }
    ev, err := payment.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"), h.Secret)
    if err != nil {
        h.Log.WarnContext(c.Request().Context(), "rejected webhook", "error", err)
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid signature", Code: "invalid_signature"})
    }
    if ev.Type != "payment_intent.succeeded" || ev.Intent == nil {
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    }

    userID, err := strconv.ParseUint(ev.Intent.Metadata["user_id"], 10, 64)
    if err != nil || userID == 0 {
        h.Log.WarnContext(c.Request().Context(), "payment intent without user", "payment_intent", ev.Intent.ID)
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    }
    _, err = h.Svc.Confirm(c.Request().Context(), service.Actor{UserID: userID, Role: model.RoleUser}, ev.Intent.ID)
    switch {
    case err == nil, errors.Is(err, service.ErrAlreadyConfirmed):
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    case errors.Is(err, service.ErrHoldExpired):
        // the seats are gone; the payment needs a manual refund
        h.Log.ErrorContext(c.Request().Context(), "payment succeeded after hold expired",
            "payment_intent", ev.Intent.ID, "user_id", userID)
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    }
    status, body := statusOf(err)
    if status < http.StatusInternalServerError {
        return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": body.Code})
    }
    // a 5xx makes Stripe retry the delivery
    return respondError(c, h.Log, err)
}
