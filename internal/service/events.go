package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-reservation/internal/logger"
	"github.com/iliyamo/cinema-reservation/internal/model"
	"github.com/iliyamo/cinema-reservation/internal/queue"
)

// EventPublisher delivers reservation lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

func newEvent(kind string, res *model.Reservation, at time.Time) queue.ReservationEvent {
	seats := make([]string, len(res.Seats))
	for i, s := range res.Seats {
		seats[i] = s.Key()
	}
	ev := queue.ReservationEvent{
		Type:          kind,
		ReservationID: res.ID,
		UserID:        res.UserID,
		MovieID:       res.MovieID,
		HallID:        res.HallID,
		Showtime:      res.Showtime,
		ShowtimeDate:  res.ShowtimeDate,
		Seats:         seats,
		Status:        string(res.Status),
		AmountCents:   res.AmountCents,
		Currency:      res.Currency,
		OccurredAt:    at,
	}
	if res.RefundAmountCents != nil {
		ev.RefundAmountCents = *res.RefundAmountCents
	}
	return ev
}

// publish sends ev in the background.  Delivery is best effort and
// never affects the reservation that triggered it.
func publish(ctx context.Context, pub EventPublisher, log *logger.Logger, ev queue.ReservationEvent) {
	if pub == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := pub.Publish(ctx, ev); err != nil {
			log.WarnContext(ctx, "publish reservation event failed",
				"type", ev.Type, "reservation_id", ev.ReservationID, "error", err)
		}
	}()
}
