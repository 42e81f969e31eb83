package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/iliyamo/cinema-reservation/internal/model"
	"github.com/iliyamo/cinema-reservation/internal/payment"
	"github.com/iliyamo/cinema-reservation/internal/repository"
)

// PaymentStore is the part of the reservation store the payment flow
// writes to.
type PaymentStore interface {
	SetPaymentRef(ctx context.Context, id uint64, ref string) error
	MarkReserved(ctx context.Context, ref string, userID uint64) (bool, error)
	FindByPaymentRef(ctx context.Context, ref string, userID uint64) (*model.Reservation, error)
}

// PaymentHandle is what the client needs to complete a payment.
type PaymentHandle struct {
	Ref          string
	ClientSecret string
}

// PaymentCoordinator isolates the processor behind open, confirm and
// refund.  Processor keys are derived from the reservation id so that
// retried calls never open or refund twice.
type PaymentCoordinator struct {
	processor payment.Processor
	store     PaymentStore
}

func NewPaymentCoordinator(processor payment.Processor, store PaymentStore) *PaymentCoordinator {
	return &PaymentCoordinator{processor: processor, store: store}
}

func reservationMetadata(res *model.Reservation) map[string]string {
	return map[string]string{
		"reservation_id": strconv.FormatUint(res.ID, 10),
		"user_id":        strconv.FormatUint(res.UserID, 10),
		"movie_id":       strconv.FormatUint(res.MovieID, 10),
		"hall_id":        strconv.FormatUint(res.HallID, 10),
		"showtime":       res.Showtime,
		"showtime_date":  res.ShowtimeDate.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// OpenPayment creates a payment intent for the pending reservation and
// stores its reference.
func (p *PaymentCoordinator) OpenPayment(ctx context.Context, res *model.Reservation) (*PaymentHandle, error) {
	intent, err := p.processor.CreateIntent(ctx, payment.IntentRequest{
		AmountCents:    res.AmountCents,
		Currency:       res.Currency,
		IdempotencyKey: "reservation-" + strconv.FormatUint(res.ID, 10),
		Metadata:       reservationMetadata(res),
	})
	if err != nil {
		return nil, &PaymentError{Op: "create intent", Err: err}
	}
	if err := p.store.SetPaymentRef(ctx, res.ID, intent.ID); err != nil {
		return nil, err
	}
	ref := intent.ID
	res.PaymentRef = &ref
	return &PaymentHandle{Ref: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// ConfirmPayment requires the intent to have succeeded and flips the
// caller's pending reservation carrying ref to reserved.  A reservation
// that is no longer pending yields ErrAlreadyConfirmed or
// ErrHoldExpired; both are not-found conditions and leave state alone.
func (p *PaymentCoordinator) ConfirmPayment(ctx context.Context, ref string, userID uint64) (*model.Reservation, error) {
	intent, err := p.processor.RetrieveIntent(ctx, ref)
	if err != nil {
		return nil, &PaymentError{Op: "retrieve intent", Err: err}
	}
	if intent.Status != payment.StatusSucceeded {
		return nil, ErrPaymentNotSucceeded
	}

	changed, err := p.store.MarkReserved(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	res, err := p.store.FindByPaymentRef(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	if changed {
		return res, nil
	}
	switch res.Status {
	case model.StatusReserved, model.StatusExpired:
		return nil, ErrAlreadyConfirmed
	case model.StatusCancelled:
		if res.RefundRef != nil {
			return nil, ErrAlreadyConfirmed
		}
		return nil, ErrHoldExpired
	default:
		return nil, repository.ErrReservationNotFound
	}
}

// Refund issues a refund of amount against the reservation's payment.
func (p *PaymentCoordinator) Refund(ctx context.Context, res *model.Reservation, amount int64, reason string) (*payment.Refund, error) {
	if res.PaymentRef == nil || *res.PaymentRef == "" {
		return nil, &PaymentError{Op: "refund", Err: errors.New("reservation has no payment reference")}
	}
	md := reservationMetadata(res)
	md["reason"] = reason
	refund, err := p.processor.CreateRefund(ctx, payment.RefundRequest{
		PaymentRef:     *res.PaymentRef,
		AmountCents:    amount,
		IdempotencyKey: "refund-" + strconv.FormatUint(res.ID, 10),
		Metadata:       md,
	})
	if err != nil {
		return nil, &PaymentError{Op: "refund", Err: err}
	}
	return refund, nil
}
