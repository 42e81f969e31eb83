package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/cinema-reservation/internal/logger"
	"github.com/iliyamo/cinema-reservation/internal/model"
	"github.com/iliyamo/cinema-reservation/internal/queue"
	"github.com/iliyamo/cinema-reservation/internal/repository"
)

// ReservationStore is everything the state machine needs from storage.
// Calls made with the context handed to WithTx's fn join that
// transaction.
type ReservationStore interface {
	HeldSeatReader
	PaymentStore
	HoldStore
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	MarkCancelled(ctx context.Context, id uint64, refund repository.RefundRecord) error
	ExpirePastForUser(ctx context.Context, userID uint64, now time.Time) ([]uint64, error)
	ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error)
	List(ctx context.Context, f repository.ListFilter) ([]*model.Reservation, error)
	Delete(ctx context.Context, id uint64) error
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uint64
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

func (a Actor) canAccess(res *model.Reservation) bool {
	return a.IsAdmin() || a.UserID == res.UserID
}

// CreateInput is a reservation request.  Date is "YYYY-MM-DD" (or
// RFC 3339) and Showtime "HH:MM", both in the cinema time zone.
type CreateInput struct {
	UserID   uint64
	MovieID  uint64
	HallID   uint64
	Showtime string
	Date     string
	Seats    []model.Seat
}

// CreateResult carries the pending reservation and the payment handle.
type CreateResult struct {
	Reservation   *model.Reservation
	ClientSecret  string
	PaymentRef    string
	AmountCents   int64
	Currency      string
	HoldExpiresAt time.Time
}

// RefundSummary is the outcome of a cancellation.
type RefundSummary struct {
	ReservationID     uint64
	OriginalAmount    int64
	RefundAmount      int64
	Fee               int64
	RefundRef         string
	RefundStatus      string
	Currency          string
	CancelledAt       time.Time
	CancellationUntil time.Time
}

// ReservationService drives reservations through pending, reserved,
// cancelled and expired.
type ReservationService struct {
	store    ReservationStore
	halls    HallReader
	movies   MovieReader
	payments *PaymentCoordinator
	holds    HoldScheduler
	locker   Locker
	clock    Clock
	pub      EventPublisher
	log      *logger.Logger
	loc      *time.Location
	holdTTL  time.Duration
	currency string
}

// Option configures a ReservationService.
type Option func(*ReservationService)

const defaultHoldTTL = 15 * time.Minute

// WithHoldTTL overrides how long a pending reservation holds its seats.
func WithHoldTTL(d time.Duration) Option {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithLocation sets the cinema time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *ReservationService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithCurrency sets the currency of new reservations.
func WithCurrency(c string) Option {
	return func(s *ReservationService) {
		if c != "" {
			s.currency = strings.ToLower(c)
		}
	}
}

// WithPublisher publishes lifecycle events.
func WithPublisher(pub EventPublisher) Option {
	return func(s *ReservationService) { s.pub = pub }
}

// WithLocker replaces the in-process screening lock.
func WithLocker(l Locker) Option {
	return func(s *ReservationService) {
		if l != nil {
			s.locker = l
		}
	}
}

func NewReservationService(
	store ReservationStore,
	halls HallReader,
	movies MovieReader,
	payments *PaymentCoordinator,
	holds HoldScheduler,
	clk Clock,
	log *logger.Logger,
	opts ...Option,
) *ReservationService {
	s := &ReservationService{
		store:    store,
		halls:    halls,
		movies:   movies,
		payments: payments,
		holds:    holds,
		locker:   NewLocalLocker(),
		clock:    clk,
		log:      log.WithComponent("reservations"),
		loc:      time.UTC,
		holdTTL:  defaultHoldTTL,
		currency: "usd",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeSeats(in []model.Seat) ([]model.Seat, error) {
	if len(in) == 0 {
		return nil, invalid("seats", "at least one seat is required")
	}
	seen := make(map[model.Seat]bool, len(in))
	out := make([]model.Seat, 0, len(in))
	for _, raw := range in {
		seat := model.NormalizeSeat(raw.Row, raw.Number)
		if seat.Row == "" || seat.Number == 0 {
			return nil, invalid("seats", "each seat needs a row and a positive number")
		}
		if seen[seat] {
			return nil, invalid("seats", "seat %s requested twice", seat.Key())
		}
		seen[seat] = true
		out = append(out, seat)
	}
	return out, nil
}

// Create validates the request, holds the seats in a pending
// reservation and opens its payment.  The held-seat check and the
// insert run under the screening lock inside one transaction; the
// unique index on active seats backs that up.
func (s *ReservationService) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	switch {
	case in.UserID == 0:
		return nil, invalid("user_id", "is required")
	case in.MovieID == 0:
		return nil, invalid("movie_id", "is required")
	case in.HallID == 0:
		return nil, invalid("hall_id", "is required")
	}
	seats, err := normalizeSeats(in.Seats)
	if err != nil {
		return nil, err
	}
	showtime, err := NormalizeShowtime(in.Showtime)
	if err != nil {
		return nil, err
	}
	day, err := ParseDate(in.Date, s.loc)
	if err != nil {
		return nil, err
	}
	startsAt := StartsAt(day, showtime)
	now := s.clock.Now()
	if !startsAt.After(now) {
		return nil, ErrShowtimePassed
	}

	movie, err := s.movies.GetByID(ctx, in.MovieID)
	if err != nil {
		return nil, err
	}
	hall, err := s.halls.GetByID(ctx, in.HallID)
	if err != nil {
		return nil, err
	}
	if movie.HallID != nil && *movie.HallID != hall.ID {
		return nil, invalid("hall_id", "movie %d is not shown in hall %d", movie.ID, hall.ID)
	}

	lookup := hall.Lookup()
	var (
		amount  int64
		missing []string
	)
	for _, seat := range seats {
		hs, ok := lookup[seat]
		if !ok {
			missing = append(missing, seat.Key())
			continue
		}
		amount += int64(hall.PriceOf(hs))
	}
	if len(missing) > 0 {
		return nil, invalid("seats", "not in hall %d: %s", hall.ID, strings.Join(missing, ", "))
	}

	// hold_expires_at is a whole-second DATETIME; the timer must match it
	holdUntil := now.Add(s.holdTTL).Truncate(time.Second)
	res := &model.Reservation{
		UserID:        in.UserID,
		MovieID:       movie.ID,
		HallID:        hall.ID,
		Showtime:      showtime,
		ShowtimeDate:  startsAt.UTC(),
		Seats:         seats,
		Status:        model.StatusPending,
		AmountCents:   amount,
		Currency:      s.currency,
		HoldExpiresAt: &holdUntil,
	}

	screening := model.Screening{HallID: hall.ID, Showtime: showtime, Date: day}
	if err := s.insertPending(ctx, screening, res); err != nil {
		return nil, err
	}
	log := s.log.WithReservation(res.ID).WithUserID(res.UserID)
	log.LogTransition(ctx, res.ID, "", string(model.StatusPending), "created")

	handle, err := s.payments.OpenPayment(ctx, res)
	if err != nil {
		// no payment means no reservation; free the seats right away
		if delErr := s.store.Delete(ctx, res.ID); delErr != nil {
			log.ErrorContext(ctx, "discard pending reservation failed", "error", delErr)
		}
		return nil, err
	}
	s.holds.ScheduleHold(res.ID, holdUntil)

	return &CreateResult{
		Reservation:   res,
		ClientSecret:  handle.ClientSecret,
		PaymentRef:    handle.Ref,
		AmountCents:   res.AmountCents,
		Currency:      res.Currency,
		HoldExpiresAt: holdUntil,
	}, nil
}

func (s *ReservationService) insertPending(ctx context.Context, screening model.Screening, res *model.Reservation) error {
	unlock, err := s.locker.Lock(ctx, ScreeningKey(screening))
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.WithTx(ctx, func(ctx context.Context) error {
		from, to := DayWindow(screening.Date)
		held, err := s.store.HeldSeats(ctx, screening.HallID, screening.Showtime, from, to)
		if err != nil {
			return err
		}
		taken := make(map[model.Seat]bool, len(held))
		for _, seat := range held {
			taken[model.NormalizeSeat(seat.Row, seat.Number)] = true
		}
		var conflicts []model.Seat
		for _, seat := range res.Seats {
			if taken[seat] {
				conflicts = append(conflicts, seat)
			}
		}
		if len(conflicts) > 0 {
			return &SeatConflictError{Seats: conflicts}
		}

		if err := s.store.Create(ctx, res); err != nil {
			if errors.Is(err, repository.ErrSeatTaken) {
				return &SeatConflictError{Seats: res.Seats}
			}
			return err
		}
		return nil
	})
}

// Confirm completes the caller's pending reservation once its payment
// has succeeded.  Confirming twice returns ErrAlreadyConfirmed and
// changes nothing.
func (s *ReservationService) Confirm(ctx context.Context, actor Actor, paymentRef string) (*model.Reservation, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return nil, invalid("payment_ref", "is required")
	}
	res, err := s.payments.ConfirmPayment(ctx, paymentRef, actor.UserID)
	if err != nil {
		return nil, err
	}
	s.holds.CancelHold(res.ID)
	s.log.LogTransition(ctx, res.ID, string(model.StatusPending), string(model.StatusReserved), "payment_confirmed")
	publish(ctx, s.pub, s.log, newEvent(queue.EventConfirmed, res, s.clock.Now()))
	return res, nil
}

// Cancel cancels a reserved reservation and refunds it.  Status,
// ownership and the deadline are checked on the row-locked record with
// the clock read at that moment; the refund is issued before anything
// is written, so a failed refund leaves the reservation reserved.
func (s *ReservationService) Cancel(ctx context.Context, actor Actor, id uint64) (*RefundSummary, error) {
	var (
		summary *RefundSummary
		res     *model.Reservation
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.canAccess(res) {
			return ErrForbidden
		}
		if res.Status != model.StatusReserved {
			return &InvalidTransitionError{From: res.Status, To: model.StatusCancelled}
		}
		now := s.clock.Now()
		deadline := CancellationDeadline(res.ShowtimeDate)
		if !now.Before(deadline) {
			return &CancellationWindowError{Deadline: deadline}
		}

		refundAmount := RefundAmount(res.AmountCents, res.ShowtimeDate, now)
		refund, err := s.payments.Refund(ctx, res, refundAmount, "requested_by_customer")
		if err != nil {
			return err
		}
		refundedAt := now.Truncate(time.Second)
		if err := s.store.MarkCancelled(ctx, res.ID, repository.RefundRecord{
			Ref:         refund.ID,
			AmountCents: refundAmount,
			RefundedAt:  refundedAt,
		}); err != nil {
			return err
		}

		res.Status = model.StatusCancelled
		res.RefundRef = &refund.ID
		res.RefundAmountCents = &refundAmount
		res.RefundedAt = &refundedAt
		summary = &RefundSummary{
			ReservationID:     res.ID,
			OriginalAmount:    res.AmountCents,
			RefundAmount:      refundAmount,
			Fee:               res.AmountCents - refundAmount,
			RefundRef:         refund.ID,
			RefundStatus:      refund.Status,
			Currency:          res.Currency,
			CancelledAt:       now,
			CancellationUntil: deadline,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.LogTransition(ctx, res.ID, string(model.StatusReserved), string(model.StatusCancelled), "cancelled_by_"+actorKind(actor, res))
	publish(ctx, s.pub, s.log, newEvent(queue.EventCancelled, res, summary.CancelledAt))
	return summary, nil
}

func actorKind(a Actor, res *model.Reservation) string {
	if a.UserID == res.UserID {
		return "owner"
	}
	return "admin"
}

// ListMine expires the user's reserved reservations whose showtime has
// passed and returns all of the user's reservations newest first.
func (s *ReservationService) ListMine(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	now := s.clock.Now()
	expired, err := s.store.ExpirePastForUser(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	for _, id := range expired {
		s.log.LogTransition(ctx, id, string(model.StatusReserved), string(model.StatusExpired), "showtime_passed")
		publish(ctx, s.pub, s.log, queue.ReservationEvent{
			Type:          queue.EventExpired,
			ReservationID: id,
			UserID:        userID,
			Status:        string(model.StatusExpired),
			OccurredAt:    now,
		})
	}
	return s.store.ListByUser(ctx, userID)
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	MovieID  uint64
	HallID   uint64
	Showtime string
}

// List returns reservations matching the filter for admins.
func (s *ReservationService) List(ctx context.Context, f ListFilter) ([]*model.Reservation, error) {
	rf := repository.ListFilter{MovieID: f.MovieID, HallID: f.HallID}
	if strings.TrimSpace(f.Showtime) != "" {
		st, err := NormalizeShowtime(f.Showtime)
		if err != nil {
			return nil, err
		}
		rf.Showtime = st
	}
	return s.store.List(ctx, rf)
}

// Get returns one reservation to its owner or an admin.
func (s *ReservationService) Get(ctx context.Context, actor Actor, id uint64) (*model.Reservation, error) {
	res, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(res) {
		return nil, ErrForbidden
	}
	return res, nil
}

// Delete removes a reservation permanently.  Admin only; no refund is
// issued.
func (s *ReservationService) Delete(ctx context.Context, id uint64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.holds.CancelHold(id)
	s.log.WithReservation(id).InfoContext(ctx, "reservation deleted")
	return nil
}
