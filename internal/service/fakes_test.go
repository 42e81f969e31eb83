package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-reservation/internal/model"
	"github.com/iliyamo/cinema-reservation/internal/payment"
	"github.com/iliyamo/cinema-reservation/internal/queue"
	"github.com/iliyamo/cinema-reservation/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory ReservationStore.  Create enforces the same
// one-active-holder-per-seat rule as the unique index.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]*model.Reservation
	clock  Clock
}

func newMemStore(clk Clock) *memStore {
	return &memStore{rows: make(map[uint64]*model.Reservation), clock: clk}
}

func clone(r *model.Reservation) *model.Reservation {
	c := *r
	c.Seats = append([]model.Seat(nil), r.Seats...)
	return &c
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memStore) HeldSeats(_ context.Context, hallID uint64, showtime string, from, to time.Time) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Seat
	for _, r := range m.rows {
		if r.HallID != hallID || r.Showtime != showtime || !r.Status.IsActive() {
			continue
		}
		if r.ShowtimeDate.Before(from) || r.ShowtimeDate.After(to) {
			continue
		}
		out = append(out, r.Seats...)
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := res.ShowtimeDate.Format("2006-01-02")
	for _, r := range m.rows {
		if r.HallID != res.HallID || r.Showtime != res.Showtime || !r.Status.IsActive() ||
			r.ShowtimeDate.Format("2006-01-02") != day {
			continue
		}
		for _, a := range r.Seats {
			for _, b := range res.Seats {
				if a == b {
					return repository.ErrSeatTaken
				}
			}
		}
	}
	m.nextID++
	res.ID = m.nextID
	res.CreatedAt = m.clock.Now().Add(time.Duration(m.nextID) * time.Millisecond)
	res.UpdatedAt = res.CreatedAt
	m.rows[res.ID] = clone(res)
	return nil
}

func (m *memStore) SetPaymentRef(_ context.Context, id uint64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != model.StatusPending {
		return repository.ErrReservationNotFound
	}
	r.PaymentRef = &ref
	return nil
}

func (m *memStore) MarkReserved(_ context.Context, ref string, userID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.PaymentRef != nil && *r.PaymentRef == ref && r.UserID == userID && r.Status == model.StatusPending {
			r.Status = model.StatusReserved
			r.HoldExpiresAt = nil
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindByPaymentRef(_ context.Context, ref string, userID uint64) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.PaymentRef != nil && *r.PaymentRef == ref && r.UserID == userID {
			return clone(r), nil
		}
	}
	return nil, repository.ErrReservationNotFound
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return clone(r), nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) MarkCancelled(_ context.Context, id uint64, refund repository.RefundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != model.StatusReserved {
		return repository.ErrReservationNotFound
	}
	r.Status = model.StatusCancelled
	ref, amt, at := refund.Ref, refund.AmountCents, refund.RefundedAt
	r.RefundRef, r.RefundAmountCents, r.RefundedAt = &ref, &amt, &at
	return nil
}

func (m *memStore) CancelPending(_ context.Context, id uint64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != model.StatusPending || r.HoldExpiresAt == nil || r.HoldExpiresAt.After(now) {
		return false, nil
	}
	r.Status = model.StatusCancelled
	r.HoldExpiresAt = nil
	return true, nil
}

func (m *memStore) CancelStalePending(_ context.Context, now time.Time) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for id, r := range m.rows {
		if r.Status == model.StatusPending && r.HoldExpiresAt != nil && !r.HoldExpiresAt.After(now) {
			r.Status = model.StatusCancelled
			r.HoldExpiresAt = nil
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) ExpirePastForUser(_ context.Context, userID uint64, now time.Time) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for id, r := range m.rows {
		if r.UserID == userID && r.Status == model.StatusReserved && r.ShowtimeDate.Before(now) {
			r.Status = model.StatusExpired
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) sorted(keep func(*model.Reservation) bool) []*model.Reservation {
	out := make([]*model.Reservation, 0)
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListByUser(_ context.Context, userID uint64) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(r *model.Reservation) bool { return r.UserID == userID }), nil
}

func (m *memStore) List(_ context.Context, f repository.ListFilter) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(r *model.Reservation) bool {
		return (f.MovieID == 0 || r.MovieID == f.MovieID) &&
			(f.HallID == 0 || r.HallID == f.HallID) &&
			(f.Showtime == "" || r.Showtime == f.Showtime)
	}), nil
}

func (m *memStore) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrReservationNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) status(id uint64) model.ReservationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		return r.Status
	}
	return ""
}

type fakeHalls map[uint64]*model.Hall

func (f fakeHalls) GetByID(_ context.Context, id uint64) (*model.Hall, error) {
	h, ok := f[id]
	if !ok {
		return nil, repository.ErrHallNotFound
	}
	return h, nil
}

type fakeMovies map[uint64]*model.Movie

func (f fakeMovies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	m, ok := f[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	return m, nil
}

// fakeProcessor keeps intents and refunds in memory.  Intents start
// unpaid; tests mark them succeeded.
type fakeProcessor struct {
	mu         sync.Mutex
	n          int
	intents    map[string]*payment.Intent
	byKey      map[string]string
	refunds    map[string]*payment.Refund
	failCreate error
	failRefund error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		intents: make(map[string]*payment.Intent),
		byKey:   make(map[string]string),
		refunds: make(map[string]*payment.Refund),
	}
}

func (p *fakeProcessor) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate != nil {
		return nil, p.failCreate
	}
	if id, ok := p.byKey[req.IdempotencyKey]; ok {
		in := *p.intents[id]
		return &in, nil
	}
	p.n++
	id := fmt.Sprintf("pi_%d", p.n)
	p.intents[id] = &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       payment.StatusRequiresPayment,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Metadata:     req.Metadata,
	}
	p.byKey[req.IdempotencyKey] = id
	in := *p.intents[id]
	return &in, nil
}

func (p *fakeProcessor) RetrieveIntent(_ context.Context, id string) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in, ok := p.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	c := *in
	return &c, nil
}

func (p *fakeProcessor) CreateRefund(_ context.Context, req payment.RefundRequest) (*payment.Refund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failRefund != nil {
		return nil, p.failRefund
	}
	if r, ok := p.refunds[req.IdempotencyKey]; ok {
		return r, nil
	}
	r := &payment.Refund{ID: "re_" + req.PaymentRef, AmountCents: req.AmountCents, Status: "succeeded"}
	p.refunds[req.IdempotencyKey] = r
	return r, nil
}

func (p *fakeProcessor) succeed(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[id].Status = payment.StatusSucceeded
}

type fakeHolds struct {
	mu        sync.Mutex
	scheduled map[uint64]time.Time
	cancelled []uint64
}

func newFakeHolds() *fakeHolds { return &fakeHolds{scheduled: make(map[uint64]time.Time)} }

func (h *fakeHolds) ScheduleHold(id uint64, due time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scheduled[id] = due
}

func (h *fakeHolds) CancelHold(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.scheduled, id)
	h.cancelled = append(h.cancelled, id)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// noLocker grants every lock immediately so tests can exercise the
// storage-level exclusion alone.
type noLocker struct{}

func (noLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
