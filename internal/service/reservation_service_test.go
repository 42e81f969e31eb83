package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-reservation/internal/logger"
	"github.com/iliyamo/cinema-reservation/internal/model"
	"github.com/iliyamo/cinema-reservation/internal/queue"
	"github.com/iliyamo/cinema-reservation/internal/repository"
)

const (
	hallID  uint64 = 1
	movieID uint64 = 10
	alice   uint64 = 100
	bob     uint64 = 200
	admin   uint64 = 900
)

var (
	// 2025-11-20 18:00 UTC
	showStart = time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)
	bookedAt  = time.Date(2025, 11, 17, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	clock *fakeClock
	store *memStore
	proc  *fakeProcessor
	holds *fakeHolds
	pub   *fakePublisher
	svc   *ReservationService
	avail *AvailabilityService
}

func testHall() *model.Hall {
	h := &model.Hall{ID: hallID, Name: "Hall 1", SeatPriceCents: 2000}
	for _, s := range []model.Seat{{Row: "A", Number: 1}, {Row: "A", Number: 2}, {Row: "B", Number: 1}} {
		h.Seats = append(h.Seats, model.HallSeat{HallID: hallID, Seat: s})
	}
	h.TotalSeats = uint32(len(h.Seats))
	return h
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock: newFakeClock(bookedAt),
		proc:  newFakeProcessor(),
		holds: newFakeHolds(),
		pub:   &fakePublisher{},
	}
	f.store = newMemStore(f.clock)
	other := testHall()
	other.ID, other.Name = 2, "Hall 2"
	halls := fakeHalls{hallID: testHall(), 2: other}
	hid := hallID
	movies := fakeMovies{
		movieID: {ID: movieID, Title: "Arrival", HallID: &hid},
		11:      {ID: 11, Title: "Unassigned"},
	}
	pc := NewPaymentCoordinator(f.proc, f.store)
	opts = append([]Option{WithPublisher(f.pub)}, opts...)
	f.svc = NewReservationService(f.store, halls, movies, pc, f.holds, f.clock, logger.Nop(), opts...)
	f.avail = NewAvailabilityService(halls, movies, f.store, time.UTC)
	return f
}

func seats(keys ...string) []model.Seat {
	out := make([]model.Seat, len(keys))
	for i, k := range keys {
		out[i] = model.Seat{Row: k[:1], Number: uint32(k[1] - '0')}
	}
	return out
}

func (f *fixture) create(t *testing.T, user uint64, showtime string, s ...string) *CreateResult {
	t.Helper()
	res, err := f.svc.Create(context.Background(), CreateInput{
		UserID: user, MovieID: movieID, HallID: hallID,
		Showtime: showtime, Date: "2025-11-20", Seats: seats(s...),
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) createAndConfirm(t *testing.T, user uint64, s ...string) *model.Reservation {
	t.Helper()
	cr := f.create(t, user, "18:00", s...)
	f.proc.succeed(cr.PaymentRef)
	res, err := f.svc.Confirm(context.Background(), Actor{UserID: user, Role: model.RoleUser}, cr.PaymentRef)
	require.NoError(t, err)
	return res
}

func TestCreate_PendingWithPaymentHandle(t *testing.T) {
	f := newFixture(t)

	cr := f.create(t, alice, "18:00", "A1", "A2")

	assert.Equal(t, int64(4000), cr.AmountCents)
	assert.Equal(t, "usd", cr.Currency)
	assert.Equal(t, "pi_1", cr.PaymentRef)
	assert.Equal(t, "pi_1_secret", cr.ClientSecret)
	assert.Equal(t, bookedAt.Add(15*time.Minute), cr.HoldExpiresAt)

	res := cr.Reservation
	assert.Equal(t, model.StatusPending, f.store.status(res.ID))
	assert.Equal(t, showStart, res.ShowtimeDate)
	assert.Equal(t, "18:00", res.Showtime)
	require.NotNil(t, res.PaymentRef)
	assert.Equal(t, "pi_1", *res.PaymentRef)
	assert.Equal(t, bookedAt.Add(15*time.Minute), f.holds.scheduled[res.ID])

	intent, err := f.proc.RetrieveIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), intent.AmountCents)
	assert.Equal(t, "1", intent.Metadata["reservation_id"])
}

func TestCreate_NormalizesInput(t *testing.T) {
	f := newFixture(t)

	cr, err := f.svc.Create(context.Background(), CreateInput{
		UserID: alice, MovieID: movieID, HallID: hallID,
		Showtime: "18:00", Date: "2025-11-20",
		Seats: []model.Seat{{Row: " a ", Number: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Seat{{Row: "A", Number: 1}}, cr.Reservation.Seats)
}

func TestCreate_PerSeatPriceFallsBackToHallDefault(t *testing.T) {
	f := newFixture(t)
	h := testHall()
	h.Seats[0].PriceCents = 3500
	f.svc.halls = fakeHalls{hallID: h}

	cr := f.create(t, alice, "18:00", "A1", "A2")
	assert.Equal(t, int64(5500), cr.AmountCents)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	base := CreateInput{UserID: alice, MovieID: movieID, HallID: hallID, Showtime: "18:00", Date: "2025-11-20", Seats: seats("A1")}

	cases := map[string]func(in *CreateInput){
		"no seats":       func(in *CreateInput) { in.Seats = nil },
		"duplicate seat": func(in *CreateInput) { in.Seats = append(seats("A1"), model.Seat{Row: "a", Number: 1}) },
		"zero number":    func(in *CreateInput) { in.Seats = []model.Seat{{Row: "A"}} },
		"bad showtime":   func(in *CreateInput) { in.Showtime = "6pm" },
		"bad date":       func(in *CreateInput) { in.Date = "tomorrow" },
		"missing movie":  func(in *CreateInput) { in.MovieID = 0 },
		"seat not found": func(in *CreateInput) { in.Seats = seats("Z9") },
		"wrong hall":     func(in *CreateInput) { in.HallID = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, err := f.svc.Create(context.Background(), in)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
	assert.Empty(t, f.store.rows)
}

func TestCreate_NotFoundAndPast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{UserID: alice, MovieID: 99, HallID: hallID, Showtime: "18:00", Date: "2025-11-20", Seats: seats("A1")})
	assert.ErrorIs(t, err, repository.ErrMovieNotFound)

	_, err = f.svc.Create(ctx, CreateInput{UserID: alice, MovieID: 11, HallID: 7, Showtime: "18:00", Date: "2025-11-20", Seats: seats("A1")})
	assert.ErrorIs(t, err, repository.ErrHallNotFound)

	f.clock.Set(showStart)
	_, err = f.svc.Create(ctx, CreateInput{UserID: alice, MovieID: movieID, HallID: hallID, Showtime: "18:00", Date: "2025-11-20", Seats: seats("A1")})
	assert.ErrorIs(t, err, ErrShowtimePassed)
}

func TestCreate_SeatConflict(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, "18:00", "A1")

	_, err := f.svc.Create(context.Background(), CreateInput{
		UserID: bob, MovieID: movieID, HallID: hallID, Showtime: "18:00", Date: "2025-11-20", Seats: seats("A2", "A1"),
	})
	var conflict *SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, seats("A1"), conflict.Seats)
	assert.Contains(t, err.Error(), "A-1")

	// other screenings of the same hall are unaffected
	f.create(t, bob, "21:00", "A1")
	_, err = f.svc.Create(context.Background(), CreateInput{
		UserID: bob, MovieID: movieID, HallID: hallID, Showtime: "18:00", Date: "2025-11-21", Seats: seats("A1"),
	})
	assert.NoError(t, err)
}

func TestCreate_ScreeningScopedOnDaylightSavingDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	f := newFixture(t, WithLocation(ny))
	ctx := context.Background()
	book := func(user uint64, showtime, date string) error {
		_, err := f.svc.Create(ctx, CreateInput{
			UserID: user, MovieID: movieID, HallID: hallID, Showtime: showtime, Date: date, Seats: seats("A1"),
		})
		return err
	}

	// 2026-03-08 is 23h long in New York
	require.NoError(t, book(bob, "00:30", "2026-03-09"))
	assert.NoError(t, book(alice, "00:30", "2026-03-08"), "next day's screening must not leak in")

	// 2026-11-01 is 25h long in New York
	require.NoError(t, book(bob, "23:30", "2026-11-01"))
	var conflict *SeatConflictError
	assert.ErrorAs(t, book(alice, "23:30", "2026-11-01"), &conflict, "late screening must stay inside its day")
}

func TestCreate_HoldExpiryWholeSeconds(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(bookedAt.Add(700 * time.Millisecond))

	cr := f.create(t, alice, "18:00", "A1")
	want := bookedAt.Add(15 * time.Minute)
	assert.Equal(t, want, cr.HoldExpiresAt)
	require.NotNil(t, cr.Reservation.HoldExpiresAt)
	assert.Equal(t, want, *cr.Reservation.HoldExpiresAt)
	assert.Equal(t, want, f.holds.scheduled[cr.Reservation.ID])

	// the timer fires at the stored instant and finds the hold due
	f.clock.Set(want)
	released, err := f.store.CancelPending(context.Background(), cr.Reservation.ID, f.clock.Now())
	require.NoError(t, err)
	assert.True(t, released)
}

func TestCreate_NoDoubleBookingUnderConcurrency(t *testing.T) {
	for name, opts := range map[string][]Option{
		"screening lock": nil,
		"storage only":   {WithLocker(noLocker{})},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, opts...)
			const n = 25
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				wins      int
				conflicts int
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(user uint64) {
					defer wg.Done()
					_, err := f.svc.Create(context.Background(), CreateInput{
						UserID: user, MovieID: movieID, HallID: hallID,
						Showtime: "18:00", Date: "2025-11-20", Seats: seats("B1", "A2"),
					})
					mu.Lock()
					defer mu.Unlock()
					var conflict *SeatConflictError
					switch {
					case err == nil:
						wins++
					case errors.As(err, &conflict):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(uint64(i + 1))
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
			assert.Equal(t, n-1, conflicts)
			assert.Len(t, f.store.rows, 1)
		})
	}
}

func TestCreate_PaymentFailureLeavesNoReservation(t *testing.T) {
	f := newFixture(t)
	f.proc.failCreate = errors.New("card network down")

	_, err := f.svc.Create(context.Background(), CreateInput{
		UserID: alice, MovieID: movieID, HallID: hallID, Showtime: "18:00", Date: "2025-11-20", Seats: seats("A1"),
	})
	var pErr *PaymentError
	require.ErrorAs(t, err, &pErr)
	assert.Empty(t, f.store.rows)
	assert.Empty(t, f.holds.scheduled)
}

func TestConfirm_RequiresSucceededPayment(t *testing.T) {
	f := newFixture(t)
	cr := f.create(t, alice, "18:00", "A1")

	_, err := f.svc.Confirm(context.Background(), Actor{UserID: alice}, cr.PaymentRef)
	assert.ErrorIs(t, err, ErrPaymentNotSucceeded)
	assert.Equal(t, model.StatusPending, f.store.status(cr.Reservation.ID))
}

func TestConfirm_Idempotent(t *testing.T) {
	f := newFixture(t)
	cr := f.create(t, alice, "18:00", "A1")
	f.proc.succeed(cr.PaymentRef)
	actor := Actor{UserID: alice, Role: model.RoleUser}

	res, err := f.svc.Confirm(context.Background(), actor, cr.PaymentRef)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, res.Status)
	assert.Nil(t, res.HoldExpiresAt)
	assert.Contains(t, f.holds.cancelled, res.ID)

	_, err = f.svc.Confirm(context.Background(), actor, cr.PaymentRef)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)
	assert.Equal(t, model.StatusReserved, f.store.status(res.ID))

	assert.Eventually(t, func() bool {
		return len(f.pub.types()) == 1 && f.pub.types()[0] == queue.EventConfirmed
	}, time.Second, 5*time.Millisecond)
}

func TestConfirm_WrongUser(t *testing.T) {
	f := newFixture(t)
	cr := f.create(t, alice, "18:00", "A1")
	f.proc.succeed(cr.PaymentRef)

	_, err := f.svc.Confirm(context.Background(), Actor{UserID: bob}, cr.PaymentRef)
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)
	assert.Equal(t, model.StatusPending, f.store.status(cr.Reservation.ID))
}

func TestConfirm_AfterHoldExpired(t *testing.T) {
	f := newFixture(t)
	cr := f.create(t, alice, "18:00", "A1")
	sweeper, err := NewSweeper(f.store, f.clock, logger.Nop())
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	released, err := sweeper.ReleaseHold(context.Background(), cr.Reservation.ID)
	require.NoError(t, err)
	require.True(t, released)

	f.proc.succeed(cr.PaymentRef)
	_, err = f.svc.Confirm(context.Background(), Actor{UserID: alice}, cr.PaymentRef)
	assert.ErrorIs(t, err, ErrHoldExpired)
	assert.Equal(t, model.StatusCancelled, f.store.status(cr.Reservation.ID))
}

func TestCancel_RefundFeeBoundary(t *testing.T) {
	cases := []struct {
		name   string
		before time.Duration
		refund int64
	}{
		{"25h before", 25 * time.Hour, 4000},
		{"exactly 24h before", 24 * time.Hour, 4000},
		{"23h59m before", 23*time.Hour + 59*time.Minute, 3600},
		{"23h before", 23 * time.Hour, 3600},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.createAndConfirm(t, alice, "A1", "A2")

			f.clock.Set(showStart.Add(-tc.before))
			sum, err := f.svc.Cancel(context.Background(), Actor{UserID: alice, Role: model.RoleUser}, res.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(4000), sum.OriginalAmount)
			assert.Equal(t, tc.refund, sum.RefundAmount)
			assert.Equal(t, 4000-tc.refund, sum.Fee)
			assert.Equal(t, "re_"+*res.PaymentRef, sum.RefundRef)

			stored, err := f.store.GetByID(context.Background(), res.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusCancelled, stored.Status)
			require.NotNil(t, stored.RefundAmountCents)
			assert.Equal(t, tc.refund, *stored.RefundAmountCents)
			require.NotNil(t, stored.RefundedAt)
			assert.Equal(t, showStart.Add(-tc.before), *stored.RefundedAt)
		})
	}
}

func TestCancel_Deadline(t *testing.T) {
	f := newFixture(t)
	res := f.createAndConfirm(t, alice, "A1")
	actor := Actor{UserID: alice, Role: model.RoleUser}

	f.clock.Set(showStart.Add(-4 * time.Minute))
	_, err := f.svc.Cancel(context.Background(), actor, res.ID)
	var window *CancellationWindowError
	require.ErrorAs(t, err, &window)
	assert.Equal(t, showStart.Add(-5*time.Minute), window.Deadline)
	assert.Equal(t, model.StatusReserved, f.store.status(res.ID))

	f.clock.Set(showStart.Add(-5 * time.Minute))
	_, err = f.svc.Cancel(context.Background(), actor, res.ID)
	assert.ErrorAs(t, err, &window)

	f.clock.Set(showStart.Add(-6 * time.Minute))
	sum, err := f.svc.Cancel(context.Background(), actor, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), sum.RefundAmount)
}

func TestCancel_Authorization(t *testing.T) {
	f := newFixture(t)
	res := f.createAndConfirm(t, alice, "A1")

	_, err := f.svc.Cancel(context.Background(), Actor{UserID: bob, Role: model.RoleUser}, res.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Cancel(context.Background(), Actor{UserID: admin, Role: model.RoleAdmin}, res.ID)
	assert.NoError(t, err)
}

func TestCancel_WrongStatus(t *testing.T) {
	f := newFixture(t)
	cr := f.create(t, alice, "18:00", "A1")
	actor := Actor{UserID: alice}

	_, err := f.svc.Cancel(context.Background(), actor, cr.Reservation.ID)
	var tErr *InvalidTransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, model.StatusPending, tErr.From)

	_, err = f.svc.Cancel(context.Background(), actor, 999)
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)
}

func TestCancel_RefundFailureKeepsReserved(t *testing.T) {
	f := newFixture(t)
	res := f.createAndConfirm(t, alice, "A1")
	f.proc.failRefund = errors.New("processor unavailable")

	_, err := f.svc.Cancel(context.Background(), Actor{UserID: alice}, res.ID)
	var pErr *PaymentError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "refund", pErr.Op)
	assert.Equal(t, model.StatusReserved, f.store.status(res.ID))

	// retry succeeds once the processor recovers
	f.proc.failRefund = nil
	_, err = f.svc.Cancel(context.Background(), Actor{UserID: alice}, res.ID)
	assert.NoError(t, err)
}

func TestListMine_ExpiresPastReservations(t *testing.T) {
	f := newFixture(t)
	past := f.createAndConfirm(t, alice, "A1")
	f.clock.Set(bookedAt.Add(time.Hour))
	pending := f.create(t, alice, "21:00", "A2")
	f.createAndConfirm(t, bob, "B1")

	f.clock.Set(showStart.Add(time.Minute))
	list, err := f.svc.ListMine(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, pending.Reservation.ID, list[0].ID, "newest first")
	assert.Equal(t, past.ID, list[1].ID)
	assert.Equal(t, model.StatusExpired, list[1].Status)
	assert.Equal(t, model.StatusPending, list[0].Status)

	// other users are untouched until they list
	bobs, err := f.store.ListByUser(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, bobs[0].Status)
}

func TestList_AdminFilters(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, "18:00", "A1")
	f.create(t, bob, "9:30", "A1")

	all, err := f.svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	morning, err := f.svc.List(context.Background(), ListFilter{HallID: hallID, Showtime: "09:30"})
	require.NoError(t, err)
	require.Len(t, morning, 1)
	assert.Equal(t, bob, morning[0].UserID)

	_, err = f.svc.List(context.Background(), ListFilter{Showtime: "noon"})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestGetAndDelete(t *testing.T) {
	f := newFixture(t)
	cr := f.create(t, alice, "18:00", "A1")
	id := cr.Reservation.ID

	_, err := f.svc.Get(context.Background(), Actor{UserID: bob}, id)
	assert.ErrorIs(t, err, ErrForbidden)
	got, err := f.svc.Get(context.Background(), Actor{UserID: alice}, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	require.NoError(t, f.svc.Delete(context.Background(), id))
	assert.Contains(t, f.holds.cancelled, id)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), id), repository.ErrReservationNotFound)

	// seats are free again
	f.create(t, bob, "18:00", "A1")
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)

	cr := f.create(t, alice, "18:00", "A1", "A2")
	assert.Equal(t, int64(4000), cr.AmountCents)

	f.proc.succeed(cr.PaymentRef)
	res, err := f.svc.Confirm(context.Background(), Actor{UserID: alice}, cr.PaymentRef)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, res.Status)

	f.clock.Set(showStart.Add(-48 * time.Hour))
	sum, err := f.svc.Cancel(context.Background(), Actor{UserID: alice}, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), sum.RefundAmount)
	assert.Equal(t, model.StatusCancelled, f.store.status(res.ID))

	m, err := f.avail.ComputeSeatStatus(context.Background(), hallID, "18:00", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Available)

	assert.Eventually(t, func() bool { return len(f.pub.types()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestTimeoutScenario(t *testing.T) {
	f := newFixture(t)
	sweeper, err := NewSweeper(f.store, f.clock, logger.Nop())
	require.NoError(t, err)

	cr := f.create(t, alice, "18:00", "A1")
	m, err := f.avail.ComputeSeatStatus(context.Background(), hallID, "18:00", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Reserved)

	f.clock.Advance(14 * time.Minute)
	ids, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	f.clock.Advance(time.Minute)
	ids, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{cr.Reservation.ID}, ids)
	assert.Equal(t, model.StatusCancelled, f.store.status(cr.Reservation.ID))

	m, err = f.avail.ComputeSeatStatus(context.Background(), hallID, "18:00", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Reserved)
	assert.Equal(t, 3, m.Available)
}
