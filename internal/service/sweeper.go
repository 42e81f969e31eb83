package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/cinema-reservation/internal/logger"
	"github.com/iliyamo/cinema-reservation/internal/model"
	"github.com/iliyamo/cinema-reservation/internal/queue"
)

// HoldStore releases pending holds.
type HoldStore interface {
	CancelPending(ctx context.Context, id uint64, now time.Time) (bool, error)
	CancelStalePending(ctx context.Context, now time.Time) ([]uint64, error)
}

// HoldScheduler arms and disarms the per-reservation hold timer.
type HoldScheduler interface {
	ScheduleHold(id uint64, due time.Time)
	CancelHold(id uint64)
}

// Sweeper releases pending reservations whose hold has run out.  Each
// pending reservation gets a one-time job at its due time; a periodic
// job reconciles anything those timers missed, for example holds
// created before a restart.  Failures are logged and retried by the
// next periodic run.
type Sweeper struct {
	scheduler gocron.Scheduler
	store     HoldStore
	clock     Clock
	interval  time.Duration
	pub       EventPublisher
	log       *logger.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the reconciliation period.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweeperPublisher publishes hold_released events.
func WithSweeperPublisher(pub EventPublisher) SweeperOption {
	return func(s *Sweeper) { s.pub = pub }
}

func NewSweeper(store HoldStore, clk Clock, log *logger.Logger, opts ...SweeperOption) (*Sweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Sweeper{
		scheduler: sched,
		store:     store,
		clock:     clk,
		interval:  time.Minute,
		log:       log.WithComponent("hold-sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the periodic reconciliation, running it once right
// away, and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func(ctx context.Context) {
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("stale hold sweep failed", "error", err)
			}
		}),
		gocron.WithName("stale-hold-sweep"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	s.scheduler.Start()
	return nil
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Sweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}

func holdTag(id uint64) string { return fmt.Sprintf("reservation:%d", id) }

// ScheduleHold arms a one-time job releasing reservation id at due,
// measured on the sweeper's clock.
func (s *Sweeper) ScheduleHold(id uint64, due time.Time) {
	start := gocron.OneTimeJobStartImmediately()
	if wait := due.Sub(s.clock.Now()); wait > 0 {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(wait))
	}
	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(func(ctx context.Context, id uint64) {
			if _, err := s.ReleaseHold(ctx, id); err != nil {
				s.log.WithReservation(id).Error("release hold failed", "error", err)
			}
		}, id),
		gocron.WithTags(holdTag(id)),
	)
	if err != nil {
		// the periodic sweep still covers this reservation
		s.log.WithReservation(id).Warn("schedule hold timer failed", "error", err)
	}
}

// CancelHold disarms the hold timer of reservation id.
func (s *Sweeper) CancelHold(id uint64) {
	s.scheduler.RemoveByTags(holdTag(id))
}

// ReleaseHold cancels reservation id if it is still pending and due.
func (s *Sweeper) ReleaseHold(ctx context.Context, id uint64) (bool, error) {
	now := s.clock.Now()
	changed, err := s.store.CancelPending(ctx, id, now)
	if err != nil || !changed {
		return false, err
	}
	s.released(ctx, id, now, "hold_timeout")
	return true, nil
}

// Sweep cancels every pending reservation whose hold is due.
func (s *Sweeper) Sweep(ctx context.Context) ([]uint64, error) {
	now := s.clock.Now()
	ids, err := s.store.CancelStalePending(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.released(ctx, id, now, "stale_hold_sweep")
	}
	return ids, nil
}

func (s *Sweeper) released(ctx context.Context, id uint64, at time.Time, reason string) {
	s.log.LogTransition(ctx, id, string(model.StatusPending), string(model.StatusCancelled), reason)
	publish(ctx, s.pub, s.log, queue.ReservationEvent{
		Type:          queue.EventHoldReleased,
		ReservationID: id,
		Status:        string(model.StatusCancelled),
		OccurredAt:    at,
	})
}
