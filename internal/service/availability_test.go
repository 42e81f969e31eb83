package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-reservation/internal/model"
	"github.com/iliyamo/cinema-reservation/internal/repository"
)

func TestComputeSeatStatus(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, "18:00", "A1")

	m, err := f.avail.ComputeSeatStatus(context.Background(), hallID, "18:00", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 1, m.Reserved)
	assert.Equal(t, 2, m.Available)
	assert.Equal(t, "2025-11-20", m.Date)

	byKey := make(map[string]SeatStatus, len(m.Seats))
	for _, s := range m.Seats {
		byKey[s.Key] = s
	}
	assert.True(t, byKey["A-1"].Reserved)
	assert.False(t, byKey["A-2"].Reserved)
	assert.False(t, byKey["B-1"].Reserved)
	assert.Equal(t, uint32(2000), byKey["B-1"].PriceCents)
}

func TestComputeSeatStatus_ScopedToScreening(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, "18:00", "A1")

	m, err := f.avail.ComputeSeatStatus(context.Background(), hallID, "21:00", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Reserved)

	m, err = f.avail.ComputeSeatStatus(context.Background(), hallID, "18:00", "2025-11-21")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Reserved)
}

func TestComputeSeatStatus_IgnoresInactive(t *testing.T) {
	f := newFixture(t)
	res := f.createAndConfirm(t, alice, "A1")
	_, err := f.svc.Cancel(context.Background(), Actor{UserID: alice}, res.ID)
	require.NoError(t, err)

	m, err := f.avail.ComputeSeatStatus(context.Background(), hallID, "18:00", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Reserved)
}

func TestComputeSeatStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.avail.ComputeSeatStatus(ctx, 42, "18:00", "2025-11-20")
	assert.ErrorIs(t, err, repository.ErrHallNotFound)

	_, err = f.avail.ComputeSeatStatus(ctx, hallID, "25:00", "2025-11-20")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = f.avail.ComputeSeatStatusForMovie(ctx, 11, "18:00", "2025-11-20")
	assert.ErrorIs(t, err, ErrMovieHasNoHall)

	m, err := f.avail.ComputeSeatStatusForMovie(ctx, movieID, "18:00", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, hallID, m.HallID)
}

func TestCheckSeats(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, "18:00", "A1")

	checks, err := f.avail.CheckSeats(context.Background(), hallID, "18:00", "2025-11-20", []model.Seat{
		{Row: "a", Number: 1},
		{Row: "A", Number: 2},
		{Row: "Z", Number: 9},
	})
	require.NoError(t, err)
	require.Len(t, checks, 3)
	assert.Equal(t, SeatReserved, checks[0].Status)
	assert.Equal(t, "A", checks[0].Row)
	assert.Equal(t, SeatAvailable, checks[1].Status)
	assert.Equal(t, uint32(2000), checks[1].PriceCents)
	assert.Equal(t, SeatNotFound, checks[2].Status)
	assert.Zero(t, checks[2].PriceCents)

	_, err = f.avail.CheckSeats(context.Background(), hallID, "18:00", "2025-11-20", nil)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}
