package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-reservation/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var reservationCols = []string{
	"id", "user_id", "movie_id", "hall_id", "showtime", "showtime_date", "status",
	"amount_cents", "currency", "payment_ref", "refund_ref", "refund_amount_cents", "refunded_at",
	"hold_expires_at", "created_at", "updated_at",
}

func TestReservationRepo_HeldSeats(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)

	day := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM reservation_seats rs").
		WithArgs(uint64(1), "18:00", day, day.Add(24*time.Hour-time.Millisecond)).
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "seat_number"}).
			AddRow("A", 1).AddRow("A", 2))

	seats, err := repo.HeldSeats(context.Background(), 1, "18:00", day, day.Add(24*time.Hour-time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, []model.Seat{{Row: "A", Number: 1}, {Row: "A", Number: 2}}, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_CreateDuplicateSeat(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO reservation_seats").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	res := &model.Reservation{
		UserID: 3, MovieID: 1, HallID: 1, Showtime: "18:00",
		ShowtimeDate: time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC),
		Status:       model.StatusPending, AmountCents: 4000, Currency: "usd",
		Seats: []model.Seat{{Row: "A", Number: 1}, {Row: "A", Number: 2}},
	}
	err := repo.Create(context.Background(), res)
	assert.ErrorIs(t, err, ErrSeatTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)
	now := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("INSERT INTO reservation_seats").
		WithArgs(uint64(9), uint64(1), "18:00", "2026-11-02", "B", uint32(4), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT created_at, updated_at FROM reservations").
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	res := &model.Reservation{
		UserID: 3, MovieID: 1, HallID: 1, Showtime: "18:00",
		ShowtimeDate: time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC),
		Status:       model.StatusPending, AmountCents: 2000, Currency: "usd",
		Seats: []model.Seat{{Row: "B", Number: 4}},
	}
	require.NoError(t, repo.Create(context.Background(), res))
	assert.Equal(t, uint64(9), res.ID)
	assert.Equal(t, now, res.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)

	mock.ExpectQuery("FROM reservations WHERE id").WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(reservationCols))

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestReservationRepo_GetByIDLoadsSeats(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)
	show := time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC)
	ref := "pi_123"

	mock.ExpectQuery("FROM reservations WHERE id").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(reservationCols).AddRow(
			5, 3, 1, 1, "18:00", show, "reserved",
			4000, "usd", ref, nil, nil, nil,
			nil, show, show))
	mock.ExpectQuery("FROM reservation_seats").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id", "row_label", "seat_number"}).
			AddRow(5, "A", 1).AddRow(5, "A", 2))

	res, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, res.Status)
	require.NotNil(t, res.PaymentRef)
	assert.Equal(t, ref, *res.PaymentRef)
	assert.Nil(t, res.RefundRef)
	assert.Len(t, res.Seats, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_MarkReserved(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)

	mock.ExpectExec("UPDATE reservations SET status = 'reserved'").
		WithArgs("pi_1", uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservations SET status = 'reserved'").
		WithArgs("pi_1", uint64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkReserved(context.Background(), "pi_1", 3)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkReserved(context.Background(), "pi_1", 3)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_CancelStalePending(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)
	now := time.Date(2026, 11, 2, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM reservations WHERE status = 'pending'").WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4).AddRow(6))
	mock.ExpectExec("UPDATE reservations SET status").
		WithArgs("cancelled", uint64(4), uint64(6)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE reservation_seats SET active = NULL").
		WithArgs(uint64(4), uint64(6)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	ids, err := repo.CancelStalePending(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 6}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_ExpirePastForUserNothingDue(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)
	now := time.Date(2026, 11, 2, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("status = 'reserved' AND showtime_date").WithArgs(uint64(3), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	ids, err := repo.ExpirePastForUser(context.Background(), 3, now)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_MarkCancelledWrongStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)

	mock.ExpectExec("SET status = 'cancelled', refund_ref").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkCancelled(context.Background(), 8, RefundRecord{Ref: "re_1", AmountCents: 3600, RefundedAt: time.Now()})
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reservation_seats").WithArgs(uint64(8)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM reservations").WithArgs(uint64(8)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 8)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_ListFilter(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db, time.UTC)

	mock.ExpectQuery("WHERE movie_id = \\? AND showtime = \\?").
		WithArgs(uint64(2), "18:00").
		WillReturnRows(sqlmock.NewRows(reservationCols))

	list, err := repo.List(context.Background(), ListFilter{MovieID: 2, Showtime: "18:00"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}
