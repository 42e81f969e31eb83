package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/cinema-reservation/internal/model"
)

// ReservationRepo persists reservations and the seats they hold.  Each
// reservation owns rows in reservation_seats whose `active` column is 1
// while the reservation is pending or reserved and NULL afterwards; the
// unique key over (hall, showtime, day, seat, active) rejects a second
// active holder of the same seat.  Every status transition below keeps
// that column in sync.  All timestamps are stored in UTC.
type ReservationRepo struct {
    db  *sql.DB
    loc *time.Location
}

// NewReservationRepo returns a ReservationRepo bound to the given
// database.  loc is the cinema time zone used to derive the show day
// stored with each seat; nil means UTC.
func NewReservationRepo(db *sql.DB, loc *time.Location) *ReservationRepo {
    if loc == nil {
        loc = time.UTC
    }
    return &ReservationRepo{db: db, loc: loc}
}

// WithTx runs fn in a transaction carried by the context.  Repository
// calls made with the derived context join that transaction.
func (r *ReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
    return withTx(ctx, r.db, fn)
}

// ListFilter narrows the admin listing.  Zero values mean "any".
type ListFilter struct {
    MovieID  uint64
    HallID   uint64
    Showtime string
}

// RefundRecord captures the refund fields written on cancellation.
type RefundRecord struct {
    Ref         string
    AmountCents int64
    RefundedAt  time.Time
}

const reservationColumns = `id, user_id, movie_id, hall_id, showtime, showtime_date, status,
        amount_cents, currency, payment_ref, refund_ref, refund_amount_cents, refunded_at,
        hold_expires_at, created_at, updated_at`

func scanReservation(sc interface{ Scan(...any) error }) (*model.Reservation, error) {
    var (
        res          model.Reservation
        status       string
        paymentRef   sql.NullString
        refundRef    sql.NullString
        refundAmount sql.NullInt64
        refundedAt   sql.NullTime
        holdExpires  sql.NullTime
    )
    err := sc.Scan(
        &res.ID, &res.UserID, &res.MovieID, &res.HallID, &res.Showtime, &res.ShowtimeDate, &status,
        &res.AmountCents, &res.Currency, &paymentRef, &refundRef, &refundAmount, &refundedAt,
        &holdExpires, &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    res.Status = model.ReservationStatus(status)
    res.ShowtimeDate = res.ShowtimeDate.UTC()
    if paymentRef.Valid {
        ref := paymentRef.String
        res.PaymentRef = &ref
    }
    if refundRef.Valid {
        ref := refundRef.String
        res.RefundRef = &ref
    }
    if refundAmount.Valid {
        amt := refundAmount.Int64
        res.RefundAmountCents = &amt
    }
    if refundedAt.Valid {
        t := refundedAt.Time.UTC()
        res.RefundedAt = &t
    }
    if holdExpires.Valid {
        t := holdExpires.Time.UTC()
        res.HoldExpiresAt = &t
    }
    return &res, nil
}

// HeldSeats returns the seats held by pending or reserved reservations
// for the hall and showtime whose start falls in [from, to].
func (r *ReservationRepo) HeldSeats(ctx context.Context, hallID uint64, showtime string, from, to time.Time) ([]model.Seat, error) {
    const q = `SELECT rs.row_label, rs.seat_number
               FROM reservation_seats rs
               JOIN reservations r ON r.id = rs.reservation_id
               WHERE r.hall_id = ? AND r.showtime = ?
                 AND r.showtime_date BETWEEN ? AND ?
                 AND r.status IN ('pending','reserved')`
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, hallID, showtime, from.UTC(), to.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]model.Seat, 0)
    for rows.Next() {
        var s model.Seat
        if err := rows.Scan(&s.Row, &s.Number); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// Create inserts a reservation and its seats.  It sets the generated
// ID and the stored timestamps on res.  A unique-key violation on the
// seat rows is reported as ErrSeatTaken.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
    return withTx(ctx, r.db, func(ctx context.Context) error {
        q := conn(ctx, r.db)
        const ins = `INSERT INTO reservations
                     (user_id, movie_id, hall_id, showtime, showtime_date, status, amount_cents, currency, payment_ref, hold_expires_at)
                     VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
        var holdExpires any
        if res.HoldExpiresAt != nil {
            holdExpires = res.HoldExpiresAt.UTC()
        }
        result, err := q.ExecContext(ctx, ins,
            res.UserID, res.MovieID, res.HallID, res.Showtime, res.ShowtimeDate.UTC(), string(res.Status),
            res.AmountCents, res.Currency, res.PaymentRef, holdExpires)
        if err != nil {
            return err
        }
        id, err := result.LastInsertId()
        if err != nil {
            return err
        }
        res.ID = uint64(id)

        if len(res.Seats) > 0 {
            showDay := res.ShowtimeDate.In(r.loc).Format("2006-01-02")
            var active any
            if res.Status.IsActive() {
                active = 1
            }
            var sb strings.Builder
            sb.WriteString(`INSERT INTO reservation_seats (reservation_id, hall_id, showtime, show_date, row_label, seat_number, active) VALUES `)
            args := make([]any, 0, len(res.Seats)*7)
            for i, s := range res.Seats {
                if i > 0 {
                    sb.WriteString(",")
                }
                sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
                args = append(args, res.ID, res.HallID, res.Showtime, showDay, s.Row, s.Number, active)
            }
            if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
                if isDuplicateKey(err) {
                    return ErrSeatTaken
                }
                return err
            }
        }

        return q.QueryRowContext(ctx, `SELECT created_at, updated_at FROM reservations WHERE id = ?`, res.ID).
            Scan(&res.CreatedAt, &res.UpdatedAt)
    })
}

// SetPaymentRef stores the processor reference on a pending reservation.
func (r *ReservationRepo) SetPaymentRef(ctx context.Context, id uint64, ref string) error {
    result, err := conn(ctx, r.db).ExecContext(ctx,
        `UPDATE reservations SET payment_ref = ? WHERE id = ? AND status = 'pending'`, ref, id)
    if err != nil {
        return err
    }
    return expectOne(result)
}

// GetByID loads a reservation with its seats.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
    return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
}

// GetForUpdate loads a reservation and locks its row until the
// surrounding transaction ends.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
    return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
}

// FindByPaymentRef returns the newest reservation of the user carrying
// the payment reference.
func (r *ReservationRepo) FindByPaymentRef(ctx context.Context, ref string, userID uint64) (*model.Reservation, error) {
    return r.getOne(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE payment_ref = ? AND user_id = ? ORDER BY id DESC LIMIT 1`,
        ref, userID)
}

func (r *ReservationRepo) getOne(ctx context.Context, q string, args ...any) (*model.Reservation, error) {
    res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, q, args...))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrReservationNotFound
        }
        return nil, err
    }
    if err := r.loadSeats(ctx, []*model.Reservation{res}); err != nil {
        return nil, err
    }
    return res, nil
}

// loadSeats fills Seats for each reservation with one query.
func (r *ReservationRepo) loadSeats(ctx context.Context, list []*model.Reservation) error {
    if len(list) == 0 {
        return nil
    }
    index := make(map[uint64]*model.Reservation, len(list))
    args := make([]any, 0, len(list))
    for _, res := range list {
        res.Seats = make([]model.Seat, 0)
        index[res.ID] = res
        args = append(args, res.ID)
    }
    q := `SELECT reservation_id, row_label, seat_number FROM reservation_seats
          WHERE reservation_id IN (` + placeholders(len(args)) + `)
          ORDER BY reservation_id, row_label, seat_number`
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        var (
            id uint64
            s  model.Seat
        )
        if err := rows.Scan(&id, &s.Row, &s.Number); err != nil {
            return err
        }
        if res, ok := index[id]; ok {
            res.Seats = append(res.Seats, s)
        }
    }
    return rows.Err()
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]*model.Reservation, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    out := make([]*model.Reservation, 0)
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            rows.Close()
            return nil, err
        }
        out = append(out, res)
    }
    if err := rows.Err(); err != nil {
        rows.Close()
        return nil, err
    }
    rows.Close()
    if err := r.loadSeats(ctx, out); err != nil {
        return nil, err
    }
    return out, nil
}

// ListByUser returns the user's reservations newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
    return r.list(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
        userID)
}

// List returns reservations matching the filter newest first.
func (r *ReservationRepo) List(ctx context.Context, f ListFilter) ([]*model.Reservation, error) {
    var (
        where []string
        args  []any
    )
    if f.MovieID != 0 {
        where = append(where, "movie_id = ?")
        args = append(args, f.MovieID)
    }
    if f.HallID != 0 {
        where = append(where, "hall_id = ?")
        args = append(args, f.HallID)
    }
    if f.Showtime != "" {
        where = append(where, "showtime = ?")
        args = append(args, f.Showtime)
    }
    q := `SELECT ` + reservationColumns + ` FROM reservations`
    if len(where) > 0 {
        q += ` WHERE ` + strings.Join(where, " AND ")
    }
    q += ` ORDER BY created_at DESC, id DESC`
    return r.list(ctx, q, args...)
}

// MarkReserved flips the user's pending reservation carrying ref to
// reserved.  It reports whether a row changed, which makes repeated
// confirmations detectable.
func (r *ReservationRepo) MarkReserved(ctx context.Context, ref string, userID uint64) (bool, error) {
    result, err := conn(ctx, r.db).ExecContext(ctx,
        `UPDATE reservations SET status = 'reserved', hold_expires_at = NULL
         WHERE payment_ref = ? AND user_id = ? AND status = 'pending'`,
        ref, userID)
    if err != nil {
        return false, err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// MarkCancelled moves a reserved reservation to cancelled, records the
// refund and releases its seats.  It must run inside WithTx.
func (r *ReservationRepo) MarkCancelled(ctx context.Context, id uint64, refund RefundRecord) error {
    q := conn(ctx, r.db)
    result, err := q.ExecContext(ctx,
        `UPDATE reservations
         SET status = 'cancelled', refund_ref = ?, refund_amount_cents = ?, refunded_at = ?
         WHERE id = ? AND status = 'reserved'`,
        nullIfEmpty(refund.Ref), refund.AmountCents, refund.RefundedAt.UTC(), id)
    if err != nil {
        return err
    }
    if err := expectOne(result); err != nil {
        return err
    }
    return r.releaseSeats(ctx, id)
}

// CancelPending cancels the reservation if it is still pending and its
// hold is due at now.  It reports whether the reservation changed.
func (r *ReservationRepo) CancelPending(ctx context.Context, id uint64, now time.Time) (bool, error) {
    changed := false
    err := withTx(ctx, r.db, func(ctx context.Context) error {
        result, err := conn(ctx, r.db).ExecContext(ctx,
            `UPDATE reservations SET status = 'cancelled', hold_expires_at = NULL
             WHERE id = ? AND status = 'pending' AND hold_expires_at <= ?`,
            id, now.UTC())
        if err != nil {
            return err
        }
        n, err := result.RowsAffected()
        if err != nil || n == 0 {
            return err
        }
        changed = true
        return r.releaseSeats(ctx, id)
    })
    return changed, err
}

// CancelStalePending cancels every pending reservation whose hold is
// due at now and returns their IDs.
func (r *ReservationRepo) CancelStalePending(ctx context.Context, now time.Time) ([]uint64, error) {
    var ids []uint64
    err := withTx(ctx, r.db, func(ctx context.Context) error {
        var err error
        ids, err = r.lockIDs(ctx,
            `SELECT id FROM reservations WHERE status = 'pending' AND hold_expires_at <= ? FOR UPDATE`,
            now.UTC())
        if err != nil || len(ids) == 0 {
            return err
        }
        return r.transitionIDs(ctx, ids, model.StatusCancelled)
    })
    return ids, err
}

// ExpirePastForUser marks the user's reserved reservations whose
// showtime is before now as expired and returns their IDs.
func (r *ReservationRepo) ExpirePastForUser(ctx context.Context, userID uint64, now time.Time) ([]uint64, error) {
    var ids []uint64
    err := withTx(ctx, r.db, func(ctx context.Context) error {
        var err error
        ids, err = r.lockIDs(ctx,
            `SELECT id FROM reservations WHERE user_id = ? AND status = 'reserved' AND showtime_date < ? FOR UPDATE`,
            userID, now.UTC())
        if err != nil || len(ids) == 0 {
            return err
        }
        return r.transitionIDs(ctx, ids, model.StatusExpired)
    })
    return ids, err
}

// Delete removes a reservation and its seats permanently.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
    return withTx(ctx, r.db, func(ctx context.Context) error {
        q := conn(ctx, r.db)
        if _, err := q.ExecContext(ctx, `DELETE FROM reservation_seats WHERE reservation_id = ?`, id); err != nil {
            return err
        }
        result, err := q.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
        if err != nil {
            return err
        }
        return expectOne(result)
    })
}

func (r *ReservationRepo) lockIDs(ctx context.Context, q string, args ...any) ([]uint64, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}

func (r *ReservationRepo) transitionIDs(ctx context.Context, ids []uint64, to model.ReservationStatus) error {
    args := make([]any, 0, len(ids)+1)
    args = append(args, string(to))
    for _, id := range ids {
        args = append(args, id)
    }
    in := placeholders(len(ids))
    q := conn(ctx, r.db)
    if _, err := q.ExecContext(ctx,
        `UPDATE reservations SET status = ?, hold_expires_at = NULL WHERE id IN (`+in+`)`, args...); err != nil {
        return err
    }
    _, err := q.ExecContext(ctx,
        `UPDATE reservation_seats SET active = NULL WHERE reservation_id IN (`+in+`)`, args[1:]...)
    return err
}

func (r *ReservationRepo) releaseSeats(ctx context.Context, id uint64) error {
    _, err := conn(ctx, r.db).ExecContext(ctx,
        `UPDATE reservation_seats SET active = NULL WHERE reservation_id = ?`, id)
    return err
}

func expectOne(result sql.Result) error {
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrReservationNotFound
    }
    return nil
}

func nullIfEmpty(s string) any {
    if s == "" {
        return nil
    }
    return s
}
