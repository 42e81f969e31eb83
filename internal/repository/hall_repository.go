package repository // repository holds data access logic for domain entities

import (
	"context"      // context is used to manage deadlines and cancellation
	"database/sql" // sql provides DB primitives
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-reservation/internal/model"
)

// HallRepo provides read access to halls and their seat layouts, plus
// the seeding used on first start.
type HallRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

// List returns all halls ordered by id without their seats.
func (r *HallRepo) List(ctx context.Context) ([]*model.Hall, error) {
	const q = `SELECT id, name, total_seats, seat_price_cents, created_at, updated_at
               FROM halls
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Hall, 0)
	for rows.Next() {
		h := new(model.Hall)
		if err := rows.Scan(&h.ID, &h.Name, &h.TotalSeats, &h.SeatPriceCents, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetByID retrieves a hall with its ordered seat layout.  It returns
// ErrHallNotFound when no row is found.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.Hall, error) {
	const q = `SELECT id, name, total_seats, seat_price_cents, created_at, updated_at FROM halls WHERE id = ?`
	var h model.Hall
	err := r.db.QueryRowContext(ctx, q, id).Scan(&h.ID, &h.Name, &h.TotalSeats, &h.SeatPriceCents, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHallNotFound
		}
		return nil, err
	}

	// Seats are ordered by row then number so availability maps render
	// in layout order.
	const seatQ = `SELECT id, hall_id, row_label, seat_number, price_cents
                   FROM hall_seats
                   WHERE hall_id = ?
                   ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, seatQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	h.Seats = make([]model.HallSeat, 0, h.TotalSeats)
	for rows.Next() {
		var s model.HallSeat
		if err := rows.Scan(&s.ID, &s.HallID, &s.Row, &s.Number, &s.PriceCents); err != nil {
			return nil, err
		}
		h.Seats = append(h.Seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &h, nil
}

// SeedLayout describes the default halls created on an empty database.
type SeedLayout struct {
	Halls          int
	Rows           []string
	SeatsPerRow    uint32
	SeatPriceCents uint32
}

// DefaultSeedLayout is six halls of rows A–G with eleven seats each.
var DefaultSeedLayout = SeedLayout{
	Halls:          6,
	Rows:           []string{"A", "B", "C", "D", "E", "F", "G"},
	SeatsPerRow:    11,
	SeatPriceCents: model.DefaultSeatPriceCents,
}

// Seed creates the halls described by layout when the halls table is
// empty.  It returns the number of halls created.
func (r *HallRepo) Seed(ctx context.Context, layout SeedLayout) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM halls`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	created := 0
	err := withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		total := uint32(len(layout.Rows)) * layout.SeatsPerRow
		for i := 1; i <= layout.Halls; i++ {
			res, err := q.ExecContext(ctx,
				`INSERT INTO halls (name, total_seats, seat_price_cents) VALUES (?, ?, ?)`,
				fmt.Sprintf("Hall %d", i), total, layout.SeatPriceCents)
			if err != nil {
				return err
			}
			hallID, err := res.LastInsertId()
			if err != nil {
				return err
			}

			query := `INSERT INTO hall_seats (hall_id, row_label, seat_number, price_cents) VALUES `
			args := make([]any, 0, total*4)
			n := 0
			for _, row := range layout.Rows {
				for num := uint32(1); num <= layout.SeatsPerRow; num++ {
					if n > 0 {
						query += ","
					}
					query += "(?, ?, ?, ?)"
					args = append(args, hallID, row, num, layout.SeatPriceCents)
					n++
				}
			}
			if n > 0 {
				if _, err := q.ExecContext(ctx, query, args...); err != nil {
					return err
				}
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
