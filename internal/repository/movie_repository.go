package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/cinema-reservation/internal/model"
)

// MovieRepo provides read access to movies and their showtimes.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo returns a MovieRepo bound to the given database.
func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

const movieColumns = `id, title, duration_min, genres, hall_id, in_theaters, created_at, updated_at`

func scanMovie(sc interface{ Scan(...any) error }) (*model.Movie, error) {
	var (
		m      model.Movie
		genres string
		hallID sql.NullInt64
	)
	if err := sc.Scan(&m.ID, &m.Title, &m.DurationMin, &genres, &hallID, &m.InTheaters, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Genres = splitGenres(genres)
	if hallID.Valid {
		id := uint64(hallID.Int64)
		m.HallID = &id
	}
	return &m, nil
}

func splitGenres(s string) []string {
	out := make([]string, 0)
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// List returns movies ordered by title.  When inTheatersOnly is set only
// movies currently showing are returned.  Showtimes are not loaded.
func (r *MovieRepo) List(ctx context.Context, inTheatersOnly bool) ([]*model.Movie, error) {
	q := `SELECT ` + movieColumns + ` FROM movies`
	if inTheatersOnly {
		q += ` WHERE in_theaters = 1`
	}
	q += ` ORDER BY title, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Movie, 0)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetByID returns a movie with its showtimes in ascending order.  It
// returns ErrMovieNotFound when no row matches.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT starts_at FROM movie_showtimes WHERE movie_id = ? ORDER BY starts_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	m.Showtimes = make([]time.Time, 0)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		m.Showtimes = append(m.Showtimes, t.UTC())
	}
	return m, rows.Err()
}
