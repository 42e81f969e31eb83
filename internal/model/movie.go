package model

import "time"

// Movie is the read-only view of a film as the reservation engine
// needs it.  HallID is nil when the movie has not been assigned to a
// hall yet.
type Movie struct {
    ID          uint64      // movies.id
    Title       string      // movies.title
    DurationMin uint32      // movies.duration_min
    Genres      []string    // movies.genres (comma separated)
    HallID      *uint64     // movies.hall_id (nullable)
    InTheaters  bool        // movies.in_theaters
    Showtimes   []time.Time // movie_showtimes.starts_at
    CreatedAt   time.Time   // movies.created_at
    UpdatedAt   time.Time   // movies.updated_at
}
