package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/cinema-reservation/internal/model"
)

// Cancellation policy.
const (
	CancellationCutoff = 5 * time.Minute
	FeeWindow          = 24 * time.Hour
	FeePercent         = 10
)

// NormalizeShowtime validates an "H:MM" or "HH:MM" token and returns it
// with a two-digit hour.
func NormalizeShowtime(s string) (string, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return "", invalid("showtime", "must be HH:MM, got %q", s)
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", invalid("showtime", "must be HH:MM, got %q", s)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp and returns
// midnight of that calendar day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalid("date", "is required")
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		ts, err2 := time.Parse(time.RFC3339, s)
		if err2 != nil {
			return time.Time{}, invalid("date", "must be YYYY-MM-DD, got %q", s)
		}
		t = ts.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// StartsAt combines the show day and a normalized showtime token.
func StartsAt(day time.Time, showtime string) time.Time {
	var h, m int
	fmt.Sscanf(showtime, "%d:%d", &h, &m)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

// DayWindow returns the first and last instants of day.  A day is not
// always 24h long in zones with daylight saving.
func DayWindow(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	loc := day.Location()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
	return start, end
}

// ScreeningKey is the lock key of a screening.
func ScreeningKey(s model.Screening) string {
	return fmt.Sprintf("screening:%d:%s:%s", s.HallID, s.Showtime, s.Date.Format("2006-01-02"))
}

// CancellationDeadline is the last instant before which a reserved
// reservation may be cancelled.
func CancellationDeadline(showtime time.Time) time.Time {
	return showtime.Add(-CancellationCutoff)
}

// RefundAmount applies the late-cancellation fee: less than FeeWindow
// before the showtime the refund is reduced by FeePercent, floored to
// whole minor units.
func RefundAmount(amount int64, showtime, now time.Time) int64 {
	if showtime.Sub(now) < FeeWindow {
		return amount * (100 - FeePercent) / 100
	}
	return amount
}
