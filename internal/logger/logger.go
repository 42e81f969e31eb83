// Package logger wraps log/slog with the fields this service logs
// most: request ids, users, reservations and errors.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout.  env "dev" selects the text
// handler, anything else JSON.  level is one of debug, info, warn or
// error.
func New(env, level string) *Logger {
	return NewWithWriter(os.Stdout, env, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, env, level string) *Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(env, "dev") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards everything.  Tests use it.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID uint64) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Uint64("user_id", userID))}
}

// WithReservation adds the reservation id to logger context.
func (l *Logger) WithReservation(id uint64) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Uint64("reservation_id", id))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// WithComponent tags every record with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", name))}
}

// LogHTTPRequest logs a completed HTTP request.
func (l *Logger) LogHTTPRequest(ctx context.Context, method, uri string, status int, latency time.Duration, ip, requestID string, err error) {
	attrs := []any{
		slog.String("method", method),
		slog.String("uri", uri),
		slog.Int("status", status),
		slog.Duration("latency", latency),
		slog.String("ip", ip),
		slog.String("request_id", requestID),
	}
	if err != nil {
		l.Logger.ErrorContext(ctx, "HTTP Error", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	l.Logger.InfoContext(ctx, "HTTP Request", attrs...)
}

// LogTransition logs a reservation status change.
func (l *Logger) LogTransition(ctx context.Context, reservationID uint64, from, to, reason string) {
	l.Logger.InfoContext(ctx, "Reservation Transition",
		slog.Uint64("reservation_id", reservationID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("reason", reason),
	)
}
