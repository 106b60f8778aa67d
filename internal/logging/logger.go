// Package logging defines the structured-logging interface the rest of the
// service depends on, keeping the concrete backend swappable.
package logging

import "context"

// Logger is a leveled, context-aware logger. Variadic args are alternating
// key-value pairs, slog style:
//
//	log.Info(ctx, "migrations applied", "count", n)
type Logger interface {
	// Debug logs fine-grained diagnostics, usually disabled outside
	// development.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs normal operational events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but recoverable conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger carrying the given key-value pairs on
	// every record.
	With(args ...any) Logger
}
