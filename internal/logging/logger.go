// Package logging defines the structured logger used by keevault services.
// The only implementation wraps log/slog; services depend on the interface
// so tests can pass a discarding logger.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are key-value pairs:
//
//	log.Info(ctx, "vault unlocked", "entries", n, "groups", m)
//
// Secrets (passphrases, keys, OTP secrets) must never be passed as values.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
