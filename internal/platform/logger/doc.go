// Package logger configures the application's slog-based JSON logging and
// propagates scoped loggers through context.
package logger
