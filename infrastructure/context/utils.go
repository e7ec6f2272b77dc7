// Package context provides shared timeout helpers for the categorizer.
package context

import (
	"context"
	"time"
)

const (
	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultPingTimeout is the default timeout for ping/health check operations
	DefaultPingTimeout = 5 * time.Second
)

// WithShutdownTimeout creates a context with default shutdown timeout.
// Shutdown must outlive the cancelled run context, so it starts from Background.
func WithShutdownTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultShutdownTimeout)
}

// WithPingTimeout derives a context with the default ping timeout from parent.
func WithPingTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultPingTimeout)
}
