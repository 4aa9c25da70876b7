package sqldb

import (
	"context"
	"log/slog"
)

// NewMemoryRepository creates an in-memory SQLite repository for testing.
// Caller must close it when done.
func NewMemoryRepository() (*Repository, error) {
	return Open(context.Background(), "sqlite", ":memory:",
		WithConnectRetry(1, 0),
		WithLogger(slog.Default()))
}
