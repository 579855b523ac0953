// Package cmd provides shared construction helpers for the binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/auditflow/auditflow/pkg/persistence"
	"github.com/auditflow/auditflow/pkg/persistence/memory"
	"github.com/auditflow/auditflow/pkg/persistence/postgresql"
)

// NewPersistence creates the persistence layer for the given database URL.
// A postgres URL selects PostgreSQL; anything else falls back to the
// in-memory store for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize PostgreSQL persistence", "error", err)
			panic(err)
		}

		return p
	default:
		logger.WarnContext(ctx, "Using in-memory persistence, data will not survive restarts")

		return memory.NewPersistence()
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	return parts[0]
}
