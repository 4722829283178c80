// Package cmd holds the shared wiring used by the fixflow binaries:
// persistence, event bus, and suspension queue construction from
// configuration values.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/fixlify/fixflow/pkg/persistence/file"
	"github.com/fixlify/fixflow/pkg/persistence/postgres"
)

// NewPersistence selects the storage backend from the database URL scheme:
// postgres:// (or postgresql://) connects to PostgreSQL, anything else is
// treated as a file-store root path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgres.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic("failed to initialize postgres persistence: " + err.Error())
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}
