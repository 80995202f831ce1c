package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acctcare/careops/pkg/persistence"
	"github.com/acctcare/careops/pkg/persistence/file"
	"github.com/acctcare/careops/pkg/persistence/postgresql"
)

// NewPersistence selects the store backend from the database URL scheme:
// postgres URLs get the SQL backend, anything else falls back to the file
// store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	scheme, _, _ := strings.Cut(databaseURL, "://")

	switch scheme {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgres persistence: %w", err))
		}

		return store
	default:
		return file.NewPersistence(databaseURL)
	}
}
