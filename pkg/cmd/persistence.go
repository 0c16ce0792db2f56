package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ferrant/orchid/pkg/persistence"
	"github.com/ferrant/orchid/pkg/persistence/file"
	"github.com/ferrant/orchid/pkg/persistence/memory"
	"github.com/ferrant/orchid/pkg/persistence/postgresql"
)

// NewPersistence picks the store implementation from the database URL
// scheme: postgres://, file:// or memory://.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return store
	case strings.HasPrefix(databaseURL, "memory://"):
		return memory.NewPersistence()
	default:
		store, err := file.NewPersistence(databaseURL)
		if err != nil {
			panic(err)
		}

		return store
	}
}
