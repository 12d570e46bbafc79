package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/KlikkAI/reporunner-sub008/pkg/persistence"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence/file"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence/postgresql"
)

// NewPersistence picks the storage backend from the database URL scheme.
// postgres:// selects PostgreSQL; anything else falls back to the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseScheme(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
