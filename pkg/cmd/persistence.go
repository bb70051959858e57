package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/stockflow/pkg/persistence"
	"github.com/dukex/stockflow/pkg/persistence/file"
	"github.com/dukex/stockflow/pkg/persistence/postgresql"
)

var ErrUnsupportedPersistence = errors.New("unsupported persistence provider")

// NewPersistence opens the backend selected by the URL scheme: file://<dir> or postgres://.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, rest := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgresql persistence: %w", err)
		}

		return p, nil
	case "file":
		if rest == "" {
			return nil, fmt.Errorf("%w: file persistence needs a directory", ErrUnsupportedPersistence)
		}

		return file.NewPersistence(rest), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPersistence, provider)
	}
}

// parsePersistenceProvider splits a database URL into its scheme and remainder. A URL without
// scheme is a file directory.
func parsePersistenceProvider(databaseURL string) (string, string) {
	provider, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", databaseURL
	}

	return strings.ToLower(provider), rest
}
