package results

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"grila/internal/config"
	"grila/internal/services"
)

// Store is the persistence and query boundary for grading results. Get,
// UpdateProcessingTime and Delete report services.ErrNotFound for unknown ids.
type Store interface {
	Put(ctx context.Context, rec *Record) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
	UpdateProcessingTime(ctx context.Context, id string, elapsed time.Duration) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter, page Page) (*ListResult, error)
	Stats(ctx context.Context, recent int) (*Stats, error)
	Close() error
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "results", "open", "config required", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "", config.StoreDriverSQLite:
		return OpenSQLite(cfg)
	case config.StoreDriverPostgres:
		return OpenPostgres(ctx, cfg, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "results", "open",
			fmt.Sprintf("unsupported store driver %q", cfg.Store.Driver), nil)
	}
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "results", "lookup", fmt.Sprintf("test result %s not found", id), nil)
}

func persistenceError(operation string, err error) error {
	return services.Wrap(services.ErrPersistence, "results", operation, "", err)
}
