package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/johncmanuel/isabot/internal/config"
)

// Open constructs the RecordStore backend selected by configuration.
func Open(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (RecordStore, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(&cfg.Redis, logger)
	case "postgres":
		return NewPostgres(ctx, &cfg.Postgres, logger)
	case "memory":
		logger.Warn("using in-memory store, records do not survive restarts")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
