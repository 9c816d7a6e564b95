// Package cmd provides shared construction helpers for the voxflow
// binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/persistence/memory"
	"github.com/voxflow/voxflow/pkg/persistence/redis"
)

// NewPersistence builds a store from the database URL scheme. Redis is the
// production backend; anything else falls back to the in-memory store meant
// for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	if strings.HasPrefix(databaseURL, "redis://") || strings.HasPrefix(databaseURL, "rediss://") {
		store, err := redis.NewPersistence(ctx, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis: %w", err))
		}

		return store
	}

	logger.WarnContext(ctx, "No persistent database configured, using in-memory store")

	return memory.NewPersistence()
}
