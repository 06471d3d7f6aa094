package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/lepinkainen/librarylookup/internal/config"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: tint" required:""`
}

func (i *InvalidateCacheCmd) Run() error {
	tableName, ok := Sources[i.Source]
	if !ok {
		valid := slices.Sorted(maps.Keys(Sources))
		return fmt.Errorf("invalid cache source '%s'; valid sources are: %s", i.Source, strings.Join(valid, ", "))
	}

	slog.Info("Invalidating cache", "source", i.Source, "database", config.CacheDBFile)

	db, err := Open(config.CacheDBFile, config.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	rowsDeleted, err := db.InvalidateSource(tableName)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to invalidate cache: %w", err), db.Close())
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return db.Close()
}
