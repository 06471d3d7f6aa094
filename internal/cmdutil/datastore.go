// Package cmdutil holds helpers shared by the CLI commands.
package cmdutil

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/librarylookup/internal/config"
	"github.com/lepinkainen/librarylookup/internal/datastore"
)

// DatabaseName is the Datasette database rows are exported to.
const DatabaseName = "librarylookup"

// NewStore returns the export destination selected by the datasette config,
// or nil when export is disabled.
func NewStore() (datastore.Store, error) {
	if !config.DatasetteEnabled {
		return nil, nil
	}
	switch config.DatasetteMode {
	case "", "local":
		return datastore.NewSQLiteStore(config.DatasetteDBFile), nil
	case "remote":
		return datastore.NewDatasetteClient(config.DatasetteURL, config.DatasetteToken), nil
	default:
		return nil, fmt.Errorf("invalid Datasette mode: %s", config.DatasetteMode)
	}
}

// WriteToDatastore maps records to rows and writes them to table when the
// datasette export is enabled. desc names the records in log messages.
func WriteToDatastore[T any](records []T, schema, table, desc string, mapper func(T) map[string]any) error {
	store, err := NewStore()
	if err != nil || store == nil {
		return err
	}
	return WriteTo(store, records, schema, table, desc, mapper)
}

// WriteTo writes records to an explicit store, connecting and closing it.
func WriteTo[T any](store datastore.Store, records []T, schema, table, desc string, mapper func(T) map[string]any) (err error) {
	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to datastore: %w", err)
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	if err := store.CreateTable(schema); err != nil {
		return fmt.Errorf("failed to create %s table: %w", table, err)
	}

	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = mapper(r)
	}
	if err := store.BatchInsert(DatabaseName, table, rows); err != nil {
		return fmt.Errorf("failed to insert %s: %w", desc, err)
	}

	slog.Info("Exported to datastore", "what", desc, "table", table, "count", len(rows))
	return nil
}
