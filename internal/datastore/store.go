// Package datastore exports the crawled dataset into SQLite, either a local
// database file or a remote Datasette instance.
package datastore

// Store is a destination for exported rows.
type Store interface {
	// Connect prepares the store for writes.
	Connect() error

	// CreateTable runs a schema script. Remote stores create tables on insert
	// and ignore it.
	CreateTable(schema string) error

	// BatchInsert inserts or replaces records in table.
	BatchInsert(database string, table string, records []map[string]any) error

	Close() error
}
