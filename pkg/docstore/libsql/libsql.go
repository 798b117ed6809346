// Package libsql provides a document store backed by libSQL, either a local
// database file or a remote Turso instance.
package libsql

import (
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/papercomputeco/folio/pkg/docstore/sqlstore"
)

// Driver implements docstore.Driver using libSQL.
type Driver struct {
	*sqlstore.Store
}

// NewDriver creates a new libSQL-backed document store. The dbURL is either
// a local file URL like "file:./folio.db" or a remote URL like
// "libsql://dbname-org.turso.io?authToken=...".
func NewDriver(dbURL string) (*Driver, error) {
	db, err := sql.Open("libsql", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Driver{Store: &sqlstore.Store{DB: db}}

	if err := d.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}
