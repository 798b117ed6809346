package docstoreutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/docstore/inmemory"
	"github.com/papercomputeco/folio/pkg/docstore/jsonfile"
	"github.com/papercomputeco/folio/pkg/docstore/libsql"
	"github.com/papercomputeco/folio/pkg/docstore/postgres"
	"github.com/papercomputeco/folio/pkg/docstore/sqlite"
)

type NewDocumentStoreOpts struct {
	ProviderType string

	// Path is the JSON file for the jsonfile driver and the database file
	// for sqlite.
	Path string

	// DatabaseURL is the connection string for the libsql and postgres
	// drivers.
	DatabaseURL string

	Logger *slog.Logger
}

func NewDocumentStore(o *NewDocumentStoreOpts) (docstore.Driver, error) {
	switch o.ProviderType {
	case "jsonfile":
		return jsonfile.NewDriver(jsonfile.Config{
			Path: o.Path,
		}, o.Logger)
	case "inmemory":
		return inmemory.NewDriver(), nil
	case "sqlite":
		return sqlite.NewSQLiteDriver(o.Path)
	case "libsql":
		return libsql.NewDriver(o.DatabaseURL)
	case "postgres":
		return postgres.NewDriver(context.Background(), o.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported document store provider: %s", o.ProviderType)
	}
}
