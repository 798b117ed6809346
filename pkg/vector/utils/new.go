package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/flat"
	"github.com/papercomputeco/folio/pkg/vector/qdrant"
	"github.com/papercomputeco/folio/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	Dimension    int

	// Path is the index directory for the flat driver and the database
	// file for sqlitevec.
	Path string

	// Host, Port, APIKey, UseTLS and Collection configure the qdrant driver.
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string

	Logger *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "flat":
		return flat.NewDriver(flat.Config{
			Dimension: o.Dimension,
			Path:      o.Path,
		}, o.Logger)
	case "sqlitevec":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:    o.Path,
			Dimension: o.Dimension,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewQdrantDriver(qdrant.Config{
			Host:       o.Host,
			Port:       o.Port,
			APIKey:     o.APIKey,
			UseTLS:     o.UseTLS,
			Collection: o.Collection,
			Dimension:  o.Dimension,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
