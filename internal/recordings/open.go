package recordings

import (
	"context"
	"fmt"

	"camrec/internal/config"
)

// Open returns the Sink selected by metadata.driver.
func Open(ctx context.Context, cfg *config.Config) (Sink, error) {
	switch cfg.Metadata.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.Metadata.PostgresDSN)
	case config.DriverSQLite, "":
		return OpenSQLite(ctx, cfg.Metadata.SQLitePath)
	default:
		return nil, fmt.Errorf("metadata driver %q not supported", cfg.Metadata.Driver)
	}
}
