package preflight

import (
	"context"

	"camrec/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks that need the assembler are skipped in relay mode.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.RelayOnly() {
		return results
	}

	results = append(results,
		CheckDirectoryAccess("Recordings directory", cfg.Paths.RecordingsDir),
		CheckScratchWritable(cfg.Paths.ScratchDir),
		CheckEncoder(ctx, cfg.Encoder.Binary),
	)
	return results
}
