package preflight

import (
	"context"
	"path/filepath"

	"telephony/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results are informational and never fail the run.
	Optional bool
}

// RunAll executes every applicable check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckBusSocket(cfg))
	results = append(results, CheckBusConnect(ctx, cfg))
	results = append(results, CheckModemSlots(cfg)...)
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("Socket directory", filepath.Dir(cfg.Paths.SocketPath)))
	results = append(results, CheckBinaries(serviceRequirements())...)
	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
