package preflight

import (
	"context"

	"furrow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks that depend on optional configuration are skipped when the
// corresponding setting is empty.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Queue.MinFreeDiskMiB > 0 {
		results = append(results, CheckDiskHeadroom("Queue storage", cfg.Paths.DataDir, cfg.Queue.MinFreeDiskMiB))
	}

	results = append(results, CheckAPIConfig(cfg.API))

	if cfg.Connectivity.ProbeURL != "" {
		results = append(results, CheckReachability(ctx, cfg.Connectivity))
	}

	return results
}
