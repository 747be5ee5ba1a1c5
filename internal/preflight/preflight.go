package preflight

import (
	"context"

	"proctor/internal/config"
	"proctor/internal/vision"
)

// Result reports the outcome of a single preflight check. Optional results
// never block startup.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	results = append(results, CheckVisionBackend())
	if vision.Available {
		if cfg.Analysis.FaceEnabled {
			results = append(results, CheckModelFile("Face cascade", cfg.Analysis.FaceCascadePath))
		}
		if cfg.Analysis.GazeEnabled {
			results = append(results, CheckModelFile("Eye cascade", cfg.Analysis.EyeCascadePath))
		}
	}

	if cfg.Broadcast.RedisAddr != "" {
		results = append(results, CheckRedis(ctx, cfg.Broadcast))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
