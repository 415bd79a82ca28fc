package activities

import (
	"context"
	"os"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// Cleanup removes the listed transient artifacts, best-effort. Individual
// failures are logged and counted, never escalated: compensation must not
// mask the pipeline failure that triggered it.
func (a *Activities) Cleanup(ctx context.Context, req contract.CleanupRequest) (contract.CleanupResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Cleaning up artifacts", "runId", req.RunID, "count", len(req.Artifacts))

	var result contract.CleanupResult
	for _, artifact := range req.Artifacts {
		switch {
		case artifact.LocalPath != "":
			if !a.insideWorkDir(artifact.LocalPath) {
				logger.Warn("Refusing to remove file outside work dir", "path", artifact.LocalPath)
				result.Failed++
				continue
			}
			if err := os.Remove(artifact.LocalPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("Failed to remove local artifact",
					"runId", req.RunID, "step", artifact.Step, "path", artifact.LocalPath, "error", err)
				result.Failed++
				continue
			}
			result.Removed++

		case artifact.ObjectKey != "":
			if err := a.store.Remove(ctx, artifact.ObjectKey); err != nil {
				logger.Warn("Failed to remove object artifact",
					"runId", req.RunID, "step", artifact.Step, "key", artifact.ObjectKey, "error", err)
				result.Failed++
				continue
			}
			result.Removed++
		}
	}

	// Drop the run's scratch directory once it is empty.
	if dir := a.runDir(req.RunID); req.RunID != "" {
		_ = os.Remove(dir)
	}

	logger.Info("Cleanup finished", "runId", req.RunID, "removed", result.Removed, "failed", result.Failed)
	return result, nil
}

// insideWorkDir guards against removing files the pipeline did not create.
func (a *Activities) insideWorkDir(path string) bool {
	return strings.HasPrefix(path, a.workDir+string(os.PathSeparator)) || path == a.workDir
}
