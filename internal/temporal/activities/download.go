package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/daymade/tiktok-whisper/internal/media"
	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// Download fetches the source media into the run's scratch directory and
// reports its metadata. Missing or unsupported sources are terminal;
// transport hiccups are left to the step's retry policy.
func (a *Activities) Download(ctx context.Context, req contract.DownloadRequest) (contract.DownloadResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Downloading source", "runId", req.RunID, "source", req.Source)

	info, err := a.fetcher.Fetch(ctx, req.Source, a.runDir(req.RunID))
	if err != nil {
		switch {
		case errors.Is(err, media.ErrSourceNotFound):
			return contract.DownloadResult{}, contract.NewTerminal(contract.KindSourceUnavailable, err.Error(), err)
		case errors.Is(err, media.ErrUnsupportedSource):
			return contract.DownloadResult{}, contract.NewTerminal(contract.KindUnsupportedFormat, err.Error(), err)
		case errors.Is(err, media.ErrSourceUnreachable):
			return contract.DownloadResult{}, contract.NewTerminal(contract.KindSourceUnavailable, err.Error(), err)
		default:
			return contract.DownloadResult{}, contract.NewRetryable(contract.KindToolFailure, fmt.Sprintf("fetch failed: %v", err), err)
		}
	}

	duration := info.DurationSeconds
	if duration == 0 && a.prober != nil {
		if probed, err := a.prober.ProbeDuration(ctx, info.LocalPath); err == nil {
			duration = probed
		} else {
			logger.Warn("Duration probe failed", "runId", req.RunID, "error", err)
		}
	}

	logger.Info("Download complete",
		"runId", req.RunID,
		"path", info.LocalPath,
		"bytes", info.Bytes,
		"duration", duration)

	return contract.DownloadResult{
		LocalPath:       info.LocalPath,
		SourceID:        info.SourceID,
		Title:           info.Title,
		DurationSeconds: duration,
		Bytes:           info.Bytes,
	}, nil
}
