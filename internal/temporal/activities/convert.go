package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/daymade/tiktok-whisper/internal/media"
	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// Convert normalizes the downloaded media to mono audio at the requested
// sample rate. Codec and input problems are terminal; a missing or
// crashing tool is retryable.
func (a *Activities) Convert(ctx context.Context, req contract.ConvertRequest) (contract.ConvertResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Converting media",
		"runId", req.RunID,
		"input", req.LocalPath,
		"format", req.TargetFormat,
		"sampleRate", req.SampleRateHz)

	destPath, bytes, err := a.converter.Convert(ctx, req.LocalPath, media.ConvertSpec{
		TargetFormat: req.TargetFormat,
		SampleRateHz: req.SampleRateHz,
		Channels:     1,
	}, a.runDir(req.RunID))
	if err != nil {
		switch {
		case errors.Is(err, media.ErrUnsupportedCodec):
			return contract.ConvertResult{}, contract.NewTerminal(contract.KindUnsupportedFormat, err.Error(), err)
		case errors.Is(err, media.ErrCorruptInput):
			return contract.ConvertResult{}, contract.NewTerminal(contract.KindUnsupportedFormat, err.Error(), err)
		default:
			return contract.ConvertResult{}, contract.NewRetryable(contract.KindToolFailure, fmt.Sprintf("conversion failed: %v", err), err)
		}
	}

	logger.Info("Conversion complete", "runId", req.RunID, "output", destPath, "bytes", bytes)
	return contract.ConvertResult{LocalPath: destPath, Bytes: bytes}, nil
}
