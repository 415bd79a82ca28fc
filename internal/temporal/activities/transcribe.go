package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/daymade/tiktok-whisper/internal/speech"
	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// heartbeatInterval must stay well inside the step's heartbeat timeout so
// a slow-but-alive transcription is never mistaken for a stalled one.
const heartbeatInterval = 10 * time.Second

// Transcribe runs speech-to-text over the normalized file, heartbeating
// while the engine works. Engine availability problems are retryable;
// decode failures are terminal.
func (a *Activities) Transcribe(ctx context.Context, req contract.TranscribeRequest) (contract.TranscribeResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Starting transcription", "runId", req.RunID, "input", req.LocalPath, "language", req.Language)

	activity.RecordHeartbeat(ctx, fmt.Sprintf("transcribing %s", req.RunID))

	type outcome struct {
		result speech.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := a.engine.Transcribe(ctx, req.LocalPath, speech.Options{
			Language: req.Language,
			VAD:      a.vad,
		})
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-done:
			if out.err != nil {
				return contract.TranscribeResult{}, classifyEngineError(out.err)
			}
			logger.Info("Transcription complete",
				"runId", req.RunID,
				"language", out.result.Language,
				"segments", len(out.result.Segments),
				"duration", out.result.DurationSeconds)
			return toTranscribeResult(out.result), nil

		case <-ticker.C:
			activity.RecordHeartbeat(ctx, fmt.Sprintf("still transcribing %s", req.RunID))

		case <-ctx.Done():
			return contract.TranscribeResult{}, ctx.Err()
		}
	}
}

func classifyEngineError(err error) error {
	switch {
	case errors.Is(err, speech.ErrDecode):
		return contract.NewTerminal(contract.KindModelFailure, err.Error(), err)
	case errors.Is(err, speech.ErrModelUnavailable):
		return contract.NewRetryable(contract.KindModelFailure, err.Error(), err)
	default:
		return contract.NewRetryable(contract.KindModelFailure, fmt.Sprintf("transcription failed: %v", err), err)
	}
}

func toTranscribeResult(r speech.Result) contract.TranscribeResult {
	segments := make([]contract.TranscriptSegment, 0, len(r.Segments))
	for _, s := range r.Segments {
		segments = append(segments, contract.TranscriptSegment{
			Start:        s.Start,
			End:          s.End,
			Text:         s.Text,
			AvgLogprob:   s.AvgLogprob,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return contract.TranscribeResult{
		Text:               r.Text,
		Language:           r.Language,
		LanguageConfidence: r.LanguageConfidence,
		DurationSeconds:    r.DurationSeconds,
		Segments:           segments,
		Model:              r.Model,
	}
}
