package workflows

import (
	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// assembleSuccess builds the terminal result from the Upload outcome plus
// metadata carried forward from earlier steps. Values already produced by
// an activity are passed through, never recomputed.
func assembleSuccess(req contract.PipelineRequest, dl contract.DownloadResult, tr contract.TranscribeResult, up contract.UploadResult) contract.PipelineResult {
	return contract.PipelineResult{
		RunID:              req.RunID,
		Status:             contract.StatusCompleted,
		PermanentLocator:   up.PermanentLocator,
		SourceID:           dl.SourceID,
		Title:              dl.Title,
		Language:           tr.Language,
		LanguageConfidence: tr.LanguageConfidence,
		DurationSeconds:    tr.DurationSeconds,
		Model:              tr.Model,
		ContentHash:        up.ContentHash,
	}
}

func assembleFailure(req contract.PipelineRequest, f *contract.StepFailure) contract.PipelineResult {
	return contract.PipelineResult{
		RunID:         req.RunID,
		Status:        contract.StatusFailed,
		FailedStep:    f.Step,
		FailureKind:   f.Kind,
		FailureDetail: f.Detail,
	}
}
