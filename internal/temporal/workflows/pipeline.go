// Package workflows contains the durable pipeline coordinators. Workflow
// code must stay deterministic: every duration, language and timestamp in
// the result comes from an activity payload, never from the coordinator.
package workflows

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// QueryStatus is the query name exposing the live state of a run.
const QueryStatus = "status"

// pipelineRun is the mutable execution record for one request. The
// workflow goroutine is its single writer.
type pipelineRun struct {
	req       contract.PipelineRequest
	state     string
	artifacts []contract.Artifact
	result    *contract.PipelineResult
}

// TranscribePipelineWorkflow executes Download → Convert → Transcribe →
// Upload in order. Each step's output feeds the next; artifacts are
// recorded the instant a step succeeds so that a later failure can still
// compensate everything produced so far. Any terminal failure runs Cleanup
// over the recorded artifacts and the workflow returns a result naming the
// original failing step and kind.
func TranscribePipelineWorkflow(ctx workflow.Context, req contract.PipelineRequest) (contract.PipelineResult, error) {
	logger := workflow.GetLogger(ctx)

	if req.RunID == "" {
		req.RunID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	if req.Language == "" {
		req.Language = "auto"
	}
	if req.OutputFormat == "" {
		req.OutputFormat = "txt"
	}
	if req.SampleRateHz == 0 {
		req.SampleRateHz = defaultSampleRateHz
	}

	run := &pipelineRun{req: req, state: contract.StateDownloading}
	if err := workflow.SetQueryHandler(ctx, QueryStatus, run.status); err != nil {
		return contract.PipelineResult{}, err
	}

	logger.Info("Starting transcription pipeline", "runId", req.RunID, "source", req.Source)

	var download contract.DownloadResult
	if f := run.execute(ctx, contract.StepDownload, contract.DownloadRequest{
		RunID:   req.RunID,
		Source:  req.Source,
		Quality: req.Quality,
	}, &download, func() *contract.Artifact {
		return &contract.Artifact{Step: contract.StepDownload, LocalPath: download.LocalPath, Bytes: download.Bytes}
	}); f != nil {
		return run.fail(ctx, f), nil
	}

	run.state = contract.StateConverting
	var converted contract.ConvertResult
	if f := run.execute(ctx, contract.StepConvert, contract.ConvertRequest{
		RunID:        req.RunID,
		LocalPath:    download.LocalPath,
		TargetFormat: defaultTargetFormat,
		SampleRateHz: req.SampleRateHz,
	}, &converted, func() *contract.Artifact {
		return &contract.Artifact{Step: contract.StepConvert, LocalPath: converted.LocalPath, Bytes: converted.Bytes}
	}); f != nil {
		return run.fail(ctx, f), nil
	}

	run.state = contract.StateTranscribing
	var transcript contract.TranscribeResult
	if f := run.execute(ctx, contract.StepTranscribe, contract.TranscribeRequest{
		RunID:     req.RunID,
		LocalPath: converted.LocalPath,
		Language:  req.Language,
	}, &transcript, nil); f != nil {
		return run.fail(ctx, f), nil
	}

	run.state = contract.StateUploading
	var upload contract.UploadResult
	if f := run.execute(ctx, contract.StepUpload, contract.UploadRequest{
		RunID:      req.RunID,
		Key:        transcriptKey(req.RunID, req.OutputFormat),
		Format:     req.OutputFormat,
		Transcript: transcript,
		Metadata: map[string]string{
			"source_id": download.SourceID,
			"title":     download.Title,
			"language":  transcript.Language,
			"model":     transcript.Model,
		},
	}, &upload, nil); f != nil {
		return run.fail(ctx, f), nil
	}

	// The canonical transcript survives under its permanent key; the
	// transient download/convert artifacts are removed on the spot.
	run.cleanup(ctx)

	run.state = contract.StateCompleted
	result := assembleSuccess(req, download, transcript, upload)
	run.result = &result

	logger.Info("Pipeline completed",
		"runId", req.RunID,
		"locator", upload.PermanentLocator,
		"language", transcript.Language)

	return result, nil
}

// execute is the step executor: it applies the step's timeout/heartbeat/
// retry options, invokes the activity, classifies any error into the
// failure taxonomy, and on success records the produced artifact on the
// run before control returns to the coordinator.
func (r *pipelineRun) execute(ctx workflow.Context, step string, req, res interface{}, artifact func() *contract.Artifact) *contract.StepFailure {
	actx := workflow.WithActivityOptions(ctx, optionsFor(step, r.req.Policies))
	if err := workflow.ExecuteActivity(actx, step, req).Get(actx, res); err != nil {
		return contract.Classify(step, err)
	}
	if artifact != nil {
		if a := artifact(); a != nil {
			r.artifacts = append(r.artifacts, *a)
		}
	}
	return nil
}

// fail runs compensation over everything recorded so far, then builds the
// terminal failure result carrying the original failing step and kind.
func (r *pipelineRun) fail(ctx workflow.Context, f *contract.StepFailure) contract.PipelineResult {
	logger := workflow.GetLogger(ctx)
	logger.Error("Pipeline step failed",
		"runId", r.req.RunID,
		"step", f.Step,
		"kind", f.Kind,
		"detail", f.Detail)

	if len(r.artifacts) > 0 {
		r.state = contract.StateCompensating
		r.cleanup(ctx)
	}

	r.state = contract.StateFailed
	result := assembleFailure(r.req, f)
	r.result = &result
	return result
}

// cleanup invokes the Cleanup activity over the recorded artifacts, once
// each, on a disconnected context so it still runs after a cancellation.
// Cleanup failures are logged and never mask the pipeline outcome.
func (r *pipelineRun) cleanup(ctx workflow.Context) {
	if len(r.artifacts) == 0 {
		return
	}
	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()
	cctx := workflow.WithActivityOptions(dctx, cleanupOptions())

	var res contract.CleanupResult
	err := workflow.ExecuteActivity(cctx, contract.StepCleanup, contract.CleanupRequest{
		RunID:     r.req.RunID,
		Artifacts: r.artifacts,
	}).Get(cctx, &res)
	if err != nil {
		workflow.GetLogger(ctx).Error("Cleanup failed", "runId", r.req.RunID, "error", err)
	} else if res.Failed > 0 {
		workflow.GetLogger(ctx).Warn("Cleanup left artifacts behind",
			"runId", r.req.RunID, "removed", res.Removed, "failed", res.Failed)
	}
	r.artifacts = nil
}

func (r *pipelineRun) status() (contract.RunStatus, error) {
	return contract.RunStatus{
		RunID:     r.req.RunID,
		State:     r.state,
		Artifacts: r.artifacts,
		Result:    r.result,
	}, nil
}

func transcriptKey(runID, format string) string {
	return fmt.Sprintf("transcripts/%s/transcript.%s", runID, format)
}
