package workflows

import (
	"fmt"

	"github.com/samber/lo"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// BatchRequest fans a set of sources out as independent pipeline runs,
// bounded by MaxParallel concurrently executing children.
type BatchRequest struct {
	BatchID      string   `json:"batch_id"`
	Sources      []string `json:"sources"`
	Language     string   `json:"language"`
	OutputFormat string   `json:"output_format,omitempty"`
	MaxParallel  int      `json:"max_parallel"`
}

type BatchResult struct {
	BatchID      string                    `json:"batch_id"`
	Total        int                       `json:"total"`
	SuccessCount int                       `json:"success_count"`
	FailureCount int                       `json:"failure_count"`
	Results      []contract.PipelineResult `json:"results"`
}

// BatchTranscribeWorkflow runs one child pipeline per source. Children
// share no state; a buffered channel acts as the concurrency semaphore.
func BatchTranscribeWorkflow(ctx workflow.Context, req BatchRequest) (BatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting batch transcription",
		"batchId", req.BatchID,
		"sources", len(req.Sources),
		"maxParallel", req.MaxParallel)

	if req.MaxParallel <= 0 {
		req.MaxParallel = 4
	}

	semaphore := workflow.NewBufferedChannel(ctx, req.MaxParallel)
	defer semaphore.Close()
	for i := 0; i < req.MaxParallel; i++ {
		semaphore.Send(ctx, struct{}{})
	}

	resultsChan := workflow.NewBufferedChannel(ctx, len(req.Sources))
	defer resultsChan.Close()

	for i, source := range req.Sources {
		i, source := i, source
		workflow.Go(ctx, func(ctx workflow.Context) {
			var token struct{}
			semaphore.Receive(ctx, &token)
			defer semaphore.Send(ctx, token)

			runID := fmt.Sprintf("%s-%d", req.BatchID, i)
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
				WorkflowID: fmt.Sprintf("pipeline-%s", runID),
				RetryPolicy: &temporal.RetryPolicy{
					MaximumAttempts: 1, // the pipeline handles its own step retries
				},
			})

			var result contract.PipelineResult
			err := workflow.ExecuteChildWorkflow(childCtx, TranscribePipelineWorkflow, contract.PipelineRequest{
				RunID:        runID,
				Source:       source,
				Language:     req.Language,
				OutputFormat: req.OutputFormat,
			}).Get(childCtx, &result)
			if err != nil {
				result = contract.PipelineResult{
					RunID:         runID,
					Status:        contract.StatusFailed,
					FailureKind:   contract.KindToolFailure,
					FailureDetail: err.Error(),
				}
			}
			resultsChan.Send(ctx, result)
		})
	}

	results := make([]contract.PipelineResult, 0, len(req.Sources))
	for range req.Sources {
		var result contract.PipelineResult
		resultsChan.Receive(ctx, &result)
		results = append(results, result)
	}

	succeeded := lo.CountBy(results, func(r contract.PipelineResult) bool {
		return r.Status == contract.StatusCompleted
	})

	logger.Info("Batch completed",
		"batchId", req.BatchID,
		"succeeded", succeeded,
		"failed", len(results)-succeeded)

	return BatchResult{
		BatchID:      req.BatchID,
		Total:        len(results),
		SuccessCount: succeeded,
		FailureCount: len(results) - succeeded,
		Results:      results,
	}, nil
}
