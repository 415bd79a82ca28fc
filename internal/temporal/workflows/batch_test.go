package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

func TestBatchTranscribeAllSucceed(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TranscribePipelineWorkflow)

	mocks := &pipelineMocks{transcript: defaultTranscript()}
	mocks.register(env)

	env.ExecuteWorkflow(BatchTranscribeWorkflow, BatchRequest{
		BatchID:     "batch-1",
		Sources:     []string{"file://a.mp4", "file://b.mp4", "file://c.mp4"},
		Language:    "auto",
		MaxParallel: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result BatchResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, "batch-1", result.BatchID)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
	require.Len(t, result.Results, 3)
	for _, r := range result.Results {
		assert.Equal(t, contract.StatusCompleted, r.Status)
		assert.NotEmpty(t, r.PermanentLocator)
	}

	assert.Equal(t, 3, mocks.downloadCalls)
	assert.Equal(t, 3, mocks.uploadCalls)
}

func TestBatchTranscribeMixedOutcomes(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TranscribePipelineWorkflow)

	mocks := &pipelineMocks{transcript: defaultTranscript()}
	mocks.transcribeErr = contract.NewTerminal(contract.KindModelFailure, "model crashed", nil)
	mocks.register(env)

	env.ExecuteWorkflow(BatchTranscribeWorkflow, BatchRequest{
		BatchID: "batch-2",
		Sources: []string{"file://a.mp4", "file://b.mp4"},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result BatchResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
	for _, r := range result.Results {
		assert.Equal(t, contract.StatusFailed, r.Status)
		assert.Equal(t, contract.StepTranscribe, r.FailedStep)
	}
}
