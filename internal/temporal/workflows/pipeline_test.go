package workflows

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// pipelineMocks registers controllable stand-ins for the five activities
// and records every invocation.
type pipelineMocks struct {
	mu              sync.Mutex
	downloadCalls   int
	convertCalls    int
	transcribeCalls int
	uploadCalls     int
	cleanupCalls    int
	cleanedUp       []contract.Artifact

	downloadErr   error
	convertErr    error
	transcribeErr error
	uploadErr     error
	cleanupErr    error

	transcript contract.TranscribeResult
}

func defaultTranscript() contract.TranscribeResult {
	return contract.TranscribeResult{
		Text:               "hello world",
		Language:           "en",
		LanguageConfidence: 0.98,
		DurationSeconds:    12.5,
		Segments: []contract.TranscriptSegment{
			{Start: 0.0, End: 3.2, Text: "hello world", AvgLogprob: -0.2, NoSpeechProb: 0.01},
		},
		Model: "whisper-large-v3",
	}
}

func (m *pipelineMocks) register(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(func(ctx context.Context, req contract.DownloadRequest) (contract.DownloadResult, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.downloadCalls++
		if m.downloadErr != nil {
			return contract.DownloadResult{}, m.downloadErr
		}
		return contract.DownloadResult{
			LocalPath:       "/tmp/v2t-pipeline/" + req.RunID + "/sample.mp4",
			SourceID:        "src-1",
			Title:           "sample",
			DurationSeconds: 12.5,
			Bytes:           2048,
		}, nil
	}, activity.RegisterOptions{Name: contract.StepDownload})

	env.RegisterActivityWithOptions(func(ctx context.Context, req contract.ConvertRequest) (contract.ConvertResult, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.convertCalls++
		if m.convertErr != nil {
			return contract.ConvertResult{}, m.convertErr
		}
		return contract.ConvertResult{
			LocalPath: "/tmp/v2t-pipeline/" + req.RunID + "/sample_16000hz.wav",
			Bytes:     1024,
		}, nil
	}, activity.RegisterOptions{Name: contract.StepConvert})

	env.RegisterActivityWithOptions(func(ctx context.Context, req contract.TranscribeRequest) (contract.TranscribeResult, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.transcribeCalls++
		if m.transcribeErr != nil {
			return contract.TranscribeResult{}, m.transcribeErr
		}
		return m.transcript, nil
	}, activity.RegisterOptions{Name: contract.StepTranscribe})

	env.RegisterActivityWithOptions(func(ctx context.Context, req contract.UploadRequest) (contract.UploadResult, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.uploadCalls++
		if m.uploadErr != nil {
			return contract.UploadResult{}, m.uploadErr
		}
		return contract.UploadResult{
			PermanentLocator: "minio://v2t/" + req.Key,
			Bytes:            int64(len(req.Transcript.Text)),
			ContentHash:      "abc123",
		}, nil
	}, activity.RegisterOptions{Name: contract.StepUpload})

	env.RegisterActivityWithOptions(func(ctx context.Context, req contract.CleanupRequest) (contract.CleanupResult, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cleanupCalls++
		if m.cleanupErr != nil {
			return contract.CleanupResult{}, m.cleanupErr
		}
		m.cleanedUp = append(m.cleanedUp, req.Artifacts...)
		return contract.CleanupResult{Removed: len(req.Artifacts)}, nil
	}, activity.RegisterOptions{Name: contract.StepCleanup})
}

func newPipelineEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *pipelineMocks) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	mocks := &pipelineMocks{transcript: defaultTranscript()}
	mocks.register(env)
	return env, mocks
}

func TestPipelineCompletes(t *testing.T) {
	env, mocks := newPipelineEnv(t)

	env.ExecuteWorkflow(TranscribePipelineWorkflow, contract.PipelineRequest{
		RunID:    "test-run",
		Source:   "file://sample.mp4",
		Language: "auto",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result contract.PipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, contract.StatusCompleted, result.Status)
	assert.Equal(t, "en", result.Language)
	assert.InDelta(t, 12.5, result.DurationSeconds, 1e-9)
	assert.NotEmpty(t, result.PermanentLocator)
	assert.Equal(t, "src-1", result.SourceID)
	assert.Equal(t, "sample", result.Title)
	assert.Equal(t, "whisper-large-v3", result.Model)
	assert.Empty(t, result.FailedStep)

	assert.Equal(t, 1, mocks.downloadCalls)
	assert.Equal(t, 1, mocks.convertCalls)
	assert.Equal(t, 1, mocks.transcribeCalls)
	assert.Equal(t, 1, mocks.uploadCalls)
	// transient download/convert scratch files are removed after upload
	assert.Equal(t, 1, mocks.cleanupCalls)
	assert.Len(t, mocks.cleanedUp, 2)
}

func TestPipelineTranscribeTerminalFailureCompensates(t *testing.T) {
	env, mocks := newPipelineEnv(t)
	mocks.transcribeErr = contract.NewTerminal(contract.KindModelFailure, "model crashed", nil)

	env.ExecuteWorkflow(TranscribePipelineWorkflow, contract.PipelineRequest{
		RunID:  "test-run",
		Source: "file://sample.mp4",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result contract.PipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, contract.StatusFailed, result.Status)
	assert.Equal(t, contract.StepTranscribe, result.FailedStep)
	assert.Equal(t, contract.KindModelFailure, result.FailureKind)

	// exactly the Download and Convert artifacts are compensated
	require.Equal(t, 1, mocks.cleanupCalls)
	require.Len(t, mocks.cleanedUp, 2)
	assert.Equal(t, contract.StepDownload, mocks.cleanedUp[0].Step)
	assert.Equal(t, contract.StepConvert, mocks.cleanedUp[1].Step)

	assert.Equal(t, 0, mocks.uploadCalls)
	// terminal failures never consume the retry budget
	assert.Equal(t, 1, mocks.transcribeCalls)
}

func TestPipelineDownloadFailureSkipsEverything(t *testing.T) {
	env, mocks := newPipelineEnv(t)
	mocks.downloadErr = contract.NewTerminal(contract.KindSourceUnavailable, "404 from origin", nil)

	env.ExecuteWorkflow(TranscribePipelineWorkflow, contract.PipelineRequest{
		RunID:  "test-run",
		Source: "https://example.com/missing.mp4",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result contract.PipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, contract.StatusFailed, result.Status)
	assert.Equal(t, contract.StepDownload, result.FailedStep)
	assert.Equal(t, contract.KindSourceUnavailable, result.FailureKind)

	// nothing was produced, so nothing runs after the failing step
	assert.Equal(t, 0, mocks.convertCalls)
	assert.Equal(t, 0, mocks.transcribeCalls)
	assert.Equal(t, 0, mocks.uploadCalls)
	assert.Equal(t, 0, mocks.cleanupCalls)
}

func TestPipelineRetriesExhausted(t *testing.T) {
	env, mocks := newPipelineEnv(t)
	mocks.uploadErr = contract.NewRetryable(contract.KindStoreFailure, "store flapping", nil)

	env.ExecuteWorkflow(TranscribePipelineWorkflow, contract.PipelineRequest{
		RunID:  "test-run",
		Source: "file://sample.mp4",
		Policies: &contract.StepPolicies{
			Upload: contract.StepPolicy{MaxAttempts: 3},
		},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result contract.PipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, contract.StatusFailed, result.Status)
	assert.Equal(t, contract.StepUpload, result.FailedStep)
	assert.Equal(t, contract.KindRetriesExhausted, result.FailureKind)
	assert.Contains(t, result.FailureDetail, contract.KindStoreFailure)

	// the attempt budget is spent exactly, never exceeded
	assert.Equal(t, 3, mocks.uploadCalls)

	// download and convert artifacts are still compensated
	require.Equal(t, 1, mocks.cleanupCalls)
	assert.Len(t, mocks.cleanedUp, 2)
}

func TestPipelineScenarioAutoLanguage(t *testing.T) {
	env, _ := newPipelineEnv(t)

	env.ExecuteWorkflow(TranscribePipelineWorkflow, contract.PipelineRequest{
		RunID:    "scenario-run",
		Source:   "file://sample.mp4",
		Language: "auto",
	})

	require.True(t, env.IsWorkflowCompleted())
	var result contract.PipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, "en", result.Language)
	assert.InDelta(t, 12.5, result.DurationSeconds, 1e-9)
	assert.NotEmpty(t, result.PermanentLocator)
}

func TestPipelineStatusQuery(t *testing.T) {
	env, _ := newPipelineEnv(t)

	env.ExecuteWorkflow(TranscribePipelineWorkflow, contract.PipelineRequest{
		RunID:  "test-run",
		Source: "file://sample.mp4",
	})

	require.True(t, env.IsWorkflowCompleted())

	value, err := env.QueryWorkflow(QueryStatus)
	require.NoError(t, err)

	var status contract.RunStatus
	require.NoError(t, value.Get(&status))
	assert.Equal(t, "test-run", status.RunID)
	assert.Equal(t, contract.StateCompleted, status.State)
	require.NotNil(t, status.Result)
	assert.Equal(t, contract.StatusCompleted, status.Result.Status)
}

func TestPipelineCleanupFailureDoesNotMaskOriginal(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	mocks := &pipelineMocks{transcript: defaultTranscript()}
	mocks.transcribeErr = contract.NewTerminal(contract.KindModelFailure, "model crashed", nil)
	mocks.cleanupErr = contract.NewTerminal(contract.KindStoreFailure, "cleanup broke", nil)
	mocks.register(env)

	env.ExecuteWorkflow(TranscribePipelineWorkflow, contract.PipelineRequest{
		RunID:  "test-run",
		Source: "file://sample.mp4",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result contract.PipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))

	// the original failure survives the broken compensation
	assert.Equal(t, contract.StepTranscribe, result.FailedStep)
	assert.Equal(t, contract.KindModelFailure, result.FailureKind)
}
