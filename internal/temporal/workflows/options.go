package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

const (
	defaultTargetFormat = "wav"
	defaultSampleRateHz = 16000
)

// Per-step defaults. Transcription runs materially longer than the other
// steps and heartbeats so a slow-but-alive decode is not killed while a
// stalled one is.
var defaultPolicies = map[string]contract.StepPolicy{
	contract.StepDownload:   {TimeoutSeconds: 300, MaxAttempts: 3},
	contract.StepConvert:    {TimeoutSeconds: 600, MaxAttempts: 3},
	contract.StepTranscribe: {TimeoutSeconds: 7200, HeartbeatSeconds: 30, MaxAttempts: 2},
	contract.StepUpload:     {TimeoutSeconds: 120, MaxAttempts: 4},
}

// optionsFor builds the activity options for one step, applying any
// request-level overrides on top of the defaults.
func optionsFor(step string, overrides *contract.StepPolicies) workflow.ActivityOptions {
	policy := defaultPolicies[step]
	if overrides != nil {
		merge(&policy, overrideFor(step, overrides))
	}

	opts := workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(policy.TimeoutSeconds) * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    100 * time.Second,
			MaximumAttempts:    int32(policy.MaxAttempts),
		},
	}
	if policy.HeartbeatSeconds > 0 {
		opts.HeartbeatTimeout = time.Duration(policy.HeartbeatSeconds) * time.Second
	}
	return opts
}

// cleanupOptions are deliberately tight: compensation is best-effort and
// must not stall a failing run.
func cleanupOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    2,
		},
	}
}

func overrideFor(step string, p *contract.StepPolicies) contract.StepPolicy {
	switch step {
	case contract.StepDownload:
		return p.Download
	case contract.StepConvert:
		return p.Convert
	case contract.StepTranscribe:
		return p.Transcribe
	case contract.StepUpload:
		return p.Upload
	}
	return contract.StepPolicy{}
}

func merge(base *contract.StepPolicy, o contract.StepPolicy) {
	if o.TimeoutSeconds > 0 {
		base.TimeoutSeconds = o.TimeoutSeconds
	}
	if o.HeartbeatSeconds > 0 {
		base.HeartbeatSeconds = o.HeartbeatSeconds
	}
	if o.MaxAttempts > 0 {
		base.MaxAttempts = o.MaxAttempts
	}
}
