package contract

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// Failure kinds carried as the application error type across the activity
// boundary, so the server-side retry policy and the workflow can both
// discriminate on them.
const (
	KindSourceUnavailable = "SourceUnavailable"
	KindUnsupportedFormat = "UnsupportedFormat"
	KindToolFailure       = "ToolFailure"
	KindModelFailure      = "ModelFailure"
	KindTimeout           = "Timeout"
	KindStoreFailure      = "StoreFailure"
	KindRetriesExhausted  = "RetriesExhausted"
)

// NewRetryable builds an activity failure that the step's retry policy may
// retry with bounded exponential backoff.
func NewRetryable(kind, detail string, cause error) error {
	return temporal.NewApplicationErrorWithCause(detail, kind, cause)
}

// NewTerminal builds an activity failure that aborts the step immediately,
// without consuming the retry budget.
func NewTerminal(kind, detail string, cause error) error {
	return temporal.NewNonRetryableApplicationError(detail, kind, cause)
}

// StepFailure is the workflow-side classification of an activity error:
// the step that failed, the failure kind, and a human-readable detail.
type StepFailure struct {
	Step   string `json:"step"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func (f *StepFailure) Error() string {
	return fmt.Sprintf("step %s failed: %s: %s", f.Step, f.Kind, f.Detail)
}

// Classify maps an error returned by ExecuteActivity(...).Get into the
// failure taxonomy. A retryable application error only ever reaches the
// workflow once its attempt budget is spent, so it classifies as
// RetriesExhausted with the original kind preserved in the detail.
func Classify(step string, err error) *StepFailure {
	if err == nil {
		return nil
	}

	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return &StepFailure{
			Step:   step,
			Kind:   KindTimeout,
			Detail: fmt.Sprintf("%s timeout: %s", timeoutErr.TimeoutType(), timeoutErr.Message()),
		}
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		if appErr.NonRetryable() {
			return &StepFailure{Step: step, Kind: appErr.Type(), Detail: appErr.Message()}
		}
		return &StepFailure{
			Step:   step,
			Kind:   KindRetriesExhausted,
			Detail: fmt.Sprintf("retries exhausted, last failure %s: %s", appErr.Type(), appErr.Message()),
		}
	}

	var canceledErr *temporal.CanceledError
	if errors.As(err, &canceledErr) {
		return &StepFailure{Step: step, Kind: KindTimeout, Detail: "activity canceled"}
	}

	return &StepFailure{Step: step, Kind: KindToolFailure, Detail: err.Error()}
}
