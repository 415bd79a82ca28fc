// Package contract defines the typed request/response pairs exchanged
// between the transcription pipeline workflow and its activities, plus the
// failure taxonomy both sides agree on.
package contract

// Step names, in execution order. Cleanup runs as compensation on failure
// and to drop scratch files after a successful upload.
const (
	StepDownload   = "Download"
	StepConvert    = "Convert"
	StepTranscribe = "Transcribe"
	StepUpload     = "Upload"
	StepCleanup    = "Cleanup"
)

// Workflow states exposed through the status query.
const (
	StateDownloading  = "Downloading"
	StateConverting   = "Converting"
	StateTranscribing = "Transcribing"
	StateUploading    = "Uploading"
	StateCompensating = "Compensating"
	StateCompleted    = "Completed"
	StateFailed       = "Failed"
)

// PipelineRequest is the immutable input for one pipeline run.
type PipelineRequest struct {
	RunID        string        `json:"run_id"`
	Source       string        `json:"source"`   // URI (http, https, file) or an object key already in the store
	Language     string        `json:"language"` // BCP-47 code or "auto"
	OutputFormat string        `json:"output_format,omitempty"`
	Quality      string        `json:"quality,omitempty"`
	SampleRateHz int           `json:"sample_rate_hz,omitempty"` // conversion override, 16000 when zero
	Policies     *StepPolicies `json:"policies,omitempty"`
}

// StepPolicy overrides the timeout/retry knobs of a single step. Zero
// values fall back to the built-in defaults.
type StepPolicy struct {
	TimeoutSeconds   int `json:"timeout_seconds,omitempty"`
	HeartbeatSeconds int `json:"heartbeat_seconds,omitempty"`
	MaxAttempts      int `json:"max_attempts,omitempty"`
}

// StepPolicies carries optional per-step overrides on a request.
type StepPolicies struct {
	Download   StepPolicy `json:"download,omitempty"`
	Convert    StepPolicy `json:"convert,omitempty"`
	Transcribe StepPolicy `json:"transcribe,omitempty"`
	Upload     StepPolicy `json:"upload,omitempty"`
}

// Artifact references a transient file produced by a step. Local artifacts
// live on the worker's disk, object artifacts in the store. Exactly one of
// LocalPath and ObjectKey is set.
type Artifact struct {
	Step      string `json:"step"`
	LocalPath string `json:"local_path,omitempty"`
	ObjectKey string `json:"object_key,omitempty"`
	Bytes     int64  `json:"bytes"`
}

// TranscriptSegment is one voice-activity-detected span of speech.
// Segments are sorted by non-decreasing start time and never overlap.
type TranscriptSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// DownloadRequest fetches the source media onto the worker's disk.
type DownloadRequest struct {
	RunID   string `json:"run_id"`
	Source  string `json:"source"`
	Quality string `json:"quality,omitempty"`
}

type DownloadResult struct {
	LocalPath       string  `json:"local_path"`
	SourceID        string  `json:"source_id"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	Bytes           int64   `json:"bytes"`
}

// ConvertRequest normalizes the downloaded media for the speech engine.
type ConvertRequest struct {
	RunID        string `json:"run_id"`
	LocalPath    string `json:"local_path"`
	TargetFormat string `json:"target_format"` // "wav" canonical
	SampleRateHz int    `json:"sample_rate_hz"`
}

type ConvertResult struct {
	LocalPath string `json:"local_path"`
	Bytes     int64  `json:"bytes"`
}

// TranscribeRequest runs speech-to-text over a normalized local file.
type TranscribeRequest struct {
	RunID     string `json:"run_id"`
	LocalPath string `json:"local_path"`
	Language  string `json:"language"` // "auto" enables detection
}

type TranscribeResult struct {
	Text               string              `json:"text"`
	Language           string              `json:"language"`
	LanguageConfidence float64             `json:"language_confidence"`
	DurationSeconds    float64             `json:"duration_seconds"`
	Segments           []TranscriptSegment `json:"segments"`
	Model              string              `json:"model"`
}

// UploadRequest persists the finished transcript under a permanent key.
// The transcript travels inline; the activity renders and stores it.
type UploadRequest struct {
	RunID      string            `json:"run_id"`
	Key        string            `json:"key"`
	Format     string            `json:"format"` // "txt" or "json"
	Transcript TranscribeResult  `json:"transcript"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type UploadResult struct {
	PermanentLocator string `json:"permanent_locator"`
	Bytes            int64  `json:"bytes"`
	ContentHash      string `json:"content_hash"`
	AlreadyStored    bool   `json:"already_stored"`
}

// CleanupRequest asks for best-effort removal of the listed artifacts.
type CleanupRequest struct {
	RunID     string     `json:"run_id"`
	Artifacts []Artifact `json:"artifacts"`
}

type CleanupResult struct {
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Terminal statuses of a PipelineResult.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PipelineResult is the single terminal outcome of a run. On failure it
// names exactly one failing step and failure kind; on success it carries
// provenance collected across the steps, never re-derived.
type PipelineResult struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`

	PermanentLocator   string  `json:"permanent_locator,omitempty"`
	SourceID           string  `json:"source_id,omitempty"`
	Title              string  `json:"title,omitempty"`
	Language           string  `json:"language,omitempty"`
	LanguageConfidence float64 `json:"language_confidence,omitempty"`
	DurationSeconds    float64 `json:"duration_seconds,omitempty"`
	Model              string  `json:"model,omitempty"`
	ContentHash        string  `json:"content_hash,omitempty"`

	FailedStep    string `json:"failed_step,omitempty"`
	FailureKind   string `json:"failure_kind,omitempty"`
	FailureDetail string `json:"failure_detail,omitempty"`
}

// RunStatus is the answer to the "status" workflow query.
type RunStatus struct {
	RunID     string          `json:"run_id"`
	State     string          `json:"state"`
	Artifacts []Artifact      `json:"artifacts"`
	Result    *PipelineResult `json:"result,omitempty"`
}
