// Package speech defines the speech-to-text engine contract, the
// voice-activity post-filter applied to its raw segments, and an HTTP
// client for a whisper-server instance.
package speech

import (
	"context"
	"errors"
)

// Typed engine failures the Transcribe activity maps onto the pipeline's
// failure taxonomy.
var (
	ErrModelUnavailable = errors.New("speech model unavailable")
	ErrDecode           = errors.New("speech decode failed")
)

// Segment is one span of recognized speech.
type Segment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// VADConfig tunes the voice-activity post-filter. All knobs are
// configuration, never hardcoded at call sites.
type VADConfig struct {
	// NoSpeechThreshold drops segments whose no-speech probability
	// exceeds it. Zero disables the probability filter.
	NoSpeechThreshold float64
	// MinSpeechMs drops speech spans shorter than this.
	MinSpeechMs int
	// MinSilenceMs merges neighboring segments separated by less silence
	// than this.
	MinSilenceMs int
	// SpeechPadMs widens each kept span on both sides, clamped so spans
	// never overlap.
	SpeechPadMs int
}

// DefaultVADConfig mirrors the tuning the transcription scripts converged
// on: a conservative threshold with light padding.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		NoSpeechThreshold: 0.6,
		MinSpeechMs:       250,
		MinSilenceMs:      100,
		SpeechPadMs:       30,
	}
}

// Options configures one transcription call.
type Options struct {
	// Language is a code such as "en", or "auto" for detection.
	Language    string
	Temperature float64
	VAD         VADConfig
}

// Result is the structured transcript an engine returns.
type Result struct {
	Text               string
	Language           string
	LanguageConfidence float64
	DurationSeconds    float64
	Segments           []Segment
	Model              string
}

// Engine is the local-file-in, transcript-out contract. Implementations
// must be safe for concurrent read-only inference; the worker bounds
// in-flight calls.
type Engine interface {
	Transcribe(ctx context.Context, localPath string, opts Options) (Result, error)
	HealthCheck(ctx context.Context) error
}
