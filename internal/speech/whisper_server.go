package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WhisperServerConfig configures the HTTP client for a whisper-server
// instance (whisper.cpp's server binary or API-compatible).
type WhisperServerConfig struct {
	BaseURL       string
	InferencePath string        // default "/inference"
	HealthPath    string        // default "/health"
	Model         string        // reported in results for provenance
	Timeout       time.Duration // per-request timeout
	MaxElapsed    time.Duration // retry budget for transient HTTP failures
}

// WhisperServerEngine implements Engine over whisper-server's multipart
// inference endpoint with verbose JSON responses.
type WhisperServerEngine struct {
	config WhisperServerConfig
	client *http.Client
}

func NewWhisperServerEngine(config WhisperServerConfig) *WhisperServerEngine {
	if config.InferencePath == "" {
		config.InferencePath = "/inference"
	}
	if config.HealthPath == "" {
		config.HealthPath = "/health"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Minute
	}
	if config.MaxElapsed == 0 {
		config.MaxElapsed = 2 * time.Minute
	}
	return &WhisperServerEngine{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// whisperResponse is the verbose_json shape whisper-server returns.
type whisperResponse struct {
	Text                        string           `json:"text"`
	Language                    string           `json:"language,omitempty"`
	Duration                    float64          `json:"duration,omitempty"`
	DetectedLanguage            string           `json:"detected_language,omitempty"`
	DetectedLanguageProbability float64          `json:"detected_language_probability,omitempty"`
	Segments                    []whisperSegment `json:"segments,omitempty"`
}

type whisperSegment struct {
	ID           int     `json:"id"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob,omitempty"`
	NoSpeechProb float64 `json:"no_speech_prob,omitempty"`
}

func (e *WhisperServerEngine) Transcribe(ctx context.Context, localPath string, opts Options) (Result, error) {
	body, contentType, err := e.buildRequestBody(localPath, opts)
	if err != nil {
		return Result{}, err
	}

	var decoded whisperResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+e.config.InferencePath, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrDecode, err))
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: server status %d", ErrModelUnavailable, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrDecode, resp.StatusCode, firstBytes(payload)))
		}

		if err := json.Unmarshal(payload, &decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: bad response: %v", ErrDecode, err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = e.config.MaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return Result{}, err
	}

	return e.toResult(decoded, opts), nil
}

// HealthCheck probes the server; a failure means the model is unavailable.
func (e *WhisperServerEngine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+e.config.HealthPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}

func (e *WhisperServerEngine) buildRequestBody(localPath string, opts Options) ([]byte, string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	_ = w.WriteField("response_format", "verbose_json")
	_ = w.WriteField("temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64))
	if opts.Language != "" && opts.Language != "auto" {
		_ = w.WriteField("language", opts.Language)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (e *WhisperServerEngine) toResult(resp whisperResponse, opts Options) Result {
	language := resp.DetectedLanguage
	confidence := resp.DetectedLanguageProbability
	if language == "" {
		language = resp.Language
	}
	if language == "" && opts.Language != "auto" {
		// forced-language mode; the server omits detection fields
		language = opts.Language
		confidence = 1.0
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, Segment{
			Start:        s.Start,
			End:          s.End,
			Text:         s.Text,
			AvgLogprob:   s.AvgLogprob,
			NoSpeechProb: s.NoSpeechProb,
		})
	}

	return Result{
		Text:               resp.Text,
		Language:           language,
		LanguageConfidence: confidence,
		DurationSeconds:    resp.Duration,
		Segments:           FilterSegments(segments, opts.VAD),
		Model:              e.config.Model,
	}
}

func firstBytes(b []byte) string {
	const max = 200
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
