package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Typed conversion failures the Convert activity maps onto the pipeline's
// failure taxonomy.
var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrCorruptInput     = errors.New("corrupt input")
	ErrToolUnavailable  = errors.New("conversion tool unavailable")
)

// ConvertSpec describes the normalization target. The speech engine wants
// mono 16 kHz wav unless the caller overrides.
type ConvertSpec struct {
	TargetFormat string
	SampleRateHz int
	Channels     int
}

// Converter normalizes a media file for transcription.
type Converter interface {
	Convert(ctx context.Context, srcPath string, spec ConvertSpec, destDir string) (string, int64, error)
}

// FFmpegConverter shells out to ffmpeg/ffprobe.
type FFmpegConverter struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpegConverter() *FFmpegConverter {
	return &FFmpegConverter{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

func (c *FFmpegConverter) Convert(ctx context.Context, srcPath string, spec ConvertSpec, destDir string) (string, int64, error) {
	if spec.TargetFormat == "" {
		spec.TargetFormat = "wav"
	}
	if spec.SampleRateHz == 0 {
		spec.SampleRateHz = 16000
	}
	if spec.Channels == 0 {
		spec.Channels = 1
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	destPath := filepath.Join(destDir, fmt.Sprintf("%s_%dhz.%s", base, spec.SampleRateHz, spec.TargetFormat))

	cmd := exec.CommandContext(ctx, c.FFmpegPath,
		"-y",
		"-i", srcPath,
		"-vn",
		"-ac", strconv.Itoa(spec.Channels),
		"-ar", strconv.Itoa(spec.SampleRateHz),
		destPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", 0, classifyFFmpegError(err, stderr.String())
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return "", 0, fmt.Errorf("%w: output missing: %v", ErrToolUnavailable, err)
	}
	return destPath, info.Size(), nil
}

// ProbeDuration returns the media duration in seconds via ffprobe.
func (c *FFmpegConverter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %v", ErrToolUnavailable, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable duration: %v", ErrCorruptInput, err)
	}
	return math.Round(duration*100) / 100, nil
}

func classifyFFmpegError(err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "invalid data found"), strings.Contains(lower, "moov atom not found"):
		return fmt.Errorf("%w: %s", ErrCorruptInput, firstLine(stderr))
	case strings.Contains(lower, "decoder not found"), strings.Contains(lower, "unknown format"),
		strings.Contains(lower, "codec not currently supported"):
		return fmt.Errorf("%w: %s", ErrUnsupportedCodec, firstLine(stderr))
	default:
		return fmt.Errorf("%w: ffmpeg: %v: %s", ErrToolUnavailable, err, firstLine(stderr))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i > 0 {
		return s[:i]
	}
	return s
}
