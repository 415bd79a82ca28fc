// Package activities implements the pipeline's activity contracts on top
// of the media, speech and storage collaborators. Every method converts
// collaborator errors into the typed failure kinds of the contract, so the
// retry policy can tell transient failures from terminal ones.
package activities

import (
	"context"
	"path/filepath"

	"github.com/daymade/tiktok-whisper/internal/media"
	"github.com/daymade/tiktok-whisper/internal/speech"
	"github.com/daymade/tiktok-whisper/internal/storage"
)

// DurationProber reports a media file's duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Activities bundles the collaborators one worker process shares across
// activity executions. The speech engine handle is initialized once at
// startup and used read-only; there is no lazily-initialized global.
type Activities struct {
	fetcher   media.Fetcher
	converter media.Converter
	prober    DurationProber
	engine    speech.Engine
	store     storage.ObjectStore
	vad       speech.VADConfig
	workDir   string
}

func New(fetcher media.Fetcher, converter media.Converter, prober DurationProber, engine speech.Engine, store storage.ObjectStore, vad speech.VADConfig, workDir string) *Activities {
	return &Activities{
		fetcher:   fetcher,
		converter: converter,
		prober:    prober,
		engine:    engine,
		store:     store,
		vad:       vad,
		workDir:   workDir,
	}
}

// runDir is the per-run scratch directory; artifact paths are namespaced
// by run ID so concurrent runs never collide.
func (a *Activities) runDir(runID string) string {
	return filepath.Join(a.workDir, runID)
}
