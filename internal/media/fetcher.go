// Package media provides the source fetcher and the ffmpeg-backed audio
// normalizer the pipeline activities delegate to.
package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Typed fetch failures the Download activity maps onto the pipeline's
// failure taxonomy.
var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrSourceUnreachable = errors.New("source unreachable")
	ErrUnsupportedSource = errors.New("unsupported source")
)

// SourceInfo describes a fetched media file.
type SourceInfo struct {
	LocalPath       string
	SourceID        string
	Title           string
	DurationSeconds float64
	Bytes           int64
}

// Fetcher resolves a source locator into a local file plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, source, destDir string) (SourceInfo, error)
}

// HTTPFetcher downloads http(s) sources and copies file:// sources into
// the run's working directory. The source identifier is the MD5 of the
// locator, stable across retries of the same request.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 10 * time.Minute}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, source, destDir string) (SourceInfo, error) {
	u, err := url.Parse(source)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u, destDir)
	case "file":
		return f.copyLocal(u, destDir)
	default:
		return SourceInfo{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, u.Scheme)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, u *url.URL, destDir string) (SourceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return SourceInfo{}, fmt.Errorf("%w: %s", ErrSourceNotFound, u)
	case resp.StatusCode != http.StatusOK:
		return SourceInfo{}, fmt.Errorf("%w: status %d from %s", ErrSourceUnreachable, resp.StatusCode, u.Host)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "source"
	}
	destPath := filepath.Join(destDir, name)
	n, err := writeFile(destPath, resp.Body)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	return SourceInfo{
		LocalPath: destPath,
		SourceID:  sourceID(u.String()),
		Title:     strings.TrimSuffix(name, filepath.Ext(name)),
		Bytes:     n,
	}, nil
}

func (f *HTTPFetcher) copyLocal(u *url.URL, destDir string) (SourceInfo, error) {
	srcPath := u.Path
	if u.Host != "" {
		// file://sample.mp4 parses the name into the host part
		srcPath = filepath.Join(u.Host, u.Path)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return SourceInfo{}, fmt.Errorf("%w: %s", ErrSourceNotFound, srcPath)
		}
		return SourceInfo{}, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer src.Close()

	name := filepath.Base(srcPath)
	destPath := filepath.Join(destDir, name)
	n, err := writeFile(destPath, src)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	return SourceInfo{
		LocalPath: destPath,
		SourceID:  sourceID(u.String()),
		Title:     strings.TrimSuffix(name, filepath.Ext(name)),
		Bytes:     n,
	}, nil
}

func writeFile(destPath string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	return io.Copy(out, r)
}

func sourceID(source string) string {
	sum := md5.Sum([]byte(source))
	return hex.EncodeToString(sum[:])
}
