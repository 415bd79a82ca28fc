package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

type fakeWorkflowRun struct {
	err error
}

func (r *fakeWorkflowRun) GetID() string    { return "pipeline-test" }
func (r *fakeWorkflowRun) GetRunID() string { return "run" }
func (r *fakeWorkflowRun) Get(ctx context.Context, valuePtr interface{}) error {
	return r.err
}
func (r *fakeWorkflowRun) GetWithOptions(ctx context.Context, valuePtr interface{}, options client.WorkflowRunGetOptions) error {
	return r.err
}

func newUploadFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.m4a")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	return path
}

func TestRemoveUploadWhenDone(t *testing.T) {
	s := &server{logger: zap.NewNop()}
	path := newUploadFile(t)

	s.removeUploadWhenDone("run-1", path, &fakeWorkflowRun{})

	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "upload must be removed after the run finishes")
}

func TestRemoveUploadWhenDoneAfterWorkflowError(t *testing.T) {
	s := &server{logger: zap.NewNop()}
	path := newUploadFile(t)

	s.removeUploadWhenDone("run-1", path, &fakeWorkflowRun{err: errors.New("workflow failed")})

	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "upload must be removed even when the run errors")
}

func TestRemoveUploadWhenDoneMissingFile(t *testing.T) {
	s := &server{logger: zap.NewNop()}

	// must not panic or log spuriously when the file is already gone
	s.removeUploadWhenDone("run-1", filepath.Join(t.TempDir(), "gone.m4a"), &fakeWorkflowRun{})
}
