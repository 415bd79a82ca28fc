package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	payload := "hello world"
	info, err := store.Put(ctx, "transcripts/run-1/transcript.txt",
		strings.NewReader(payload), int64(len(payload)), "text/plain",
		map[string]string{MetaContentHash: "deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Bytes)
	assert.Equal(t, "mem://transcripts/run-1/transcript.txt", info.Locator)
	assert.Equal(t, "deadbeef", info.ContentHash)

	stat, err := store.Stat(ctx, "transcripts/run-1/transcript.txt")
	require.NoError(t, err)
	assert.Equal(t, info.Locator, stat.Locator)
	assert.Equal(t, "deadbeef", stat.ContentHash)

	rc, err := store.Get(ctx, "transcripts/run-1/transcript.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Stat(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "k", strings.NewReader("v"), 1, "text/plain", nil)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	require.NoError(t, store.Remove(ctx, "k"))
	assert.Equal(t, 0, store.Len())

	// removing a missing key is not an error
	assert.NoError(t, store.Remove(ctx, "k"))
}
