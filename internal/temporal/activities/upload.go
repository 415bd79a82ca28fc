package activities

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/daymade/tiktok-whisper/internal/storage"
	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
)

// Upload renders the transcript and persists it under its permanent key.
// It is idempotent: if the key already holds identical content, the
// existing object is returned untouched, so a retried upload never creates
// a duplicate.
func (a *Activities) Upload(ctx context.Context, req contract.UploadRequest) (contract.UploadResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Uploading transcript", "runId", req.RunID, "key", req.Key, "format", req.Format)

	payload, contentType, err := renderTranscript(req.Transcript, req.Format)
	if err != nil {
		return contract.UploadResult{}, contract.NewTerminal(contract.KindStoreFailure, err.Error(), err)
	}

	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])

	existing, err := a.store.Stat(ctx, req.Key)
	if err == nil && existing.ContentHash == hash {
		logger.Info("Transcript already stored", "runId", req.RunID, "key", req.Key)
		return contract.UploadResult{
			PermanentLocator: existing.Locator,
			Bytes:            existing.Bytes,
			ContentHash:      hash,
			AlreadyStored:    true,
		}, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return contract.UploadResult{}, contract.NewRetryable(contract.KindStoreFailure, fmt.Sprintf("stat failed: %v", err), err)
	}

	meta := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta[storage.MetaContentHash] = hash

	info, err := a.store.Put(ctx, req.Key, bytes.NewReader(payload), int64(len(payload)), contentType, meta)
	if err != nil {
		return contract.UploadResult{}, contract.NewRetryable(contract.KindStoreFailure, fmt.Sprintf("put failed: %v", err), err)
	}

	logger.Info("Transcript stored", "runId", req.RunID, "locator", info.Locator, "bytes", info.Bytes)
	return contract.UploadResult{
		PermanentLocator: info.Locator,
		Bytes:            info.Bytes,
		ContentHash:      hash,
	}, nil
}

func renderTranscript(t contract.TranscribeResult, format string) ([]byte, string, error) {
	switch format {
	case "", "txt":
		return []byte(t.Text), "text/plain; charset=utf-8", nil
	case "json":
		payload, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to render transcript: %w", err)
		}
		return payload, "application/json", nil
	default:
		return nil, "", fmt.Errorf("unknown output format %q", format)
	}
}
