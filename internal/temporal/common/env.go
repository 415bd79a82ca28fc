// Package common holds the Temporal client configuration, the process
// logger, and the environment helpers shared by the server and worker.
package common

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for the Temporal connection and the pipeline's collaborators.
const (
	DefaultTemporalHost = "localhost:7233"
	DefaultNamespace    = "default"
	DefaultTaskQueue    = "TRANSCRIBE_QUEUE"

	DefaultMinIOEndpoint  = "localhost:9000"
	DefaultMinIOAccessKey = "minioadmin"
	DefaultMinIOSecretKey = "minioadmin"
	DefaultMinIOBucket    = "v2t"

	DefaultWhisperServerURL = "http://localhost:8178"
	DefaultWorkDir          = "/tmp/v2t-pipeline"
)

// GetEnv returns the variable's value, or def when unset or empty.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvInt returns the variable parsed as a positive integer, or def when
// unset. A value that does not parse or is not positive is an error rather
// than a silent fallback.
func GetEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
