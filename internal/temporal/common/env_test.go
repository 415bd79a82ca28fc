package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvDefault(t *testing.T) {
	assert.Equal(t, "fallback", GetEnv("SOME_UNSET_VARIABLE", "fallback"))

	t.Setenv("SOME_SET_VARIABLE", "value")
	assert.Equal(t, "value", GetEnv("SOME_SET_VARIABLE", "fallback"))
}

func TestGetEnvIntDefault(t *testing.T) {
	n, err := GetEnvInt("MAX_CONCURRENT_ACTIVITIES", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestGetEnvIntParsesValue(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_ACTIVITIES", "8")
	n, err := GetEnvInt("MAX_CONCURRENT_ACTIVITIES", 4)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestGetEnvIntRejectsGarbage(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_ACTIVITIES", "lots")
	_, err := GetEnvInt("MAX_CONCURRENT_ACTIVITIES", 4)
	assert.Error(t, err)
}

func TestGetEnvIntRejectsNonPositive(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_ACTIVITIES", "0")
	_, err := GetEnvInt("MAX_CONCURRENT_ACTIVITIES", 4)
	assert.Error(t, err)

	t.Setenv("MAX_CONCURRENT_ACTIVITIES", "-2")
	_, err = GetEnvInt("MAX_CONCURRENT_ACTIVITIES", 4)
	assert.Error(t, err)
}
