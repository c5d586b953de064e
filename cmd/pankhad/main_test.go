package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/pankha/pankhactl/internal/logger"
	"codeberg.org/pankha/pankhactl/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseLockRemovesFile(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(io.Discard) })

	lock := pid.New(t.TempDir())
	require.NoError(t, lock.Write())

	releaseLock(lock)
	assert.NoFileExists(t, lock.Path())
	assert.Empty(t, buf.String())
}

func TestReleaseLockLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(io.Discard) })

	lock := pid.New(t.TempDir())
	// A non-empty directory in place of the pid file cannot be removed.
	require.NoError(t, os.MkdirAll(filepath.Join(lock.Path(), "held"), 0o755))

	releaseLock(lock)
	assert.Contains(t, buf.String(), "Failed to remove pid file")
	assert.Contains(t, buf.String(), `"error_code":"internal_error"`)
}
