package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/pankha/pankhactl/internal/errors"
	"codeberg.org/pankha/pankhactl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, logger.InfoLevel, logger.ParseLevel("info"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("warning"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("WARN"))
	assert.Equal(t, logger.ErrorLevel, logger.ParseLevel("error"))
	assert.Equal(t, logger.InfoLevel, logger.ParseLevel("bogus"))
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLogLevel(logger.DebugLevel)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	logger.New("fan").Debug().Int("rpm", 1500).Msg("step")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fan", entry["component"])
	assert.Equal(t, "step", entry["message"])
	assert.EqualValues(t, 1500, entry["rpm"])
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.ErrorWithCode(errors.New().New(errors.ErrDeviceUnavailable)).Msg("open failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "device_unavailable", entry["error_code"])
	assert.Equal(t, "Device unavailable", entry["error"])
}
