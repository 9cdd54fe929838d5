package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	t.Setenv("DEBUG", "")
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, err := Setup(&buf, "create", "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("filter written", "bytes", 16)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "filter written", record["msg"])
	assert.Equal(t, "create", record["component"])
	assert.EqualValues(t, 16, record["bytes"])
}

func TestSetupDebugEnv(t *testing.T) {
	t.Setenv("DEBUG", "1")
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, err := Setup(&buf, "query", "error", "text")
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSetupRejectsUnknownValues(t *testing.T) {
	_, err := Setup(&bytes.Buffer{}, "x", "loud", "text")
	assert.Error(t, err)
	_, err = Setup(&bytes.Buffer{}, "x", "info", "xml")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
