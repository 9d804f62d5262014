package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/aretw0/itpbot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONTo_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSONTo(&buf, slog.LevelInfo)

	logger.Info("delivery failed", "error", "timeout", "session_key", "abc")
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "timeout", line["err"])
	assert.NotContains(t, line, "error")
	assert.Equal(t, "abc", line["session_key"])
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	lvl, err = logging.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = logging.ParseLevel("loud")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	_, err := logging.FromConfig("info", "json")
	assert.NoError(t, err)
	_, err = logging.FromConfig("warn", "")
	assert.NoError(t, err)
	_, err = logging.FromConfig("info", "xml")
	assert.Error(t, err)
}
