package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomHandlerPrintsAttributes(t *testing.T) {
	// Setup
	color.NoColor = true
	buf := &bytes.Buffer{}
	log := New(buf, slog.LevelDebug, "development").With("component", "gateway")

	// Execute
	log.Warn("heartbeat not acknowledged", "error", errors.New("zombie"))

	// Assert
	out := buf.String()
	assert.Contains(t, out, "WARN: heartbeat not acknowledged")
	assert.Contains(t, out, `"component": "gateway"`)
	assert.Contains(t, out, `"error": "zombie"`)
}

func TestCustomHandlerWithoutAttributes(t *testing.T) {
	color.NoColor = true
	buf := &bytes.Buffer{}
	log := New(buf, slog.LevelInfo, "development")

	log.Info("connected")
	log.Debug("hidden")

	assert.Regexp(t, `^\[\d\d:\d\d:\d\d\] INFO: connected\n$`, buf.String())
}

func TestCustomHandlerGroups(t *testing.T) {
	color.NoColor = true
	buf := &bytes.Buffer{}
	log := New(buf, slog.LevelInfo, "development").WithGroup("rest")

	log.Info("request", "status", 204)

	assert.Contains(t, buf.String(), `"rest.status": 204`)
}

func TestNewProductionWritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(buf, slog.LevelInfo, "production")

	log.Info("ready", "session_id", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "ready", line["msg"])
	assert.Equal(t, "abc", line["session_id"])
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
