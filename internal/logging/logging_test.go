package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInit_JSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	log := Init("viruscan", Options{Format: "json", Level: "warn", Output: &buf})
	log.Info("hidden")
	log.Warn("shown", "k", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "viruscan", line["component"])
	assert.Same(t, log, slog.Default())
}

func TestInit_EnvFallback(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	t.Setenv("VIRUSCAN_LOG_LEVEL", "debug")

	var buf bytes.Buffer
	log := Init("viruscan", Options{Output: &buf})
	log.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}
