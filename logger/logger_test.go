package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestInit_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Options{Level: "info", Format: "json", Output: &buf})
	l.Debug("hidden")
	l.Info("chat refreshed", "conversations", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"chat refreshed"`)
	assert.Contains(t, out, `"conversations":3`)
}
