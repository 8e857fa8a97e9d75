package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(New(Config{Level: "warn", Format: "JSON"}, &buf))
	ctx := context.Background()

	l.Info(ctx, "hidden")
	l.With("component", "purchases").Warn(ctx, "slow commit", "ms", 250)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "slow commit", rec["msg"])
	assert.Equal(t, "purchases", rec["component"])
	assert.EqualValues(t, 250, rec["ms"])
}

func TestNew_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(New(Config{Level: "debug"}, &buf))
	l.Debug(context.Background(), "dbg", "a", 1)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "a=1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" Debug "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNop(t *testing.T) {
	l := Nop().With("k", "v")
	l.Error(context.Background(), "ignored")
}
