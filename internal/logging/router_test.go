package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlmatch/recorder/internal/router"
)

var _ router.Logger = (*RouterLogger)(nil)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestRouterLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRouterLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	rl.Debug("registered event with relay", "event", "game:update_state", "count", 42)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "registered event with relay", entry["message"])
	assert.Equal(t, "game:update_state", entry["event"])
	assert.Equal(t, float64(42), entry["count"])
}

func TestRouterLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRouterLogger(zerolog.New(&buf))

	rl.Info("relay event", "channel", "game")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "game", entry["channel"])
}

func TestRouterLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRouterLogger(zerolog.New(&buf))

	rl.Error("failed to register event with relay", "error", errors.New("relay not connected"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "relay not connected", entry["error"])
}

func TestRouterLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRouterLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	rl.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestToFields(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want map[string]any
	}{
		{"empty", nil, map[string]any{}},
		{"pairs", []any{"a", 1, "b", "two"}, map[string]any{"a": 1, "b": "two"}},
		{"odd trailing value", []any{"a", 1, "b"}, map[string]any{"a": 1}},
		{"non-string key", []any{3, "x", "k", true}, map[string]any{"k": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toFields(tt.in))
		})
	}
}
