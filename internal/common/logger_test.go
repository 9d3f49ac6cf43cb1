package common

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "", want: slog.LevelInfo},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, slog.LevelInfo, "json")
		require.NoError(t, err)

		logger.Debug("hidden")
		logger.Info("Model loaded", "assignees", 3)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "Model loaded", entry["msg"])
		assert.InDelta(t, 3, entry["assignees"], 0)
	})

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, slog.LevelWarn, "console")
		require.NoError(t, err)

		logger.Info("hidden")
		logger.Warn("No trained model available")
		assert.Contains(t, buf.String(), "No trained model available")
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := NewLogger(&bytes.Buffer{}, slog.LevelInfo, "xml")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSetupLogger_RejectsBadLevel(t *testing.T) {
	assert.ErrorIs(t, SetupLogger("loud", "console"), ErrInvalidConfig)
}
