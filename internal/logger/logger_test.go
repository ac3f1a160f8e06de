package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "api", "info", "json")
	log.Debug("hidden")
	log.Info("upload processed", slog.Int("created", 2))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "api", line["service"])
	require.Equal(t, "upload processed", line["msg"])
	require.EqualValues(t, 2, line["created"])
}

func TestOrDiscard(t *testing.T) {
	require.NotNil(t, OrDiscard(nil))

	l := slog.Default()
	require.Same(t, l, OrDiscard(l))
}
