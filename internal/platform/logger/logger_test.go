package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		want  slog.Level
		known bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tc.name)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.known, ok)
		})
	}
}

func TestSetupWritesJSONAtConfiguredLevel(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	buf := &logger.TestLogBuffer{}
	l, err := logger.Setup(logger.LoggerConfig{Level: "warn", Output: buf})
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("hidden")
	l.Warn("visible", "component", "test")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0]["msg"])
	assert.Equal(t, "test", entries[0]["component"])
	assert.Same(t, l, slog.Default())
}

func TestContextLogger(t *testing.T) {
	l, buf := logger.NewTestLogger()
	fallback := slog.New(slog.NewJSONHandler(&logger.TestLogBuffer{}, nil))

	ctx := logger.WithLogger(context.Background(), l)
	assert.Same(t, l, logger.FromContext(ctx))
	assert.Same(t, l, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.NotNil(t, logger.FromContext(context.Background()))

	logger.FromContext(ctx).Debug("from context")
	assert.Contains(t, buf.String(), "from context")
}
