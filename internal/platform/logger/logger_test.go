package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/batchq/internal/config"
)

func TestSetup(t *testing.T) {
	testCases := []struct {
		name      string
		logLevel  string
		wantLevel slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"mixed case", "DeBuG", slog.LevelDebug},
		{"invalid falls back to info", "verbose", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger := Setup(config.ServerConfig{Port: 8080, LogLevel: tc.logLevel})

			require.NotNil(t, logger)
			assert.True(t, logger.Enabled(context.Background(), tc.wantLevel))
			if tc.wantLevel > slog.LevelDebug {
				assert.False(t, logger.Enabled(context.Background(), tc.wantLevel-4))
			}
		})
	}
}
