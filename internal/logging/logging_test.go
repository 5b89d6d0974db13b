package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		enabled zapcore.Level
		hidden  zapcore.Level
	}{
		{"default level", "", FormatJSON, zapcore.InfoLevel, zapcore.DebugLevel},
		{"debug console", "debug", FormatConsole, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"upper case level", "WARN", "", zapcore.WarnLevel, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.hidden))
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose", FormatJSON)
	assert.Error(t, err)
}
