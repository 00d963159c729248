package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	tests := []struct {
		name  string
		level string
		json  bool
		want  zapcore.Level
	}{
		{"debug console", "debug", false, zapcore.DebugLevel},
		{"info json", "info", true, zapcore.InfoLevel},
		{"warn", "warn", false, zapcore.WarnLevel},
		{"test alias", "test", false, zapcore.DebugLevel},
		{"unknown falls back to info", "chatty", false, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitCLILogger(tt.level, tt.json)
			assert.NotNil(t, CLILogger)
			assert.True(t, CLILogger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, CLILogger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestCLILoggerDefaultIsUsable(t *testing.T) {
	// The zero state must be safe to log through.
	assert.NotPanics(t, func() {
		zap.NewNop().Info("noop")
		CLILogger.Debug("before init")
	})
}
