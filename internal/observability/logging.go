// Package observability provides the shared CLI logger.
//
// Commands log through the package-level CLILogger so that every part
// of the process emits structured records with the same encoding and
// level. The logger writes to stderr, keeping stdout free for the
// JSONL run log.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger. It is a no-op until
// InitCLILogger is called, so packages can log unconditionally.
var CLILogger = zap.NewNop()

// InitCLILogger configures the global CLI logger.
//
// level is a zap level name ("debug", "info", "warn", "error"). When
// jsonOutput is true, records are encoded as JSON; otherwise a
// human-readable console encoding is used. The level "test" is
// accepted as an alias for debug so test helpers can initialize
// logging without knowing level names.
func InitCLILogger(level string, jsonOutput bool) {
	if level == "test" {
		level = "debug"
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if !jsonOutput {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		// A broken logging config should not take the process down.
		fmt.Printf("warning: failed to build logger: %v\n", err)
		return
	}

	CLILogger = logger
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	_ = CLILogger.Sync()
}
